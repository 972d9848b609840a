package hub

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/garnizeh/opphub/pkg/models"
)

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SubmitContact stores a contact form message. No session is needed.
func (h *Hub) SubmitContact(ctx context.Context, in ContactInput) (string, error) {
	msg := models.ContactMessage{
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Subject:   strings.TrimSpace(in.Subject),
		Message:   strings.TrimSpace(in.Message),
		Status:    "new",
		CreatedAt: h.millis(),
	}
	if err := required(map[string]string{"name": msg.Name, "email": msg.Email, "message": msg.Message}); err != nil {
		return "", err
	}
	if _, err := mail.ParseAddress(msg.Email); err != nil {
		return "", invalid("invalid email address")
	}

	msgID, err := h.store.Add(ctx, models.CollContacts, msg)
	if err != nil {
		return "", fmt.Errorf("store contact message: %w", err)
	}
	h.logger.Info("contact message received", "id", msgID)

	return msgID, nil
}
