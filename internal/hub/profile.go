package hub

import (
	"context"
	"fmt"
	"strings"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/pkg/models"
)

// ProfileUpdate is the editable part of a profile. Skills is the raw comma
// separated list typed by the user.
type ProfileUpdate struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Skills string `json:"skills"`
	Bio    string `json:"bio"`
}

// ParseSkills splits a comma list, trimming entries and dropping empty ones.
func ParseSkills(raw string) []string {
	out := []string{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

// Profile returns the stored profile of the user, falling back to the
// session copy if the document disappeared.
func (h *Hub) Profile(ctx context.Context, id *auth.Identity) (models.UserProfile, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return models.UserProfile{}, err
	}

	p, err := h.loadProfile(ctx, id.UID)
	if err != nil {
		return models.UserProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		return s.profile, nil
	}
	s.profile = *p

	return *p, nil
}

// UpdateProfile stores the profile fields and mirrors a new name to the
// account.
func (h *Hub) UpdateProfile(ctx context.Context, id *auth.Identity, in ProfileUpdate) (models.UserProfile, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return models.UserProfile{}, err
	}

	name := strings.TrimSpace(in.Name)
	skills := ParseSkills(in.Skills)
	fields := map[string]any{
		"name":            name,
		"phone":           strings.TrimSpace(in.Phone),
		"skills":          skills,
		"bio":             strings.TrimSpace(in.Bio),
		"profileComplete": true,
		"updatedAt":       h.millis(),
	}
	if h.validator != nil {
		payload := map[string]any{"name": fields["name"], "phone": fields["phone"], "skills": skills, "bio": fields["bio"]}
		if err := h.validator.Validate(ctx, "profile", "v1", payload); err != nil {
			return models.UserProfile{}, err
		}
	}

	if err := h.store.Update(ctx, models.CollUsers, id.UID, fields); err != nil {
		return models.UserProfile{}, fmt.Errorf("update profile: %w", err)
	}

	ident := s.identity()
	if name != "" && name != ident.DisplayName {
		if h.accounts != nil {
			if err := h.accounts.UpdateDisplayName(ctx, ident.Email, name); err != nil {
				h.logger.Warn("mirror display name", "uid", ident.UID, "err", err)
			}
		}
		s.mu.Lock()
		s.id.DisplayName = name
		s.mu.Unlock()
	}

	h.audit(ctx, s, "update_profile", "Updated profile information", nil)

	return h.Profile(ctx, id)
}
