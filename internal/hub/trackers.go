package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

func (h *Hub) savedMarks(ctx context.Context, uid string) []models.SavedMark {
	marks, _ := catalog.Cascade[models.SavedMark]{
		Collection: models.SavedCollection(uid),
		OrderBy:    "savedAt",
		Decode:     models.DecodeSavedMark,
		SortKey:    func(m models.SavedMark) int64 { return m.SavedAt },
		Logger:     h.logger,
	}.Fetch(ctx, h.store)

	return marks
}

// ToggleSave flips the saved mark of oppID and reports whether it is now
// saved. The local set changes only after the store write succeeds.
func (h *Hub) ToggleSave(ctx context.Context, id *auth.Identity, oppID string) (bool, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(oppID) == "" {
		return false, invalid("opportunity id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := models.SavedCollection(s.id.UID)
	if s.saved[oppID] {
		if err := h.store.Delete(ctx, coll, oppID); err != nil {
			return true, fmt.Errorf("remove saved: %w", err)
		}
		delete(s.saved, oppID)

		return false, nil
	}

	mark := models.SavedMark{OpportunityID: oppID, SavedAt: h.millis()}
	if err := h.store.Set(ctx, coll, oppID, mark); err != nil {
		return false, fmt.Errorf("save opportunity: %w", err)
	}
	s.saved[oppID] = true

	return true, nil
}

// RemoveSaved deletes a saved mark from the dashboard.
func (h *Hub) RemoveSaved(ctx context.Context, id *auth.Identity, oppID string) error {
	s, err := h.session(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := h.store.Delete(ctx, models.SavedCollection(s.id.UID), oppID); err != nil {
		return fmt.Errorf("remove saved: %w", err)
	}
	delete(s.saved, oppID)

	return nil
}

// SavedOpportunities reloads the saved marks, resyncs the session set and
// returns the active opportunities behind them, most recently saved first.
func (h *Hub) SavedOpportunities(ctx context.Context, id *auth.Identity) ([]models.Opportunity, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return nil, err
	}

	marks := h.savedMarks(ctx, id.UID)
	set := make(map[string]bool, len(marks))
	for _, m := range marks {
		set[m.OpportunityID] = true
	}
	s.mu.Lock()
	s.saved = set
	s.mu.Unlock()

	out := make([]models.Opportunity, 0, len(marks))
	for _, m := range marks {
		o, err := h.Opportunity(ctx, m.OpportunityID)
		if err != nil {
			if !errors.Is(err, docstore.ErrNotFound) {
				h.logger.Warn("load saved opportunity", "opportunity", m.OpportunityID, "err", err)
			}
			continue
		}
		if o.IsActive() {
			out = append(out, o)
		}
	}

	return out, nil
}

// Apply records one pending application of the user for oppID. A second
// call signals ErrDuplicateApplication and writes nothing.
func (h *Hub) Apply(ctx context.Context, id *auth.Identity, oppID string) (models.Application, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return models.Application{}, err
	}
	ident := s.identity()

	opp, err := h.Opportunity(ctx, oppID)
	if err != nil {
		return models.Application{}, err
	}

	existing, err := h.store.Query(ctx, models.CollApplications,
		docstore.Where("userId", ident.UID).And("opportunityId", oppID).Take(1))
	if err != nil {
		return models.Application{}, fmt.Errorf("check existing application: %w", err)
	}
	if len(existing) > 0 {
		return models.Application{}, ErrDuplicateApplication
	}

	app := models.Application{
		UserID:        ident.UID,
		OpportunityID: oppID,
		Status:        models.ApplicationPending,
		AppliedAt:     h.millis(),
		UserEmail:     ident.Email,
		UserName:      ident.DisplayName,
	}
	appID := models.ApplicationID(ident.UID, oppID)
	if err := h.store.Create(ctx, models.CollApplications, appID, app); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return models.Application{}, ErrDuplicateApplication
		}
		return models.Application{}, fmt.Errorf("create application: %w", err)
	}
	app.ID = appID

	h.audit(ctx, s, "apply_opportunity", "Applied for opportunity: "+opp.Title, map[string]any{"opportunityId": oppID})

	return app, nil
}

// ApplicationView is an application with the opportunity it targets, when
// that still exists.
type ApplicationView struct {
	models.Application
	Opportunity *models.Opportunity `json:"opportunity,omitempty"`
}

// Applications lists the user's applications, newest first.
func (h *Hub) Applications(ctx context.Context, id *auth.Identity) ([]ApplicationView, error) {
	if _, err := h.session(ctx, id); err != nil {
		return nil, err
	}

	apps, _ := catalog.Cascade[models.Application]{
		Collection: models.CollApplications,
		Where:      []docstore.Filter{{Field: "userId", Value: id.UID}},
		OrderBy:    "appliedAt",
		Decode:     models.DecodeApplication,
		Keep:       func(a models.Application) bool { return a.UserID == id.UID },
		SortKey:    func(a models.Application) int64 { return a.AppliedAt },
		Logger:     h.logger,
	}.Fetch(ctx, h.store)

	opps := make(map[string]*models.Opportunity)
	out := make([]ApplicationView, 0, len(apps))
	for _, a := range apps {
		o, seen := opps[a.OpportunityID]
		if !seen {
			loaded, err := h.Opportunity(ctx, a.OpportunityID)
			if err == nil {
				o = &loaded
			} else if !errors.Is(err, docstore.ErrNotFound) {
				h.logger.Warn("load applied opportunity", "opportunity", a.OpportunityID, "err", err)
			}
			opps[a.OpportunityID] = o
		}
		out = append(out, ApplicationView{Application: a, Opportunity: o})
	}

	return out, nil
}

// Notifications lists unread notifications, newest first.
func (h *Hub) Notifications(ctx context.Context, id *auth.Identity) ([]models.Notification, error) {
	if _, err := h.session(ctx, id); err != nil {
		return nil, err
	}

	items, _ := catalog.Cascade[models.Notification]{
		Collection: models.NotificationsCollection(id.UID),
		Where:      []docstore.Filter{{Field: "read", Value: false}},
		OrderBy:    "createdAt",
		Decode:     models.DecodeNotification,
		Keep:       func(n models.Notification) bool { return !n.Read },
		SortKey:    func(n models.Notification) int64 { return n.CreatedAt },
		Logger:     h.logger,
	}.Fetch(ctx, h.store)

	return items, nil
}

// MarkNotificationRead flags one notification as read.
func (h *Hub) MarkNotificationRead(ctx context.Context, id *auth.Identity, notificationID string) error {
	if _, err := h.session(ctx, id); err != nil {
		return err
	}
	if err := h.store.Update(ctx, models.NotificationsCollection(id.UID), notificationID, map[string]any{"read": true}); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	return nil
}

// Dashboard is everything the user dashboard shows.
type Dashboard struct {
	Profile       models.UserProfile    `json:"profile"`
	Applications  []ApplicationView     `json:"applications"`
	Saved         []models.Opportunity  `json:"saved"`
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

func (h *Hub) Dashboard(ctx context.Context, id *auth.Identity) (Dashboard, error) {
	profile, err := h.Profile(ctx, id)
	if err != nil {
		return Dashboard{}, err
	}
	apps, err := h.Applications(ctx, id)
	if err != nil {
		return Dashboard{}, err
	}
	saved, err := h.SavedOpportunities(ctx, id)
	if err != nil {
		return Dashboard{}, err
	}
	notes, err := h.Notifications(ctx, id)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		Profile:       profile,
		Applications:  apps,
		Saved:         saved,
		Notifications: notes,
		UnreadCount:   len(notes),
	}, nil
}
