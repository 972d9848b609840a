package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/internal/summary"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

// OpportunityInput is the editable part of an opportunity.
type OpportunityInput struct {
	Title        string `json:"title"`
	Type         string `json:"type"`
	Category     string `json:"category"`
	Company      string `json:"company,omitempty"`
	Location     string `json:"location,omitempty"`
	Description  string `json:"description"`
	Requirements string `json:"requirements,omitempty"`
	Benefits     string `json:"benefits,omitempty"`
	Salary       string `json:"salary,omitempty"`
	Link         string `json:"link,omitempty"`
	Deadline     string `json:"deadline,omitempty"`
	// Status is honoured on update only.
	Status string `json:"status,omitempty"`
}

func (in OpportunityInput) trimmed() OpportunityInput {
	for _, p := range []*string{&in.Title, &in.Type, &in.Category, &in.Company, &in.Location, &in.Description,
		&in.Requirements, &in.Benefits, &in.Salary, &in.Link, &in.Deadline, &in.Status} {
		*p = strings.TrimSpace(*p)
	}

	return in
}

func (h *Hub) checkOpportunity(ctx context.Context, in OpportunityInput) error {
	if err := required(map[string]string{
		"title":       in.Title,
		"type":        in.Type,
		"category":    in.Category,
		"description": in.Description,
	}); err != nil {
		return err
	}
	if h.validator != nil {
		return h.validator.Validate(ctx, "opportunity", "v1", in)
	}

	return nil
}

func (in OpportunityInput) fields() map[string]any {
	return map[string]any{
		"title":        in.Title,
		"type":         in.Type,
		"category":     in.Category,
		"company":      in.Company,
		"location":     in.Location,
		"description":  in.Description,
		"requirements": in.Requirements,
		"benefits":     in.Benefits,
		"salary":       in.Salary,
		"link":         in.Link,
		"deadline":     in.Deadline,
	}
}

func (h *Hub) enqueueSummary(ctx context.Context, oppID string) {
	if h.jobs == nil {
		return
	}
	if _, err := h.jobs.Enqueue(ctx, summary.JobType, summary.Payload{OpportunityID: oppID}, 100, 0); err != nil {
		h.logger.Warn("enqueue summary job", "opportunity", oppID, "err", err)
	}
}

func (h *Hub) insertOpportunity(ctx context.Context, s *Session, in OpportunityInput, status string) (models.Opportunity, error) {
	ident := s.identity()
	o := models.Opportunity{
		Title:            in.Title,
		Type:             in.Type,
		Category:         in.Category,
		Company:          in.Company,
		Location:         in.Location,
		Description:      in.Description,
		Requirements:     in.Requirements,
		Benefits:         in.Benefits,
		Salary:           in.Salary,
		Link:             in.Link,
		Deadline:         in.Deadline,
		Status:           status,
		Summary:          summary.Truncate(in.Description, h.summaryLength),
		RequiresApproval: status == models.StatusPendingApproval,
		CreatedAt:        h.millis(),
		CreatedBy:        ident.UID,
		CreatedByName:    ident.DisplayName,
	}

	oppID, err := h.store.Add(ctx, models.CollOpportunities, o)
	if err != nil {
		return models.Opportunity{}, fmt.Errorf("create opportunity: %w", err)
	}
	o.ID = oppID

	h.reconcile(o)
	h.enqueueSummary(ctx, oppID)

	return o, nil
}

// CreateOpportunity publishes a new active opportunity.
func (h *Hub) CreateOpportunity(ctx context.Context, id *auth.Identity, in OpportunityInput) (models.Opportunity, error) {
	s, err := h.requireAdmin(ctx, id)
	if err != nil {
		return models.Opportunity{}, err
	}

	in = in.trimmed()
	in.Status = ""
	if err := h.checkOpportunity(ctx, in); err != nil {
		return models.Opportunity{}, err
	}

	return h.insertOpportunity(ctx, s, in, models.StatusActive)
}

// SubmitEvent lets any signed-in user propose an event. It waits for admin
// approval unless the submitter is an admin.
func (h *Hub) SubmitEvent(ctx context.Context, id *auth.Identity, in OpportunityInput) (models.Opportunity, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return models.Opportunity{}, err
	}

	in = in.trimmed()
	in.Type = models.TypeEvent
	in.Status = ""
	if err := h.checkOpportunity(ctx, in); err != nil {
		return models.Opportunity{}, err
	}

	status := models.StatusPendingApproval
	if s.isAdmin() {
		status = models.StatusActive
	}

	return h.insertOpportunity(ctx, s, in, status)
}

// UpdateOpportunity replaces the editable fields of an opportunity.
func (h *Hub) UpdateOpportunity(ctx context.Context, id *auth.Identity, oppID string, in OpportunityInput) (models.Opportunity, error) {
	s, err := h.requireAdmin(ctx, id)
	if err != nil {
		return models.Opportunity{}, err
	}

	in = in.trimmed()
	if err := h.checkOpportunity(ctx, in); err != nil {
		return models.Opportunity{}, err
	}

	ident := s.identity()
	fields := in.fields()
	if in.Status != "" {
		fields["status"] = in.Status
	}
	fields["summary"] = summary.Truncate(in.Description, h.summaryLength)
	fields["updatedAt"] = h.millis()
	fields["updatedBy"] = ident.UID
	fields["updatedByName"] = ident.DisplayName

	if err := h.store.Update(ctx, models.CollOpportunities, oppID, fields); err != nil {
		return models.Opportunity{}, fmt.Errorf("update opportunity: %w", err)
	}

	o, err := h.Opportunity(ctx, oppID)
	if err != nil {
		return models.Opportunity{}, err
	}
	h.reconcile(o)
	h.enqueueSummary(ctx, oppID)

	return o, nil
}

// DeleteOpportunity removes an opportunity for good.
func (h *Hub) DeleteOpportunity(ctx context.Context, id *auth.Identity, oppID string) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}
	if err := h.store.Delete(ctx, models.CollOpportunities, oppID); err != nil {
		return fmt.Errorf("delete opportunity: %w", err)
	}
	h.forget(oppID)

	return nil
}

// ApproveEvent publishes a pending event and tells its submitter.
func (h *Hub) ApproveEvent(ctx context.Context, id *auth.Identity, eventID string) (models.Opportunity, error) {
	s, err := h.requireAdmin(ctx, id)
	if err != nil {
		return models.Opportunity{}, err
	}
	ident := s.identity()

	err = h.store.Update(ctx, models.CollOpportunities, eventID, map[string]any{
		"status":           models.StatusActive,
		"requiresApproval": false,
		"approvedAt":       h.millis(),
		"approvedBy":       ident.UID,
		"approvedByName":   ident.DisplayName,
	})
	if err != nil {
		return models.Opportunity{}, fmt.Errorf("approve event: %w", err)
	}

	o, err := h.Opportunity(ctx, eventID)
	if err != nil {
		return models.Opportunity{}, err
	}
	h.reconcile(o)
	h.audit(ctx, s, "approve_event", "Approved event: "+o.Title, map[string]any{"eventId": eventID})

	if o.CreatedBy != "" && o.CreatedBy != ident.UID {
		note := models.Notification{
			Title:         "Event approved",
			Message:       fmt.Sprintf("Your event %q is now published.", o.Title),
			Kind:          "event_approved",
			OpportunityID: eventID,
			CreatedAt:     h.millis(),
		}
		err := h.store.Create(ctx, models.NotificationsCollection(o.CreatedBy), "approved-"+eventID, note)
		if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
			h.logger.Warn("notify event submitter", "event", eventID, "uid", o.CreatedBy, "err", err)
		}
	}

	return o, nil
}

// AdminOpportunity is an admin table row.
type AdminOpportunity struct {
	models.Opportunity
	ApplicationCount int `json:"applicationCount"`
}

// AdminOpportunities lists every opportunity, newest first, with its
// application count. A failed count shows 0 and the listing continues.
func (h *Hub) AdminOpportunities(ctx context.Context, id *auth.Identity) ([]AdminOpportunity, error) {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return nil, err
	}

	opps, _ := catalog.Cascade[models.Opportunity]{
		Collection: models.CollOpportunities,
		OrderBy:    "createdAt",
		Decode:     models.DecodeOpportunity,
		SortKey:    func(o models.Opportunity) int64 { return o.CreatedAt },
		Logger:     h.logger,
	}.Fetch(ctx, h.store)

	return h.withCounts(ctx, opps), nil
}

func (h *Hub) withCounts(ctx context.Context, opps []models.Opportunity) []AdminOpportunity {
	out := make([]AdminOpportunity, 0, len(opps))
	for _, o := range opps {
		row := AdminOpportunity{Opportunity: o}
		apps, err := h.store.Query(ctx, models.CollApplications, docstore.Where("opportunityId", o.ID))
		if err != nil {
			h.logger.Warn("count applications", "opportunity", o.ID, "err", err)
		} else {
			row.ApplicationCount = len(apps)
		}
		out = append(out, row)
	}

	return out
}

// AdminEvents lists every event including pending ones, newest first.
func (h *Hub) AdminEvents(ctx context.Context, id *auth.Identity) ([]AdminOpportunity, error) {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return nil, err
	}

	events, _ := catalog.Cascade[models.Opportunity]{
		Collection: models.CollOpportunities,
		Where:      []docstore.Filter{{Field: "type", Value: models.TypeEvent}},
		OrderBy:    "createdAt",
		Decode:     models.DecodeOpportunity,
		Keep:       func(o models.Opportunity) bool { return o.Type == models.TypeEvent },
		SortKey:    func(o models.Opportunity) int64 { return o.CreatedAt },
		Logger:     h.logger,
	}.Fetch(ctx, h.store)

	return h.withCounts(ctx, events), nil
}

// AdminUser is one row of the admin user list with the actions the caller
// may take on it.
type AdminUser struct {
	models.UserProfile
	CanPromote bool `json:"canPromote"`
	CanDemote  bool `json:"canDemote"`
	CanDelete  bool `json:"canDelete"`
}

func adminUser(p models.UserProfile, self string) AdminUser {
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	own := p.ID == self

	return AdminUser{
		UserProfile: p,
		CanPromote:  p.Role != models.RoleAdmin,
		CanDemote:   p.Role == models.RoleAdmin && !own,
		CanDelete:   !own,
	}
}

// AdminUsers lists every profile, newest first.
func (h *Hub) AdminUsers(ctx context.Context, id *auth.Identity) ([]AdminUser, error) {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return nil, err
	}

	users, _ := catalog.Cascade[models.UserProfile]{
		Collection: models.CollUsers,
		OrderBy:    "createdAt",
		Decode:     models.DecodeProfile,
		SortKey:    func(p models.UserProfile) int64 { return p.CreatedAt },
		Logger:     h.logger,
	}.Fetch(ctx, h.store)

	out := make([]AdminUser, 0, len(users))
	for _, p := range users {
		out = append(out, adminUser(p, id.UID))
	}

	return out, nil
}

func (h *Hub) changeRole(ctx context.Context, uid, role string) error {
	target, err := h.loadProfile(ctx, uid)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("user %s: %w", uid, docstore.ErrNotFound)
	}
	if target.Role == role {
		return nil
	}

	if err := h.store.Update(ctx, models.CollUsers, uid, map[string]any{"role": role}); err != nil {
		return fmt.Errorf("change role: %w", err)
	}
	h.setRole(uid, role)

	return nil
}

// PromoteUser grants the admin role.
func (h *Hub) PromoteUser(ctx context.Context, id *auth.Identity, uid string) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}

	return h.changeRole(ctx, uid, models.RoleAdmin)
}

// DemoteUser removes the admin role. Admins cannot demote themselves.
func (h *Hub) DemoteUser(ctx context.Context, id *auth.Identity, uid string) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}
	if uid == id.UID {
		return ErrSelfAction
	}

	return h.changeRole(ctx, uid, models.RoleUser)
}

// DeleteUser removes a profile and its sign-in account. Admins cannot delete
// themselves.
func (h *Hub) DeleteUser(ctx context.Context, id *auth.Identity, uid string) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}
	if uid == id.UID {
		return ErrSelfAction
	}

	target, err := h.loadProfile(ctx, uid)
	if err != nil {
		return err
	}

	// The account goes first so a failure leaves the profile in place.
	if target != nil && target.Email != "" && h.accounts != nil {
		if err := h.accounts.DeleteAccount(ctx, uid, target.Email); err != nil {
			return err
		}
	}
	if err := h.store.Delete(ctx, models.CollUsers, uid); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	h.EndSession(uid)

	return nil
}

// Analytics are the admin dashboard totals.
type Analytics struct {
	TotalOpportunities  int `json:"totalOpportunities"`
	TotalUsers          int `json:"totalUsers"`
	TotalApplications   int `json:"totalApplications"`
	ActiveOpportunities int `json:"activeOpportunities"`
}

func (h *Hub) Analytics(ctx context.Context, id *auth.Identity) (Analytics, error) {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return Analytics{}, err
	}

	count := func(coll string, q docstore.Query) (int, error) {
		docs, err := h.store.Query(ctx, coll, q)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", coll, err)
		}
		return len(docs), nil
	}

	var a Analytics
	var err error
	if a.TotalOpportunities, err = count(models.CollOpportunities, docstore.Query{}); err != nil {
		return Analytics{}, err
	}
	if a.TotalUsers, err = count(models.CollUsers, docstore.Query{}); err != nil {
		return Analytics{}, err
	}
	if a.TotalApplications, err = count(models.CollApplications, docstore.Query{}); err != nil {
		return Analytics{}, err
	}
	if a.ActiveOpportunities, err = count(models.CollOpportunities, docstore.Where("status", models.StatusActive)); err != nil {
		return Analytics{}, err
	}

	return a, nil
}
