package api_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/garnizeh/opphub/api"
	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/internal/models"
	pmodels "github.com/garnizeh/opphub/pkg/models"
)

func TestBrowseFilters(t *testing.T) {
	s := newServer(t, nil)
	ctx := context.Background()
	for _, o := range []pmodels.Opportunity{
		{ID: "a", Title: "A", Type: pmodels.TypeJob, Category: "web-dev", Status: pmodels.StatusActive, CreatedAt: 1},
		{ID: "b", Title: "B", Type: pmodels.TypeEvent, Category: "web-dev", Status: pmodels.StatusActive, CreatedAt: 2},
	} {
		if err := s.store.Set(ctx, pmodels.CollOpportunities, o.ID, o); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	res, body := s.do(t, http.MethodGet, "/v1/opportunities?type=event", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("browse: status %d body=%s", res.StatusCode, body)
	}
	view := decodeBody[hub.Browse](t, body)
	if view.FilteredCount != 1 || view.TotalCount != 2 || view.Items[0].ID != "b" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.StatusLine != "Showing 1 of 2 opportunities" {
		t.Fatalf("unexpected status line %q", view.StatusLine)
	}

	token := s.signUp(t, "ann@example.com", "Ann")
	s.do(t, http.MethodGet, "/v1/opportunities?type=job&category=web-dev", token, nil)
	_, body = s.do(t, http.MethodGet, "/v1/opportunities", token, nil)
	if view := decodeBody[hub.Browse](t, body); view.FilteredCount != 1 || view.Items[0].ID != "a" {
		t.Fatalf("session filters should persist, got %+v", view)
	}
	_, body = s.do(t, http.MethodDelete, "/v1/opportunities/filters", token, nil)
	if view := decodeBody[hub.Browse](t, body); view.FilteredCount != 2 {
		t.Fatalf("expected filters cleared, got %+v", view)
	}

	res, body = s.do(t, http.MethodGet, "/v1/opportunities/a", "", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"categoryLabel":"Web Development"`) {
		t.Fatalf("details: status %d body=%s", res.StatusCode, body)
	}
	if res, _ := s.do(t, http.MethodGet, "/v1/opportunities/nope", "", nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}

	res, body = s.do(t, http.MethodGet, "/v1/featured", "", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"total":2`) {
		t.Fatalf("featured: status %d body=%s", res.StatusCode, body)
	}
	res, body = s.do(t, http.MethodGet, "/v1/events", "", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"total":1`) {
		t.Fatalf("events: status %d body=%s", res.StatusCode, body)
	}
	res, body = s.do(t, http.MethodGet, "/v1/categories", "", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"total":6`) {
		t.Fatalf("categories: status %d body=%s", res.StatusCode, body)
	}
}

func TestUserFlow(t *testing.T) {
	s := newServer(t, nil)
	ctx := context.Background()
	o := pmodels.Opportunity{ID: "o1", Title: "Go Developer", Type: pmodels.TypeJob, Status: pmodels.StatusActive, CreatedAt: 1}
	if err := s.store.Set(ctx, pmodels.CollOpportunities, o.ID, o); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := s.signUp(t, "ann@example.com", "Ann")

	if res, _ := s.do(t, http.MethodPost, "/v1/opportunities/o1/apply", "", nil); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous apply: expected 401, got %d", res.StatusCode)
	}
	if res, body := s.do(t, http.MethodPost, "/v1/opportunities/o1/apply", token, nil); res.StatusCode != http.StatusCreated {
		t.Fatalf("apply: status %d body=%s", res.StatusCode, body)
	}
	if res, _ := s.do(t, http.MethodPost, "/v1/opportunities/o1/apply", token, nil); res.StatusCode != http.StatusConflict {
		t.Fatalf("second apply: expected 409, got %d", res.StatusCode)
	}

	res, body := s.do(t, http.MethodPost, "/v1/me/saved/o1", token, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"saved":true`) {
		t.Fatalf("save: status %d body=%s", res.StatusCode, body)
	}

	res, body = s.do(t, http.MethodGet, "/v1/me/dashboard", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: status %d body=%s", res.StatusCode, body)
	}
	d := decodeBody[hub.Dashboard](t, body)
	if len(d.Applications) != 1 || len(d.Saved) != 1 || d.Profile.Email != "ann@example.com" {
		t.Fatalf("unexpected dashboard %+v", d)
	}

	res, body = s.do(t, http.MethodPut, "/v1/me/profile", token, map[string]string{"name": "Ann Lee", "skills": "Go, SQL"})
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"skills":["Go","SQL"]`) {
		t.Fatalf("profile: status %d body=%s", res.StatusCode, body)
	}

	if res, _ := s.do(t, http.MethodDelete, "/v1/me/saved/o1", token, nil); res.StatusCode != http.StatusNoContent {
		t.Fatalf("remove saved: expected 204, got %d", res.StatusCode)
	}
	if res, _ := s.do(t, http.MethodPost, "/v1/me/notifications/none/read", token, nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("mark read: expected 404, got %d", res.StatusCode)
	}

	res, body = s.do(t, http.MethodPost, "/v1/events", token, map[string]string{"title": "Meetup", "category": "cloud", "description": "Talks"})
	if res.StatusCode != http.StatusCreated || !strings.Contains(string(body), `"status":"pending-approval"`) {
		t.Fatalf("submit event: status %d body=%s", res.StatusCode, body)
	}

	res, body = s.do(t, http.MethodPost, "/v1/contact", "", map[string]string{"name": "Ann", "email": "bad", "message": "hi"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("contact: expected 400, got %d body=%s", res.StatusCode, body)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t, nil)
	user := s.signUp(t, "ann@example.com", "Ann")
	admin := s.signUp(t, adminEmail, "Boss")

	if res, _ := s.do(t, http.MethodGet, "/v1/admin/analytics", user, nil); res.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d", res.StatusCode)
	}
	if res, _ := s.do(t, http.MethodGet, "/v1/admin/analytics", "", nil); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", res.StatusCode)
	}

	in := map[string]string{"title": "Go Developer", "type": "job", "category": "web-dev", "description": "Build services"}
	res, body := s.do(t, http.MethodPost, "/v1/admin/opportunities", admin, in)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d body=%s", res.StatusCode, body)
	}
	created := decodeBody[pmodels.Opportunity](t, body)

	if res, body := s.do(t, http.MethodPost, "/v1/admin/opportunities", admin, map[string]string{"title": "x"}); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid create: expected 400, got %d body=%s", res.StatusCode, body)
	}

	_, body = s.do(t, http.MethodGet, "/v1/admin/opportunities", admin, nil)
	if !strings.Contains(string(body), `"applicationCount":0`) || !strings.Contains(string(body), created.ID) {
		t.Fatalf("admin list: %s", body)
	}

	in["status"] = pmodels.StatusInactive
	if res, body := s.do(t, http.MethodPut, "/v1/admin/opportunities/"+created.ID, admin, in); res.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d body=%s", res.StatusCode, body)
	}

	_, body = s.do(t, http.MethodGet, "/v1/admin/users", admin, nil)
	users := decodeBody[struct {
		Items []hub.AdminUser `json:"items"`
	}](t, body)
	var annID, adminID string
	for _, u := range users.Items {
		switch u.Email {
		case "ann@example.com":
			annID = u.ID
			if !u.CanPromote || u.CanDemote || !u.CanDelete {
				t.Fatalf("unexpected actions for a plain user: %+v", u)
			}
		case adminEmail:
			adminID = u.ID
			if u.CanPromote || u.CanDemote || u.CanDelete {
				t.Fatalf("admin must not act on their own row: %+v", u)
			}
		}
	}
	if res, _ := s.do(t, http.MethodPost, "/v1/admin/users/"+annID+"/promote", admin, nil); res.StatusCode != http.StatusNoContent {
		t.Fatalf("promote: expected 204, got %d", res.StatusCode)
	}
	if res, _ := s.do(t, http.MethodGet, "/v1/admin/analytics", user, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("promoted user should reach admin routes, got %d", res.StatusCode)
	}
	if res, _ := s.do(t, http.MethodPost, "/v1/admin/users/"+adminID+"/demote", admin, nil); res.StatusCode != http.StatusForbidden {
		t.Fatalf("self demote: expected 403, got %d", res.StatusCode)
	}

	res, body = s.do(t, http.MethodPost, "/v1/admin/categories", admin, map[string]string{"name": "Game Dev"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add category: status %d body=%s", res.StatusCode, body)
	}
	if res, _ := s.do(t, http.MethodPost, "/v1/admin/categories", admin, map[string]string{"name": "game dev"}); res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate category: expected 409, got %d", res.StatusCode)
	}
	if res, _ := s.do(t, http.MethodDelete, "/v1/admin/categories/cloud", admin, nil); res.StatusCode != http.StatusForbidden {
		t.Fatalf("builtin delete: expected 403, got %d", res.StatusCode)
	}

	res, body = s.do(t, http.MethodGet, "/v1/admin/logs/export", admin, nil)
	if res.StatusCode != http.StatusOK || !strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") ||
		!strings.Contains(string(body), "User Activity Logs Report") {
		t.Fatalf("export: status %d type %q", res.StatusCode, res.Header.Get("Content-Type"))
	}
	if res, body := s.do(t, http.MethodDelete, "/v1/admin/logs", admin, nil); res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"deleted"`) {
		t.Fatalf("clear logs: status %d body=%s", res.StatusCode, body)
	}

	if res, body := s.do(t, http.MethodGet, "/v1/admin/jobs/dead", admin, nil); res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"total":0`) {
		t.Fatalf("dead letters: status %d body=%s", res.StatusCode, body)
	}
}

type fakeDeadLetters struct{ err error }

func (f fakeDeadLetters) DeadLetters(_ context.Context, limit int) ([]models.DeadLetterJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.DeadLetterJob{{ID: 1, Type: "opportunity.summarize", LastError: "timeout"}}[:min(limit, 1)], nil
}

func TestDeadLetters(t *testing.T) {
	s := newServer(t, func(d *api.Deps) { d.Jobs = fakeDeadLetters{} })
	admin := s.signUp(t, adminEmail, "Boss")

	res, body := s.do(t, http.MethodGet, "/v1/admin/jobs/dead?limit=5", admin, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"last_error":"timeout"`) {
		t.Fatalf("dead letters: status %d body=%s", res.StatusCode, body)
	}

	s = newServer(t, func(d *api.Deps) { d.Jobs = fakeDeadLetters{err: errors.New("disk I/O error")} })
	admin = s.signUp(t, adminEmail, "Boss")
	res, body = s.do(t, http.MethodGet, "/v1/admin/jobs/dead?limit=5", admin, nil)
	if res.StatusCode != http.StatusInternalServerError || strings.Contains(string(body), "disk") {
		t.Fatalf("internal errors must be hidden: status %d body=%s", res.StatusCode, body)
	}
}
