package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/internal/models"
)

// DeadLetters lists jobs that exhausted their attempts.
type DeadLetters interface {
	DeadLetters(ctx context.Context, limit int) ([]models.DeadLetterJob, error)
}

// AdminHandler serves the admin panel. Role checks happen in the hub so a
// demoted admin loses access on the next request.
type AdminHandler struct {
	hub  *hub.Hub
	jobs DeadLetters
}

func NewAdminHandler(h *hub.Hub, jobs DeadLetters) *AdminHandler {
	return &AdminHandler{hub: h, jobs: jobs}
}

func (h *AdminHandler) Opportunities(w http.ResponseWriter, r *http.Request) {
	rows, err := h.hub.AdminOpportunities(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(rows), http.StatusOK)
}

func (h *AdminHandler) CreateOpportunity(w http.ResponseWriter, r *http.Request) {
	var in hub.OpportunityInput
	if !decode(w, r, &in) {
		return
	}

	o, err := h.hub.CreateOpportunity(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, o, http.StatusCreated)
}

func (h *AdminHandler) UpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	var in hub.OpportunityInput
	if !decode(w, r, &in) {
		return
	}

	o, err := h.hub.UpdateOpportunity(r.Context(), identity(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, o, http.StatusOK)
}

func (h *AdminHandler) DeleteOpportunity(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.DeleteOpportunity(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	rows, err := h.hub.AdminEvents(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(rows), http.StatusOK)
}

func (h *AdminHandler) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	o, err := h.hub.ApproveEvent(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, o, http.StatusOK)
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.hub.AdminUsers(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(users), http.StatusOK)
}

func (h *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.PromoteUser(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) DemoteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.DemoteUser(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.DeleteUser(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.hub.Analytics(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, a, http.StatusOK)
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *AdminHandler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decode(w, r, &req) {
		return
	}

	c, err := h.hub.AddCategory(r.Context(), identity(r), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, c, http.StatusCreated)
}

func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.hub.UpdateCategory(r.Context(), identity(r), mux.Vars(r)["id"], req.Name, req.Description); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.DeleteCategory(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.hub.Logs(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(logs), http.StatusOK)
}

func (h *AdminHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.DeleteLog(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	n, err := h.hub.ClearLogs(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, map[string]int{"deleted": n}, http.StatusOK)
}

// ExportLogs renders the printable report. It is buffered so a failure can
// still answer with a JSON error.
func (h *AdminHandler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.hub.ExportLogs(r.Context(), identity(r), &buf); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="user-logs-`+time.Now().UTC().Format("2006-01-02")+`.html"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// DeadLetters lists failed background jobs (?limit=N).
func (h *AdminHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.CheckAdmin(r.Context(), identity(r)); err != nil {
		writeError(w, r, err)
		return
	}
	if h.jobs == nil {
		writeJSON(w, list([]models.DeadLetterJob(nil)), http.StatusOK)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.jobs.DeadLetters(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(rows), http.StatusOK)
}
