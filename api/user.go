package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/opphub/internal/hub"
)

// UserHandler serves the signed-in user's own data. Every route sits behind
// RequireAuth.
type UserHandler struct {
	hub *hub.Hub
}

func NewUserHandler(h *hub.Hub) *UserHandler {
	return &UserHandler{hub: h}
}

func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.hub.Dashboard(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, d, http.StatusOK)
}

func (h *UserHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	oppID := mux.Vars(r)["id"]
	saved, err := h.hub.ToggleSave(r.Context(), identity(r), oppID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"opportunityId": oppID, "saved": saved}, http.StatusOK)
}

func (h *UserHandler) RemoveSaved(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.RemoveSaved(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Saved(w http.ResponseWriter, r *http.Request) {
	items, err := h.hub.SavedOpportunities(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(items), http.StatusOK)
}

func (h *UserHandler) Apply(w http.ResponseWriter, r *http.Request) {
	app, err := h.hub.Apply(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, app, http.StatusCreated)
}

func (h *UserHandler) Applications(w http.ResponseWriter, r *http.Request) {
	items, err := h.hub.Applications(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(items), http.StatusOK)
}

func (h *UserHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.hub.Notifications(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list(items), http.StatusOK)
}

func (h *UserHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.MarkNotificationRead(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.hub.Profile(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, p, http.StatusOK)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in hub.ProfileUpdate
	if !decode(w, r, &in) {
		return
	}

	p, err := h.hub.UpdateProfile(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, p, http.StatusOK)
}

func (h *UserHandler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var in hub.OpportunityInput
	if !decode(w, r, &in) {
		return
	}

	ev, err := h.hub.SubmitEvent(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, ev, http.StatusCreated)
}
