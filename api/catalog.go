package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/pkg/models"
)

// CatalogHandler serves the public pages: home, browse, events, details,
// categories and the contact form.
type CatalogHandler struct {
	hub *hub.Hub
}

func NewCatalogHandler(h *hub.Hub) *CatalogHandler {
	return &CatalogHandler{hub: h}
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: len(items)}
}

func (h *CatalogHandler) Featured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, list(h.hub.Featured(r.Context())), http.StatusOK)
}

func (h *CatalogHandler) Events(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, list(h.hub.Events(r.Context())), http.StatusOK)
}

// Browse filters the catalog. Without type or category parameters a signed-in
// caller keeps the filters of the session.
func (h *CatalogHandler) Browse(w http.ResponseWriter, r *http.Request) {
	var f *catalog.Filters
	q := r.URL.Query()
	if q.Has("type") || q.Has("category") {
		f = &catalog.Filters{Type: q.Get("type"), Category: q.Get("category")}
	}

	res, err := h.hub.Browse(r.Context(), identity(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, res, http.StatusOK)
}

func (h *CatalogHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	res, err := h.hub.ClearFilters(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, res, http.StatusOK)
}

type opportunityResponse struct {
	models.Opportunity
	CategoryLabel string `json:"categoryLabel"`
}

func (h *CatalogHandler) Opportunity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.hub.Opportunity(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, opportunityResponse{Opportunity: o, CategoryLabel: catalog.CategoryLabel(h.hub.Categories(ctx), o.Category)}, http.StatusOK)
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, list(h.hub.Categories(r.Context())), http.StatusOK)
}

func (h *CatalogHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var in hub.ContactInput
	if !decode(w, r, &in) {
		return
	}

	msgID, err := h.hub.SubmitContact(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, map[string]string{"id": msgID}, http.StatusCreated)
}
