package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/pkg/repository"
)

// Reloader recompiles the cached validation schemas.
type Reloader interface {
	Reload(ctx context.Context) error
}

// AdminChecker guards the schema endpoints.
type AdminChecker interface {
	CheckAdmin(ctx context.Context, id *auth.Identity) error
}

// SchemaHandler manages the JSON schemas that validate opportunity and
// profile payloads.
type SchemaHandler struct {
	admins     AdminChecker
	schemaRepo repository.SchemaRepo
	reloader   Reloader
}

func NewSchemaHandler(admins AdminChecker, schemaRepo repository.SchemaRepo, reloader Reloader) *SchemaHandler {
	return &SchemaHandler{admins: admins, schemaRepo: schemaRepo, reloader: reloader}
}

func (h *SchemaHandler) allowed(w http.ResponseWriter, r *http.Request) bool {
	if err := h.admins.CheckAdmin(r.Context(), identity(r)); err != nil {
		writeError(w, r, err)
		return false
	}

	return true
}

func (h *SchemaHandler) reload(ctx context.Context) error {
	if h.reloader == nil {
		return nil
	}

	return h.reloader.Reload(ctx)
}

func (h *SchemaHandler) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	if err := h.reload(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("reload schemas: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SchemaHandler) ListSchemasHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	rows, err := h.schemaRepo.ListSchemas(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("list schemas: %w", err))
		return
	}

	writeJSON(w, list(rows), http.StatusOK)
}

type schemaPayload struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	SchemaJSON  json.RawMessage `json:"schema_json"`
}

// CreateOrUpdateSchemaHandler validates and stores a schema, then reloads the
// validator so the change applies to the next write.
func (h *SchemaHandler) CreateOrUpdateSchemaHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	var p schemaPayload
	if !decode(w, r, &p) {
		return
	}
	if p.Name == "" || p.Version == "" {
		writeMessage(w, "name and version required", http.StatusBadRequest)
		return
	}

	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(p.SchemaJSON, rs); err != nil {
		writeMessage(w, fmt.Sprintf("invalid schema json: %v", err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := h.schemaRepo.CreateSchema(ctx, p.Name, p.Version, p.Description, string(p.SchemaJSON)); err != nil {
		writeError(w, r, fmt.Errorf("store schema: %w", err))
		return
	}
	if err := h.reload(ctx); err != nil {
		writeError(w, r, fmt.Errorf("reload schemas: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SchemaHandler) GetSchemaHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	vars := mux.Vars(r)
	s, err := h.schemaRepo.GetSchema(r.Context(), vars["name"], vars["version"])
	if err != nil {
		writeError(w, r, fmt.Errorf("get schema: %w", err))
		return
	}
	if s == nil {
		writeMessage(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, s, http.StatusOK)
}

func (h *SchemaHandler) DeleteSchemaHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	vars := mux.Vars(r)
	ctx := r.Context()
	if err := h.schemaRepo.DeleteSchema(ctx, vars["name"], vars["version"]); err != nil {
		writeError(w, r, fmt.Errorf("delete schema: %w", err))
		return
	}
	if err := h.reload(ctx); err != nil {
		writeError(w, r, fmt.Errorf("reload schemas: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
