package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/internal/validate"
	"github.com/garnizeh/opphub/pkg/docstore"
)

type errorResponse struct {
	Error  string   `json:"error"`
	Issues []string `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func writeMessage(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, errorResponse{Error: msg}, status)
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var verr *validate.Error
	switch {
	case errors.Is(err, hub.ErrAuthRequired), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, hub.ErrForbidden), errors.Is(err, hub.ErrSelfAction), errors.Is(err, hub.ErrBuiltinCategory):
		return http.StatusForbidden
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrDuplicateApplication), errors.Is(err, docstore.ErrAlreadyExists), errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case errors.As(err, &verr),
		errors.Is(err, hub.ErrInvalidInput),
		errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, docstore.ErrInvalidQuery):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// writeError answers with the status of err. Internal errors are logged and
// hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
		writeMessage(w, "internal error", status)
		return
	}

	resp := errorResponse{Error: err.Error()}
	var verr *validate.Error
	if errors.As(err, &verr) {
		resp.Issues = verr.Issues
	}
	writeJSON(w, resp, status)
}

// decode reads a JSON body into v and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeMessage(w, "invalid request", http.StatusBadRequest)
		return false
	}

	return true
}
