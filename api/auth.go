package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/hub"
)

// Accounts is the auth service as used by the HTTP layer.
type Accounts interface {
	SignUp(ctx context.Context, email, password, confirm, name string) (*auth.Identity, string, error)
	SignIn(ctx context.Context, email, password string) (*auth.Identity, string, error)
	SignOut(ctx context.Context, uid string)
}

type AuthHandler struct {
	accounts Accounts
	hub      *hub.Hub
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(accounts Accounts, h *hub.Hub) *AuthHandler {
	return &AuthHandler{accounts: accounts, hub: h}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string         `json:"token"`
	Identity *auth.Identity `json:"identity"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}

	id, token, err := h.accounts.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, authResponse{Token: token, Identity: id}, http.StatusCreated)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !decode(w, r, &req) {
		return
	}

	id, token, err := h.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, authResponse{Token: token, Identity: id}, http.StatusOK)
}

// Signout drops the server side session. The client discards its token.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	h.accounts.SignOut(r.Context(), identity(r).UID)
	writeJSON(w, map[string]string{"message": "signed out"}, http.StatusOK)
}

// Me returns the session state of the caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	st, err := h.hub.State(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, st, http.StatusOK)
}
