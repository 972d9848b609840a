package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/opphub/internal/hub"
)

func TestAuthHandlers(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		prepare    func(t *testing.T, s *server)
		wantStatus int
		checkBody  func(t *testing.T, body []byte)
	}{
		{
			name:       "Signup_InvalidRequest",
			path:       "/v1/auth/signup",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_MissingFields_Name",
			path:       "/v1/auth/signup",
			body:       map[string]string{"email": "alice@example.com", "password": "s3cret", "confirmPassword": "s3cret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_PasswordMismatch",
			path:       "/v1/auth/signup",
			body:       map[string]string{"name": "Alice", "email": "alice@example.com", "password": "s3cret", "confirmPassword": "s3cre7"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_WeakPassword",
			path:       "/v1/auth/signup",
			body:       map[string]string{"name": "Alice", "email": "alice@example.com", "password": "abc", "confirmPassword": "abc"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_BadEmail",
			path:       "/v1/auth/signup",
			body:       map[string]string{"name": "Alice", "email": "alice", "password": "s3cret", "confirmPassword": "s3cret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "Signup_EmailTaken",
			path: "/v1/auth/signup",
			body: map[string]string{"name": "Alice", "email": "Alice@Example.com", "password": "s3cret", "confirmPassword": "s3cret"},
			prepare: func(t *testing.T, s *server) {
				s.signUp(t, "alice@example.com", "Alice")
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "Signup_Success",
			path:       "/v1/auth/signup",
			body:       map[string]string{"name": "Alice", "email": "alice@example.com", "password": "s3cret", "confirmPassword": "s3cret"},
			wantStatus: http.StatusCreated,
			checkBody: func(t *testing.T, b []byte) {
				if !bytes.Contains(b, []byte(`"displayName":"Alice"`)) {
					t.Fatalf("expected identity in %s", b)
				}
			},
		},
		{
			name:       "Signin_UnknownUser",
			path:       "/v1/auth/signin",
			body:       map[string]string{"email": "bob@example.com", "password": "hunter2"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "Signin_WrongPassword",
			path: "/v1/auth/signin",
			body: map[string]string{"email": "bob@example.com", "password": "wrongpw"},
			prepare: func(t *testing.T, s *server) {
				s.signUp(t, "bob@example.com", "Bob")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "Signin_Success",
			path: "/v1/auth/signin",
			body: map[string]string{"email": "bob@example.com", "password": "secret1"},
			prepare: func(t *testing.T, s *server) {
				s.signUp(t, "bob@example.com", "Bob")
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, nil)
			if tt.prepare != nil {
				tt.prepare(t, s)
			}

			res, data := s.do(t, http.MethodPost, tt.path, "", tt.body)
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("%s: expected status %d got %d body=%s", tt.name, tt.wantStatus, res.StatusCode, string(data))
			}
			if tt.checkBody != nil {
				tt.checkBody(t, data)
			}
			if res.StatusCode >= 300 {
				if !bytes.Contains(data, []byte(`"error"`)) {
					t.Fatalf("expected json error body, got %s", data)
				}
				return
			}

			var ar struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(data, &ar); err != nil || ar.Token == "" {
				t.Fatalf("missing token in %s", data)
			}
			tok, err := jwt.Parse(ar.Token, func(token *jwt.Token) (any, error) { return []byte(secret), nil })
			if err != nil {
				t.Fatalf("parse token: %v", err)
			}
			claims, _ := tok.Claims.(jwt.MapClaims)
			if sub, _ := claims["sub"].(string); sub == "" {
				t.Fatalf("missing sub claim")
			}
			if expF, ok := claims["exp"].(float64); !ok || int64(expF) < time.Now().Unix() {
				t.Fatalf("invalid exp claim")
			}
		})
	}
}

func TestMeAndSignout(t *testing.T) {
	s := newServer(t, nil)
	token := s.signUp(t, "ann@example.com", "Ann")

	res, body := s.do(t, http.MethodGet, "/v1/me", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d body=%s", res.StatusCode, body)
	}
	st := decodeBody[hub.SessionState](t, body)
	if st.Identity.Email != "ann@example.com" || st.IsAdmin || st.Profile.Name != "Ann" {
		t.Fatalf("unexpected state %+v", st)
	}

	if res, _ := s.do(t, http.MethodGet, "/v1/me", "", nil); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous me: expected 401, got %d", res.StatusCode)
	}

	res, body = s.do(t, http.MethodPost, "/v1/auth/signout", token, nil)
	if res.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("signed out")) {
		t.Fatalf("signout: status %d body=%s", res.StatusCode, body)
	}
}
