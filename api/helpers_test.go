package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/opphub/api"
	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/pkg/docstore/mock"
)

const (
	secret     = "testsecret"
	adminEmail = "admin@example.com"
)

type server struct {
	router *mux.Router
	store  *mock.Store
	auth   *auth.Service
	hub    *hub.Hub
}

func newServer(t *testing.T, mod func(*api.Deps)) *server {
	t.Helper()

	s := &server{store: mock.New()}
	s.auth = auth.NewService(s.store, secret, time.Hour, nil)
	s.auth.HashCost = bcrypt.MinCost
	s.hub = hub.New(s.store, hub.Options{
		IsAdminEmail: func(e string) bool { return e == adminEmail },
		Accounts:     s.auth,
	})
	s.auth.Subscribe(s.hub.HandleAuthEvent)

	deps := api.Deps{Hub: s.hub, Auth: s.auth}
	if mod != nil {
		mod(&deps)
	}
	s.router = api.SetupRoutes(deps, "test", "now")

	return s
}

// signUp registers through the API and returns the bearer token.
func (s *server) signUp(t *testing.T, email, name string) string {
	t.Helper()
	res, body := s.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret1", "confirmPassword": "secret1",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup %s: status %d body=%s", email, res.StatusCode, body)
	}
	var ar struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &ar); err != nil || ar.Token == "" {
		t.Fatalf("signup %s: no token in %s", email, body)
	}

	return ar.Token
}

func (s *server) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	res := w.Result()
	t.Cleanup(func() { _ = res.Body.Close() })
	data, _ := io.ReadAll(res.Body)

	return res, data
}

func decodeBody[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}

	return v
}
