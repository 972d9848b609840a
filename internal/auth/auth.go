// Package auth is the identity collaborator: email and password accounts
// stored as documents, HS256 session tokens and session-changed events.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMissingFields      = errors.New("missing fields")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Identity is the signed-in user as seen by the rest of the hub.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Event reports a session change for UID; a nil Identity means signed out.
type Event struct {
	UID      string
	Identity *Identity
}

// Listener receives session-changed events synchronously.
type Listener func(ctx context.Context, ev Event)

type Service struct {
	store     docstore.Store
	secret    []byte
	ttl       time.Duration
	logger    *slog.Logger
	mu        sync.RWMutex
	listeners []Listener

	// HashCost is the bcrypt cost for new passwords.
	HashCost int
}

func NewService(store docstore.Store, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{store: store, secret: []byte(secret), ttl: ttl, logger: logger, HashCost: bcrypt.DefaultCost}
}

// Subscribe registers l for every later session change.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) notify(ctx context.Context, ev Event) {
	s.mu.RLock()
	ls := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range ls {
		l(ctx, ev)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, confirm, name string) (*Identity, string, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, "", ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", ErrInvalidEmail
	}
	if password != confirm {
		return nil, "", ErrPasswordMismatch
	}
	if len(password) < minPasswordLength {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.HashCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	acc := models.Account{
		UID:          uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().UnixMilli(),
	}
	if err := s.store.Create(ctx, models.CollAccounts, email, acc); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	return s.start(ctx, acc)
}

// SignIn checks credentials and signs the account in.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Identity, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", ErrMissingFields
	}

	acc, err := s.account(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if acc == nil || bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	return s.start(ctx, *acc)
}

// SignOut ends the server side session of uid. Tokens are stateless and the
// client discards its copy.
func (s *Service) SignOut(ctx context.Context, uid string) {
	s.notify(ctx, Event{UID: uid})
}

func (s *Service) start(ctx context.Context, acc models.Account) (*Identity, string, error) {
	id := &Identity{UID: acc.UID, Email: acc.Email, DisplayName: acc.Name}
	token, err := s.Issue(id)
	if err != nil {
		return nil, "", err
	}
	s.notify(ctx, Event{UID: id.UID, Identity: id})

	return id, token, nil
}

// Issue signs a session token for id.
func (s *Service) Issue(id *Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   id.UID,
		"email": id.Email,
		"name":  id.DisplayName,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a session token and returns its identity.
func (s *Service) ParseToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Identity{UID: sub, Email: email, DisplayName: name}, nil
}

// Verify checks that the account behind id still exists, so tokens of deleted
// users stop opening sessions.
func (s *Service) Verify(ctx context.Context, id *Identity) error {
	acc, err := s.account(ctx, normalizeEmail(id.Email))
	if err != nil {
		return err
	}
	if acc == nil || acc.UID != id.UID {
		return ErrInvalidToken
	}

	return nil
}

func (s *Service) account(ctx context.Context, email string) (*models.Account, error) {
	doc, err := s.store.Get(ctx, models.CollAccounts, email)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	acc, err := models.DecodeAccount(*doc)
	if err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}

	return &acc, nil
}

// UpdateDisplayName mirrors a profile name change onto the account.
func (s *Service) UpdateDisplayName(ctx context.Context, email, name string) error {
	email = normalizeEmail(email)
	if err := s.store.Update(ctx, models.CollAccounts, email, map[string]any{"name": name}); err != nil {
		return fmt.Errorf("update display name: %w", err)
	}

	return nil
}

// DeleteAccount removes the credentials of email and ends its session.
func (s *Service) DeleteAccount(ctx context.Context, uid, email string) error {
	if err := s.store.Delete(ctx, models.CollAccounts, normalizeEmail(email)); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.notify(ctx, Event{UID: uid})

	return nil
}
