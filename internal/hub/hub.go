// Package hub is the application controller. It owns the shared catalog cache
// and one Session per signed-in user, and runs every user and admin operation
// against the document store. Session state changes only through auth events
// and the operations below.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

var (
	ErrAuthRequired         = errors.New("sign in required")
	ErrForbidden            = errors.New("admin role required")
	ErrDuplicateApplication = errors.New("already applied for this opportunity")
	ErrBuiltinCategory      = errors.New("built-in categories cannot be changed")
	ErrSelfAction           = errors.New("this action cannot target your own account")
	ErrInvalidInput         = errors.New("invalid input")
)

// Accounts is the part of the auth collaborator the hub calls back into.
type Accounts interface {
	Verify(ctx context.Context, id *auth.Identity) error
	UpdateDisplayName(ctx context.Context, email, name string) error
	DeleteAccount(ctx context.Context, uid, email string) error
}

// Validator checks a payload against a stored JSON schema.
type Validator interface {
	Validate(ctx context.Context, name, version string, payload any) error
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error)
}

type Options struct {
	// FeaturedLimit caps the featured list; 0 means 6.
	FeaturedLimit int
	// IsAdminEmail promotes matching users when their session starts.
	IsAdminEmail func(email string) bool
	Accounts     Accounts
	Validator    Validator
	Jobs         Enqueuer
	// SummaryLength is the synchronous card preview length.
	SummaryLength int
	Logger        *slog.Logger
	Now           func() time.Time
}

type Hub struct {
	store         docstore.Store
	accounts      Accounts
	validator     Validator
	jobs          Enqueuer
	isAdminEmail  func(string) bool
	featured      int
	summaryLength int
	logger        *slog.Logger
	now           func() time.Time

	catMu  sync.RWMutex
	view   catalog.View
	loaded bool

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(store docstore.Store, opts Options) *Hub {
	h := &Hub{
		store:         store,
		accounts:      opts.Accounts,
		validator:     opts.Validator,
		jobs:          opts.Jobs,
		isAdminEmail:  opts.IsAdminEmail,
		featured:      opts.FeaturedLimit,
		summaryLength: opts.SummaryLength,
		logger:        opts.Logger,
		now:           opts.Now,
		view:          catalog.NewView(nil, catalog.DefaultFilters()),
		sessions:      make(map[string]*Session),
	}
	if h.featured <= 0 {
		h.featured = 6
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.isAdminEmail == nil {
		h.isAdminEmail = func(string) bool { return false }
	}

	return h
}

func (h *Hub) millis() int64 { return h.now().UTC().UnixMilli() }

// Session is the state of one signed-in user.
type Session struct {
	mu      sync.Mutex
	id      auth.Identity
	profile models.UserProfile
	saved   map[string]bool
	filters catalog.Filters
}

// SessionState is a read-only snapshot of a Session.
type SessionState struct {
	Identity auth.Identity      `json:"identity"`
	Profile  models.UserProfile `json:"profile"`
	IsAdmin  bool               `json:"isAdmin"`
	Saved    []string           `json:"saved"`
	Filters  catalog.Filters    `json:"filters"`
}

func (s *Session) snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]string, 0, len(s.saved))
	for id := range s.saved {
		saved = append(saved, id)
	}
	sort.Strings(saved)

	p := s.profile
	p.Skills = append([]string{}, p.Skills...)

	return SessionState{Identity: s.id, Profile: p, IsAdmin: p.IsAdmin(), Saved: saved, Filters: s.filters}
}

func (s *Session) isAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.IsAdmin()
}

func (s *Session) identity() auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// HandleAuthEvent is the auth listener: a sign-in (re)starts the session, a
// sign-out drops it.
func (h *Hub) HandleAuthEvent(ctx context.Context, ev auth.Event) {
	if ev.Identity == nil {
		h.EndSession(ev.UID)
		return
	}

	h.EndSession(ev.UID)
	if _, err := h.session(ctx, ev.Identity); err != nil {
		h.logger.Error("start session", "uid", ev.UID, "err", err)
	}
}

// EndSession forgets the state of uid.
func (h *Hub) EndSession(uid string) {
	h.mu.Lock()
	delete(h.sessions, uid)
	h.mu.Unlock()
}

// State returns the session snapshot of id, starting the session if needed.
func (h *Hub) State(ctx context.Context, id *auth.Identity) (SessionState, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return SessionState{}, err
	}

	return s.snapshot(), nil
}

func (h *Hub) lookup(uid string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[uid]
	return s, ok
}

// session returns the live session of id or starts one: the account is
// verified, the profile created on first use and the saved set loaded.
func (h *Hub) session(ctx context.Context, id *auth.Identity) (*Session, error) {
	if id == nil || id.UID == "" {
		return nil, ErrAuthRequired
	}
	if s, ok := h.lookup(id.UID); ok {
		return s, nil
	}

	if h.accounts != nil {
		if err := h.accounts.Verify(ctx, id); err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				return nil, ErrAuthRequired
			}
			return nil, err
		}
	}

	ident := *id
	profile, err := h.ensureProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	if profile.Name != "" {
		ident.DisplayName = profile.Name
	}

	marks := h.savedMarks(ctx, ident.UID)
	s := &Session{
		id:      ident,
		profile: profile,
		saved:   make(map[string]bool, len(marks)),
		filters: catalog.DefaultFilters(),
	}
	for _, m := range marks {
		s.saved[m.OpportunityID] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.sessions[id.UID]; ok {
		return cur, nil
	}
	h.sessions[id.UID] = s
	h.logger.Debug("session started", "uid", id.UID, "role", profile.Role, "saved", len(marks))

	return s, nil
}

func (h *Hub) ensureProfile(ctx context.Context, id auth.Identity) (models.UserProfile, error) {
	p, err := h.loadProfile(ctx, id.UID)
	if err != nil {
		return models.UserProfile{}, err
	}

	if p == nil {
		name := id.DisplayName
		if name == "" {
			name = "User"
		}
		fresh := models.UserProfile{
			Name:      name,
			Email:     id.Email,
			Role:      models.RoleUser,
			Skills:    []string{},
			CreatedAt: h.millis(),
		}
		if h.isAdminEmail(id.Email) {
			fresh.Role = models.RoleAdmin
		}
		err := h.store.Create(ctx, models.CollUsers, id.UID, fresh)
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return h.ensureProfile(ctx, id)
		}
		if err != nil {
			return models.UserProfile{}, fmt.Errorf("create profile: %w", err)
		}
		fresh.ID = id.UID

		return fresh, nil
	}

	if !p.IsAdmin() && h.isAdminEmail(id.Email) {
		if err := h.store.Update(ctx, models.CollUsers, id.UID, map[string]any{"role": models.RoleAdmin}); err != nil {
			return models.UserProfile{}, fmt.Errorf("bootstrap admin: %w", err)
		}
		p.Role = models.RoleAdmin
		h.logger.Info("admin role granted from config", "uid", id.UID)
	}
	if p.Role == "" {
		p.Role = models.RoleUser
	}

	return *p, nil
}

func (h *Hub) loadProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	doc, err := h.store.Get(ctx, models.CollUsers, uid)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	p, err := models.DecodeProfile(*doc)
	if err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	return &p, nil
}

// requireAdmin returns the session of id when it holds the admin role.
func (h *Hub) requireAdmin(ctx context.Context, id *auth.Identity) (*Session, error) {
	s, err := h.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.isAdmin() {
		return nil, ErrForbidden
	}

	return s, nil
}

// CheckAdmin fails unless id holds the admin role. It guards admin surfaces
// that live outside the hub.
func (h *Hub) CheckAdmin(ctx context.Context, id *auth.Identity) error {
	_, err := h.requireAdmin(ctx, id)
	return err
}

// setRole updates the live session of uid after a role change.
func (h *Hub) setRole(uid, role string) {
	if s, ok := h.lookup(uid); ok {
		s.mu.Lock()
		s.profile.Role = role
		s.mu.Unlock()
	}
}

// audit records a user action. Failures are logged and swallowed.
func (h *Hub) audit(ctx context.Context, s *Session, action, details string, metadata map[string]any) {
	id := s.identity()
	name := id.DisplayName
	if name == "" {
		name = "Unknown"
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	entry := models.UserLogEntry{
		UserID:    id.UID,
		UserName:  name,
		UserEmail: id.Email,
		Action:    action,
		Details:   details,
		Metadata:  metadata,
		Timestamp: h.millis(),
	}
	if _, err := h.store.Add(ctx, models.CollUserLogs, entry); err != nil {
		h.logger.Warn("audit log write failed", "action", action, "uid", id.UID, "err", err)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	return invalid("%s required", strings.Join(missing, ", "))
}
