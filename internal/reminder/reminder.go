// Package reminder sends deadline reminders for saved opportunities on a cron
// schedule.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

// Kind marks reminder notifications.
const Kind = "deadline_reminder"

// NotificationID is deterministic so a deadline is announced once per user.
func NotificationID(opportunityID string) string {
	return "deadline-" + opportunityID
}

// deadlineLayouts are the accepted deadline formats, date-only first.
var deadlineLayouts = []string{"2006-01-02", time.RFC3339}

// ParseDeadline reads an opportunity deadline. A date without a time means
// the end of that day in UTC.
func ParseDeadline(s string) (time.Time, bool) {
	for _, layout := range deadlineLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, true
	}

	return time.Time{}, false
}

type Options struct {
	// Schedule is a standard five field cron spec.
	Schedule string
	// Window is how far ahead a deadline triggers a reminder.
	Window time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

type Scheduler struct {
	store    docstore.Store
	cron     *cron.Cron
	schedule string
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(store docstore.Store, opts Options) (*Scheduler, error) {
	s := &Scheduler{
		store:    store,
		schedule: opts.Schedule,
		window:   opts.Window,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.schedule == "" {
		s.schedule = "0 8 * * *"
	}
	if s.window <= 0 {
		s.window = 72 * time.Hour
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", s.schedule, err)
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	return s, nil
}

// Start registers the sweep and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		n, err := s.RunNow(ctx)
		if err != nil {
			s.logger.Error("deadline reminder sweep", "err", err)
			return
		}
		s.logger.Info("deadline reminder sweep done", "sent", n)
	})
	if err != nil {
		return fmt.Errorf("register reminder sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("reminder scheduler started", "schedule", s.schedule, "window", s.window)

	return nil
}

// Stop halts the runner and waits for a running sweep until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("reminder sweep still running at shutdown")
	}
}

// RunNow sweeps every user's saved opportunities once and returns how many
// reminders were created.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	users, err := s.store.Query(ctx, models.CollUsers, docstore.Query{})
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	now := s.now().UTC()
	opps := map[string]*models.Opportunity{}
	sent := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		marks, err := s.store.Query(ctx, models.SavedCollection(u.ID), docstore.Query{})
		if err != nil {
			s.logger.Warn("load saved marks", "uid", u.ID, "err", err)
			continue
		}
		for _, d := range marks {
			m, err := models.DecodeSavedMark(d)
			if err != nil {
				continue
			}
			o, err := s.opportunity(ctx, opps, m.OpportunityID)
			if err != nil {
				s.logger.Warn("load saved opportunity", "opportunity", m.OpportunityID, "err", err)
				continue
			}
			if o == nil || !s.due(*o, now) {
				continue
			}

			ok, err := s.notify(ctx, u.ID, *o, now)
			if err != nil {
				s.logger.Warn("create reminder", "uid", u.ID, "opportunity", o.ID, "err", err)
				continue
			}
			if ok {
				sent++
			}
		}
	}

	return sent, nil
}

func (s *Scheduler) opportunity(ctx context.Context, cache map[string]*models.Opportunity, id string) (*models.Opportunity, error) {
	if o, ok := cache[id]; ok {
		return o, nil
	}
	doc, err := s.store.Get(ctx, models.CollOpportunities, id)
	if err != nil {
		return nil, err
	}
	var o *models.Opportunity
	if doc != nil {
		decoded, err := models.DecodeOpportunity(*doc)
		if err != nil {
			return nil, err
		}
		o = &decoded
	}
	cache[id] = o

	return o, nil
}

func (s *Scheduler) due(o models.Opportunity, now time.Time) bool {
	if !o.IsActive() || o.Deadline == "" {
		return false
	}
	deadline, ok := ParseDeadline(o.Deadline)
	if !ok {
		return false
	}

	return !deadline.Before(now) && deadline.Sub(now) <= s.window
}

func (s *Scheduler) notify(ctx context.Context, uid string, o models.Opportunity, now time.Time) (bool, error) {
	note := models.Notification{
		Title:         "Deadline approaching",
		Message:       fmt.Sprintf("Applications for %q close on %s.", o.Title, o.Deadline),
		Kind:          Kind,
		OpportunityID: o.ID,
		CreatedAt:     now.UnixMilli(),
	}
	err := s.store.Create(ctx, models.NotificationsCollection(uid), NotificationID(o.ID), note)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
