// Package ollama is a small client for a local Ollama instance with retries,
// per-request timeouts and a circuit breaker.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

var (
	ErrCircuitOpen  = errors.New("ollama circuit open")
	ErrModelMissing = errors.New("ollama model not pulled")
)

// Reply is the joined text of a streamed generation.
type Reply struct {
	Text    string        `json:"text"`
	Model   string        `json:"model"`
	Tokens  int           `json:"tokens"`
	Latency time.Duration `json:"latency"`
}

type Client struct {
	api       *api.Client
	http      *http.Client
	cfg       Config
	brk       *breaker
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewClient builds a client on httpClient. A nil httpClient gets a pooled
// transport suited to a long-lived server.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}}
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("ollama client created", "base_url", cfg.BaseURL, "model", cfg.Model)
	return &Client{
		api:    api.NewClient(u, httpClient),
		http:   httpClient,
		cfg:    cfg,
		brk:    newBreaker(cfg.CircuitFailureThreshold, cfg.CircuitReset),
		logger: logger,
	}, nil
}

// Close drops idle connections of the underlying transport. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if tr, ok := c.http.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	})

	return nil
}

// transient reports whether a retry may succeed. Client errors (4xx) are
// final.
func transient(err error) bool {
	var se api.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}

	return !errors.Is(err, context.Canceled)
}

// Generate runs prompt on model and joins the streamed chunks. An empty model
// selects Config.Model.
func (c *Client) Generate(ctx context.Context, model, prompt string) (Reply, error) {
	if model == "" {
		model = c.cfg.Model
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.cfg.Backoff*time.Duration(attempt)); err != nil {
				return Reply{}, err
			}
		}
		if !c.brk.allow() {
			return Reply{}, ErrCircuitOpen
		}

		reply, err := c.generateOnce(ctx, model, prompt)
		if err == nil {
			c.brk.success()
			return reply, nil
		}
		c.brk.failure()
		lastErr = err
		if ctx.Err() != nil {
			return Reply{}, ctx.Err()
		}
		if !transient(err) {
			break
		}
		c.logger.Debug("ollama generate failed", "attempt", attempt+1, "err", err)
	}

	return Reply{}, fmt.Errorf("generate with %s: %w", model, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, model, prompt string) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var text strings.Builder
	reply := Reply{Model: model}
	start := time.Now()
	err := c.api.Generate(ctx, &api.GenerateRequest{Model: model, Prompt: prompt}, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		if r.Done {
			reply.Tokens = r.EvalCount
		}
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	reply.Text = text.String()
	reply.Latency = time.Since(start)

	return reply, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Health checks that the instance answers and that the configured model is
// pulled. Tags like "llama3:latest" satisfy a bare "llama3".
func (c *Client) Health(ctx context.Context) error {
	if !c.brk.allow() {
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	list, err := c.api.List(ctx)
	if err != nil {
		c.brk.failure()
		return fmt.Errorf("list models: %w", err)
	}
	c.brk.success()

	if c.cfg.Model == "" {
		if len(list.Models) == 0 {
			return ErrModelMissing
		}
		return nil
	}
	for _, m := range list.Models {
		if m.Name == c.cfg.Model || strings.TrimSuffix(m.Name, ":latest") == c.cfg.Model {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrModelMissing, c.cfg.Model)
}
