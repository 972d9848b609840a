// Package summary produces the short preview text shown on opportunity cards.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/garnizeh/opphub/internal/models"
	"github.com/garnizeh/opphub/pkg/docstore"
	pmodels "github.com/garnizeh/opphub/pkg/models"
	"github.com/garnizeh/opphub/pkg/ollama"
)

// JobType is the background job that refreshes an opportunity summary.
const JobType = "opportunity.summarize"

// DefaultLength is the preview length in runes.
const DefaultLength = 100

// Payload is the body of a JobType job.
type Payload struct {
	OpportunityID string `json:"opportunityId"`
}

// Truncate keeps the first n runes of s and marks the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 {
		n = DefaultLength
	}
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return strings.TrimSpace(string(r[:n])) + "..."
}

// Summarizer writes a card preview for an opportunity.
type Summarizer interface {
	Summarize(ctx context.Context, o pmodels.Opportunity) (string, error)
}

// Prefix is the Summarizer used when no model is configured.
type Prefix struct {
	MaxLength int
}

func (p Prefix) Summarize(_ context.Context, o pmodels.Opportunity) (string, error) {
	return Truncate(o.Description, p.MaxLength), nil
}

// Generator is the part of the Ollama client the LLM summarizer uses.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (ollama.Reply, error)
}

// LLM asks a local model for a one sentence summary and falls back to Prefix
// when the model fails or answers with nothing usable.
type LLM struct {
	gen      Generator
	model    string
	fallback Prefix
	logger   *slog.Logger
}

func NewLLM(gen Generator, model string, maxLength int, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}

	return &LLM{gen: gen, model: model, fallback: Prefix{MaxLength: maxLength}, logger: logger}
}

var promptTemplate = template.Must(template.New("summary").Option("missingkey=zero").Parse(`Summarize this tech opportunity in one sentence of at most {{.Limit}} characters.
Answer with the sentence only.

Title: {{.Title}}
Type: {{.Type}}
{{if .Company}}Company: {{.Company}}
{{end}}Description:
{{.Description}}`))

func (l *LLM) Summarize(ctx context.Context, o pmodels.Opportunity) (string, error) {
	limit := l.fallback.MaxLength
	if limit <= 0 {
		limit = DefaultLength
	}

	var prompt strings.Builder
	if err := promptTemplate.Execute(&prompt, map[string]any{
		"Limit":       limit,
		"Title":       o.Title,
		"Type":        o.Type,
		"Company":     o.Company,
		"Description": o.Description,
	}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	res, err := l.gen.Generate(ctx, l.model, prompt.String())
	if err != nil {
		if errors.Is(err, ollama.ErrCircuitOpen) {
			l.logger.Debug("summarizer circuit open, using prefix", "opportunity", o.ID)
		} else {
			l.logger.Warn("summarizer failed, using prefix", "opportunity", o.ID, "err", err)
		}

		return l.fallback.Summarize(ctx, o)
	}

	text := strings.Trim(strings.TrimSpace(res.Text), `"`)
	if text == "" {
		return l.fallback.Summarize(ctx, o)
	}

	return Truncate(text, limit), nil
}

// Handler returns the job handler that stores a fresh summary and passes the
// updated record to onStored, which may be nil. A deleted opportunity
// completes the job without error.
func Handler(store docstore.Store, s Summarizer, onStored func(pmodels.Opportunity), logger *slog.Logger) func(ctx context.Context, j *models.BackgroundJob) error {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p Payload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if p.OpportunityID == "" {
			return errors.New("payload has no opportunityId")
		}

		doc, err := store.Get(ctx, pmodels.CollOpportunities, p.OpportunityID)
		if err != nil {
			return fmt.Errorf("load opportunity: %w", err)
		}
		if doc == nil {
			logger.Info("opportunity gone, skipping summary", "opportunity", p.OpportunityID)
			return nil
		}
		o, err := pmodels.DecodeOpportunity(*doc)
		if err != nil {
			return fmt.Errorf("decode opportunity: %w", err)
		}

		text, err := s.Summarize(ctx, o)
		if err != nil {
			return err
		}
		if text == o.Summary {
			return nil
		}

		err = store.Update(ctx, pmodels.CollOpportunities, o.ID, map[string]any{"summary": text})
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store summary: %w", err)
		}
		logger.Debug("summary stored", "opportunity", o.ID, "job", j.ID)

		if onStored != nil {
			o.Summary = text
			onStored(o)
		}

		return nil
	}
}
