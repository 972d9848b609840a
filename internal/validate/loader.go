// Package validate checks document payloads against JSON schemas stored in
// the database.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/opphub/pkg/repository"
)

// Error lists the schema violations of a payload.
type Error struct {
	Schema string
	Issues []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("payload does not match schema %s: %s", e.Schema, strings.Join(e.Issues, "; "))
}

// Loader loads and caches compiled JSON schemas from the repository.
type Loader struct {
	repo  repository.SchemaRepo
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

func NewLoader(ctx context.Context, r repository.SchemaRepo) (*Loader, error) {
	l := &Loader{
		repo:  r,
		cache: make(map[string]*jsonschema.Schema),
	}
	// initial load
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}

	return l, nil
}

func key(name, version string) string { return name + ":" + version }

// GetSchema returns a compiled schema for a name and version.
func (l *Loader) GetSchema(name, version string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[key(name, version)]
	l.mu.RUnlock()

	return s, ok
}

// Reload loads all schemas from the DB and compiles them. The cache is only
// replaced when every schema compiles.
func (l *Loader) Reload(ctx context.Context) error {
	rows, err := l.repo.ListSchemas(ctx)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	newCache := make(map[string]*jsonschema.Schema)
	for _, r := range rows {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(r.SchemaJSON), rs); err != nil {
			return fmt.Errorf("compile schema %s:%s: %w", r.Name, r.Version, err)
		}

		newCache[key(r.Name, r.Version)] = rs
	}

	l.mu.Lock()
	l.cache = newCache
	l.mu.Unlock()

	return nil
}

// Validate checks payload against the named schema. A missing schema is not
// an error so the hub keeps working before schemas are seeded.
func (l *Loader) Validate(ctx context.Context, name, version string, payload any) error {
	s, ok := l.GetSchema(name, version)
	if !ok {
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	verrs, err := s.ValidateBytes(ctx, b)
	if err != nil {
		return fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) == 0 {
		return nil
	}

	issues := make([]string, 0, len(verrs))
	for _, v := range verrs {
		if v.PropertyPath != "" && v.PropertyPath != "/" {
			issues = append(issues, v.PropertyPath+": "+v.Message)
			continue
		}
		issues = append(issues, v.Message)
	}

	return &Error{Schema: key(name, version), Issues: issues}
}
