// Package docstore defines the document store contract the hub depends on:
// collections of JSON documents addressed by string ids, equality queries with
// a single descending order-by, and a batched delete.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrMissingIndex is returned when a query needs a composite index that
	// has not been declared.
	ErrMissingIndex = errors.New("missing composite index")
	// ErrInvalidQuery is returned for malformed collection paths or fields.
	ErrInvalidQuery = errors.New("invalid query")
)

// IndexError carries the index definition a query would need.
type IndexError struct {
	Collection string
	Fields     []string
	OrderBy    string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("query on %s requires composite index (%s) order by %s desc",
		e.Collection, strings.Join(e.Fields, ", "), e.OrderBy)
}

func (e *IndexError) Is(target error) bool { return target == ErrMissingIndex }

// Store is the document store collaborator.
type Store interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Add stores data under a generated id and returns it.
	Add(ctx context.Context, collection string, data any) (string, error)
	// Create stores data under id and fails with ErrAlreadyExists if taken.
	Create(ctx context.Context, collection, id string, data any) error
	// Set upserts data under id, replacing any previous body.
	Set(ctx context.Context, collection, id string, data any) error
	// Update merges fields into an existing document, ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete is a no-op for a missing document.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// BatchDelete removes all ids atomically.
	BatchDelete(ctx context.Context, collection string, ids []string) error
}

// Filter is an equality constraint on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query describes equality filters, an optional descending order-by field and
// an optional limit (0 means unlimited).
type Query struct {
	Where   []Filter
	OrderBy string
	Limit   int
}

// Where starts a query with one equality filter.
func Where(field string, value any) Query {
	return Query{Where: []Filter{{Field: field, Value: value}}}
}

// And adds another equality filter.
func (q Query) And(field string, value any) Query {
	q.Where = append(append([]Filter(nil), q.Where...), Filter{Field: field, Value: value})
	return q
}

// OrderDesc sets the descending order-by field.
func (q Query) OrderDesc(field string) Query {
	q.OrderBy = field
	return q
}

// Take sets the result limit.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// NeedsIndex reports whether the query combines equality filters with an
// ordering on a field that is not itself filtered.
func (q Query) NeedsIndex() bool {
	if q.OrderBy == "" || len(q.Where) == 0 {
		return false
	}
	for _, f := range q.Where {
		if f.Field != q.OrderBy {
			return true
		}
	}

	return false
}

// Fields returns the filtered field names in query order.
func (q Query) Fields() []string {
	out := make([]string, 0, len(q.Where))
	for _, f := range q.Where {
		out = append(out, f.Field)
	}

	return out
}

// Document is a stored JSON body and its id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if len(d.Data) == 0 {
		return fmt.Errorf("document %s has no data", d.ID)
	}

	return json.Unmarshal(d.Data, v)
}

// Field returns a top-level field of the body and whether it is present.
func (d Document) Field(name string) (any, bool) {
	var m map[string]any
	if err := json.Unmarshal(d.Data, &m); err != nil {
		return nil, false
	}
	v, ok := m[name]

	return v, ok
}

// ValidName reports whether s is usable as a field name or path segment.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r >= '0' && r <= '9'):
		default:
			return false
		}
	}

	return true
}

// ValidCollection reports whether path is a collection path such as
// "opportunities" or "users/<uid>/saved": odd number of non-empty segments.
func ValidCollection(path string) bool {
	parts := strings.Split(path, "/")
	if len(parts)%2 == 0 {
		return false
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\n") {
			return false
		}
	}

	return true
}

// Sub returns the path of a sub-collection below a document.
func Sub(collection, id, sub string) string {
	return collection + "/" + id + "/" + sub
}

// CollectionID returns the last segment of a collection path. Indexes are
// declared per collection id so one index serves every users/<uid>/saved.
func CollectionID(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}

	return path
}

// IndexName returns the canonical name of a composite index. Equality field
// order does not matter.
func IndexName(collection string, fields []string, orderBy string) string {
	fs := append([]string(nil), fields...)
	sort.Strings(fs)

	return "idx_" + CollectionID(collection) + "__" + strings.Join(fs, "_") + "__" + orderBy + "_desc"
}
