// Package mock provides an in-memory docstore.Store for tests. It mirrors the
// SQLite store: ordered equality queries need a declared index when
// EnforceIndexes is set, Create refuses taken ids and Update refuses missing
// documents.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/garnizeh/opphub/pkg/docstore"
)

var _ docstore.Store = (*Store)(nil)

// Op records one write made against the store.
type Op struct {
	Name       string
	Collection string
	ID         string
}

type fault struct {
	op    string
	match func(collection string, q docstore.Query) bool
	err   error
}

type Store struct {
	mu             sync.Mutex
	docs           map[string]map[string]json.RawMessage
	indexes        map[string]bool
	faults         []fault
	ops            []Op
	EnforceIndexes bool
}

func New() *Store {
	return &Store{
		docs:    make(map[string]map[string]json.RawMessage),
		indexes: make(map[string]bool),
	}
}

// DeclareIndex registers a composite index.
func (s *Store) DeclareIndex(collection string, fields []string, orderBy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[docstore.IndexName(collection, fields, orderBy)] = true
}

// FailWhen makes every op (get, add, create, set, update, delete, query,
// batch) on a matching collection return err. A nil match matches all.
func (s *Store) FailWhen(op string, match func(collection string, q docstore.Query) bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{op: op, match: match, err: err})
}

// ClearFaults removes all injected failures.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Ops returns a copy of the recorded writes.
func (s *Store) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Op(nil), s.ops...)
}

// CountOps counts recorded writes named op on collection.
func (s *Store) CountOps(op, collection string) int {
	n := 0
	for _, o := range s.Ops() {
		if o.Name == op && o.Collection == collection {
			n++
		}
	}

	return n
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.docs[collection])
}

func (s *Store) fail(op, collection string, q docstore.Query) error {
	for _, f := range s.faults {
		if f.op != op {
			continue
		}
		if f.match == nil || f.match(collection, q) {
			return f.err
		}
	}

	return nil
}

func (s *Store) record(op, collection, id string) {
	s.ops = append(s.ops, Op{Name: op, Collection: collection, ID: id})
}

func encode(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	return b, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("get", collection, docstore.Query{}); err != nil {
		return nil, err
	}

	data, ok := s.docs[collection][id]
	if !ok {
		return nil, nil
	}

	return &docstore.Document{ID: id, Data: data}, nil
}

func (s *Store) Add(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("add", collection, docstore.Query{}); err != nil {
		return "", err
	}

	b, err := encode(data)
	if err != nil {
		return "", err
	}
	s.put(collection, id, b)
	s.record("add", collection, id)

	return id, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("create", collection, docstore.Query{}); err != nil {
		return err
	}
	if _, ok := s.docs[collection][id]; ok {
		return docstore.ErrAlreadyExists
	}

	b, err := encode(data)
	if err != nil {
		return err
	}
	s.put(collection, id, b)
	s.record("create", collection, id)

	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("set", collection, docstore.Query{}); err != nil {
		return err
	}

	b, err := encode(data)
	if err != nil {
		return err
	}
	s.put(collection, id, b)
	s.record("set", collection, id)

	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("update", collection, docstore.Query{}); err != nil {
		return err
	}

	cur, ok := s.docs[collection][id]
	if !ok {
		return docstore.ErrNotFound
	}
	var m map[string]any
	if err := json.Unmarshal(cur, &m); err != nil {
		return err
	}
	for k, v := range fields {
		m[k] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.put(collection, id, b)
	s.record("update", collection, id)

	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete", collection, docstore.Query{}); err != nil {
		return err
	}

	delete(s.docs[collection], id)
	s.record("delete", collection, id)

	return nil
}

func (s *Store) BatchDelete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("batch", collection, docstore.Query{}); err != nil {
		return err
	}

	for _, id := range ids {
		delete(s.docs[collection], id)
	}
	s.record("batch", collection, strconv.Itoa(len(ids)))

	return nil
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("query", collection, q); err != nil {
		return nil, err
	}
	if s.EnforceIndexes && q.NeedsIndex() && !s.indexes[docstore.IndexName(collection, q.Fields(), q.OrderBy)] {
		return nil, &docstore.IndexError{Collection: docstore.CollectionID(collection), Fields: q.Fields(), OrderBy: q.OrderBy}
	}

	type row struct {
		doc  docstore.Document
		body map[string]any
	}
	var rows []row
	for id, data := range s.docs[collection] {
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		if !matches(body, q.Where) {
			continue
		}
		rows = append(rows, row{doc: docstore.Document{ID: id, Data: data}, body: body})
	}

	sort.Slice(rows, func(i, j int) bool {
		if q.OrderBy != "" {
			a, b := number(rows[i].body[q.OrderBy]), number(rows[j].body[q.OrderBy])
			if a != b {
				return a > b
			}
		}
		return rows[i].doc.ID < rows[j].doc.ID
	})

	out := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		out = append(out, r.doc)
	}

	return out, nil
}

func (s *Store) put(collection, id string, data json.RawMessage) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	s.docs[collection][id] = data
}

func matches(body map[string]any, where []docstore.Filter) bool {
	for _, f := range where {
		want, err := normalize(f.Value)
		if err != nil {
			return false
		}
		if !reflect.DeepEqual(body[f.Field], want) {
			return false
		}
	}

	return true
}

// normalize round-trips v through JSON so it compares like a decoded body.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// number orders absent and non-numeric values first.
func number(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}

	return -1 << 62
}
