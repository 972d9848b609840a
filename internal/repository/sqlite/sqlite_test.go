package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbfs "github.com/garnizeh/opphub/db"
	dbpkg "github.com/garnizeh/opphub/internal/db"
	"github.com/garnizeh/opphub/internal/models"
	sqlite "github.com/garnizeh/opphub/internal/repository/sqlite"
	"github.com/garnizeh/opphub/pkg/docstore"
)

func setupRepo(t *testing.T) (*sqlite.SQLiteRepo, func()) {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, "file:"+filepath.Join(t.TempDir(), "repo.db"), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		d.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := sqlite.New(d, nil)
	return repo, func() { d.Close() }
}

type opp struct {
	Title     string `json:"title"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	Read      bool   `json:"read,omitempty"`
}

func TestDocumentCRUD(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	// missing document is nil, nil
	got, err := repo.Get(ctx, "opportunities", "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing document, got %#v, %v", got, err)
	}

	id, err := repo.Add(ctx, "opportunities", opp{Title: "Go dev", Status: "active", CreatedAt: 10})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}

	got, err = repo.Get(ctx, "opportunities", id)
	if err != nil || got == nil {
		t.Fatalf("Get error: %v", err)
	}
	var o opp
	if err := got.Decode(&o); err != nil || o.Title != "Go dev" {
		t.Fatalf("unexpected body %+v (%v)", o, err)
	}

	if err := repo.Update(ctx, "opportunities", id, map[string]any{"title": "Senior Go dev"}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	got, _ = repo.Get(ctx, "opportunities", id)
	_ = got.Decode(&o)
	if o.Title != "Senior Go dev" || o.Status != "active" {
		t.Fatalf("Update should merge fields, got %+v", o)
	}

	if err := repo.Update(ctx, "opportunities", "missing", map[string]any{"title": "x"}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing document, got %v", err)
	}

	if err := repo.Set(ctx, "opportunities", id, opp{Title: "Replaced"}); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, _ = repo.Get(ctx, "opportunities", id)
	o = opp{}
	_ = got.Decode(&o)
	if o.Title != "Replaced" || o.Status != "" {
		t.Fatalf("Set should replace the body, got %+v", o)
	}

	if err := repo.Delete(ctx, "opportunities", id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if got, _ := repo.Get(ctx, "opportunities", id); got != nil {
		t.Fatalf("expected nil after delete, got %#v", got)
	}
	if err := repo.Delete(ctx, "opportunities", id); err != nil {
		t.Fatalf("deleting a missing document should be a no-op, got %v", err)
	}
}

func TestCreate_RefusesTakenID(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	if err := repo.Create(ctx, "applications", "u1_o1", map[string]any{"status": "pending"}); err != nil {
		t.Fatalf("first Create error: %v", err)
	}
	if err := repo.Create(ctx, "applications", "u1_o1", map[string]any{"status": "pending"}); !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestInvalidCollectionAndField(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "users/u1", "x"); !errors.Is(err, docstore.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for document path, got %v", err)
	}
	if _, err := repo.Query(ctx, "opportunities", docstore.Where("status') OR 1=1 --", "x")); !errors.Is(err, docstore.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for bad field, got %v", err)
	}
}

func TestQuery_FiltersOrderAndLimit(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()
	repo.EnforceIndexes(false)

	docs := map[string]opp{
		"a": {Title: "A", Type: "job", Status: "active", CreatedAt: 1},
		"b": {Title: "B", Type: "event", Status: "active", CreatedAt: 3},
		"c": {Title: "C", Type: "job", Status: "inactive", CreatedAt: 2},
		"d": {Title: "D", Type: "job", Status: "active"},
	}
	for id, d := range docs {
		if err := repo.Set(ctx, "opportunities", id, d); err != nil {
			t.Fatalf("Set %s: %v", id, err)
		}
	}

	res, err := repo.Query(ctx, "opportunities", docstore.Where("status", "active").OrderDesc("createdAt"))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	want := []string{"b", "a", "d"}
	if len(res) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(res))
	}
	for i, id := range want {
		if res[i].ID != id {
			t.Fatalf("position %d: expected %s got %s", i, id, res[i].ID)
		}
	}

	res, err = repo.Query(ctx, "opportunities", docstore.Where("status", "active").And("type", "job").Take(1))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(res) != 1 || res[0].ID != "a" {
		t.Fatalf("expected [a] got %+v", res)
	}

	res, err = repo.Query(ctx, "opportunities", docstore.Query{})
	if err != nil || len(res) != 4 {
		t.Fatalf("expected all 4 documents, got %d (%v)", len(res), err)
	}
}

func TestQuery_BoolFilter(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	coll := docstore.Sub("users", "u1", "notifications")
	_ = repo.Set(ctx, coll, "n1", opp{Title: "unread", CreatedAt: 1})
	_ = repo.Set(ctx, coll, "n2", map[string]any{"title": "read", "read": true, "createdAt": 2})
	_ = repo.Set(ctx, coll, "n3", map[string]any{"title": "unread2", "read": false, "createdAt": 3})

	res, err := repo.Query(ctx, coll, docstore.Where("read", false))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(res) != 1 || res[0].ID != "n3" {
		t.Fatalf("expected only n3 (explicit read=false), got %+v", res)
	}
}

func TestQuery_MissingIndex(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	q := docstore.Where("status", "active").OrderDesc("createdAt").Take(5)
	_, err := repo.Query(ctx, "opportunities", q)
	if !errors.Is(err, docstore.ErrMissingIndex) {
		t.Fatalf("expected ErrMissingIndex, got %v", err)
	}
	var ie *docstore.IndexError
	if !errors.As(err, &ie) || ie.OrderBy != "createdAt" {
		t.Fatalf("expected IndexError carrying the definition, got %#v", err)
	}

	// unordered and order-only queries never need an index
	if _, err := repo.Query(ctx, "opportunities", docstore.Where("status", "active").Take(5)); err != nil {
		t.Fatalf("unordered query failed: %v", err)
	}
	if _, err := repo.Query(ctx, "opportunities", docstore.Query{OrderBy: "createdAt", Limit: 5}); err != nil {
		t.Fatalf("order-only query failed: %v", err)
	}

	if err := repo.DeclareIndex(ctx, "opportunities", []string{"status"}, "createdAt"); err != nil {
		t.Fatalf("DeclareIndex error: %v", err)
	}
	// declaring twice is fine
	if err := repo.DeclareIndex(ctx, "opportunities", []string{"status"}, "createdAt"); err != nil {
		t.Fatalf("second DeclareIndex error: %v", err)
	}
	if _, err := repo.Query(ctx, "opportunities", q); err != nil {
		t.Fatalf("query after DeclareIndex failed: %v", err)
	}

	idx, err := repo.ListIndexes(ctx)
	if err != nil {
		t.Fatalf("ListIndexes error: %v", err)
	}
	if len(idx) != 1 || idx[0].Collection != "opportunities" || len(idx[0].Fields) != 1 {
		t.Fatalf("unexpected indexes: %+v", idx)
	}

	// a sub-collection index is shared by every parent
	if err := repo.DeclareIndex(ctx, "users/u1/notifications", []string{"read"}, "createdAt"); err != nil {
		t.Fatalf("DeclareIndex error: %v", err)
	}
	if _, err := repo.Query(ctx, "users/u2/notifications", docstore.Where("read", false).OrderDesc("createdAt")); err != nil {
		t.Fatalf("expected sub-collection index to apply, got %v", err)
	}
}

func TestBatchDelete(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []string{"l1", "l2", "l3"} {
		if err := repo.Set(ctx, "userLogs", id, map[string]any{"action": "x"}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := repo.BatchDelete(ctx, "userLogs", []string{"l1", "l3"}); err != nil {
		t.Fatalf("BatchDelete error: %v", err)
	}
	res, _ := repo.Query(ctx, "userLogs", docstore.Query{})
	if len(res) != 1 || res[0].ID != "l2" {
		t.Fatalf("expected only l2 left, got %+v", res)
	}
	if err := repo.BatchDelete(ctx, "userLogs", nil); err != nil {
		t.Fatalf("empty BatchDelete should succeed: %v", err)
	}
}

func TestSchemaCRUD(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	// seeded by migrations
	s, err := repo.GetSchema(ctx, "opportunity", "v1")
	if err != nil || s == nil {
		t.Fatalf("expected seeded schema, got %v (%v)", s, err)
	}

	if _, err := repo.CreateSchema(ctx, "opportunity", "v2", "desc", `{"type":"object"}`); err != nil {
		t.Fatalf("CreateSchema error: %v", err)
	}
	if _, err := repo.CreateSchema(ctx, "opportunity", "v2", "updated", `{"type":"object","required":["title"]}`); err != nil {
		t.Fatalf("CreateSchema upsert error: %v", err)
	}
	s, _ = repo.GetSchema(ctx, "opportunity", "v2")
	if s == nil || s.Description != "updated" {
		t.Fatalf("expected upserted schema, got %+v", s)
	}

	list, err := repo.ListSchemas(ctx)
	if err != nil || len(list) < 3 {
		t.Fatalf("expected seeded and created schemas, got %d (%v)", len(list), err)
	}

	if err := repo.DeleteSchema(ctx, "opportunity", "v2"); err != nil {
		t.Fatalf("DeleteSchema error: %v", err)
	}
	if s, _ := repo.GetSchema(ctx, "opportunity", "v2"); s != nil {
		t.Fatalf("expected nil after delete, got %+v", s)
	}
	if err := repo.DeleteSchema(ctx, "opportunity", "v2"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing schema, got %v", err)
	}
}

func TestJobs_ClaimRetryAndDeadLetter(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := repo.Enqueue(ctx, nil); err == nil {
		t.Fatalf("expected error enqueuing nil job")
	}

	id, err := repo.Enqueue(ctx, &models.BackgroundJob{Type: "opportunity.summarize", Payload: []byte(`{"id":"o1"}`), Priority: 10, MaxAttempts: 2})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	j, err := repo.FetchNext(ctx)
	if err != nil || j == nil || j.ID != id {
		t.Fatalf("FetchNext expected job %d, got %+v (%v)", id, j, err)
	}
	if j.Status != "running" {
		t.Fatalf("expected claimed job to be running, got %q", j.Status)
	}

	// a claimed job is not handed out twice
	again, err := repo.FetchNext(ctx)
	if err != nil || again != nil {
		t.Fatalf("expected no job while claimed, got %+v (%v)", again, err)
	}

	past := time.Now().Add(-time.Second)
	j.Status = "retry"
	j.Attempts = 1
	j.NextTryAt = &past
	j.LastError = "boom"
	if err := repo.UpdateJob(ctx, j); err != nil {
		t.Fatalf("UpdateJob error: %v", err)
	}
	j, _ = repo.FetchNext(ctx)
	if j == nil || j.Attempts != 1 || j.LastError != "boom" {
		t.Fatalf("expected retried job, got %+v", j)
	}

	if err := repo.MoveToDeadLetter(ctx, j); err != nil {
		t.Fatalf("MoveToDeadLetter error: %v", err)
	}
	dead, err := repo.ListDeadLetters(ctx, 10)
	if err != nil || len(dead) != 1 || dead[0].JobID != id {
		t.Fatalf("expected one dead letter for job %d, got %+v (%v)", id, dead, err)
	}
	if j, _ := repo.FetchNext(ctx); j != nil {
		t.Fatalf("expected jobs table empty, got %+v", j)
	}
}
