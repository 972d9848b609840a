package catalog_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/docstore/mock"
	"github.com/garnizeh/opphub/pkg/models"
)

func seedStore(t *testing.T) *mock.Store {
	t.Helper()
	s := mock.New()
	s.EnforceIndexes = true
	ctx := context.Background()
	docs := []models.Opportunity{
		{ID: "a", Type: "job", Status: "active", CreatedAt: 100},
		{ID: "b", Type: "event", Status: "active", CreatedAt: 300},
		{ID: "c", Type: "job", Status: "inactive", CreatedAt: 400},
		{ID: "d", Type: "job", CreatedAt: 200},
		{ID: "e", Type: "job", Status: "pending-approval", CreatedAt: 500},
		{ID: "f", Type: "job", Status: "active"},
	}
	for _, o := range docs {
		if err := s.Set(ctx, models.CollOpportunities, o.ID, o); err != nil {
			t.Fatalf("seed %s: %v", o.ID, err)
		}
	}
	return s
}

func TestCascade_OrderedWhenIndexExists(t *testing.T) {
	s := seedStore(t)
	s.DeclareIndex(models.CollOpportunities, []string{"status"}, "createdAt")

	got, step := catalog.ActiveOpportunities("", 0, nil).Fetch(context.Background(), s)
	if step != catalog.StepOrdered {
		t.Fatalf("expected ordered step, got %v", step)
	}
	// d has no status and is only visible to the unfiltered attempt
	if want := []string{"b", "a", "f"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v want %v", ids(got), want)
	}
}

func TestCascade_MissingIndexFallsBackSortedAndFiltered(t *testing.T) {
	s := seedStore(t)

	got, step := catalog.ActiveOpportunities("", 0, nil).Fetch(context.Background(), s)
	if step != catalog.StepUnordered {
		t.Fatalf("expected unordered fallback, got %v", step)
	}
	if want := []string{"b", "a", "f"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v want %v", ids(got), want)
	}
	for _, o := range got {
		if !o.IsActive() {
			t.Fatalf("inactive record %s leaked", o.ID)
		}
	}
}

func TestCascade_TypeFilter(t *testing.T) {
	s := seedStore(t)
	s.DeclareIndex(models.CollOpportunities, []string{"status", "type"}, "createdAt")

	got, step := catalog.ActiveOpportunities("job", 0, nil).Fetch(context.Background(), s)
	if step != catalog.StepOrdered {
		t.Fatalf("expected ordered step, got %v", step)
	}
	if want := []string{"a", "f"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v want %v", ids(got), want)
	}
}

func TestCascade_UnfilteredStepAppliesStatusClientSide(t *testing.T) {
	s := seedStore(t)
	filterErr := errors.New("status filter unsupported")
	s.FailWhen("query", func(_ string, q docstore.Query) bool { return len(q.Where) > 0 }, filterErr)

	got, step := catalog.ActiveOpportunities("", 2, nil).Fetch(context.Background(), s)
	if step != catalog.StepUnfiltered {
		t.Fatalf("expected unfiltered step, got %v", step)
	}
	// d has no status and counts as active
	if want := []string{"b", "d"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v want %v", ids(got), want)
	}
}

func TestCascade_TotalFailureReturnsEmpty(t *testing.T) {
	s := seedStore(t)
	s.FailWhen("query", nil, errors.New("unavailable"))

	got, step := catalog.ActiveOpportunities("", 6, nil).Fetch(context.Background(), s)
	if step != catalog.StepFailed {
		t.Fatalf("expected failed step, got %v", step)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", got)
	}
}

// recordingQuerier captures the queries the cascade issues.
type recordingQuerier struct {
	queries []docstore.Query
	errs    []error
}

func (r *recordingQuerier) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	r.queries = append(r.queries, q)
	if i := len(r.queries) - 1; i < len(r.errs) && r.errs[i] != nil {
		return nil, r.errs[i]
	}
	return nil, nil
}

func TestCascade_QueryShapes(t *testing.T) {
	rq := &recordingQuerier{errs: []error{docstore.ErrMissingIndex, errors.New("no filter"), nil}}

	_, step := catalog.ActiveOpportunities("event", 6, nil).Fetch(context.Background(), rq)
	if step != catalog.StepUnfiltered {
		t.Fatalf("expected unfiltered step, got %v", step)
	}
	if len(rq.queries) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(rq.queries))
	}

	first, second, third := rq.queries[0], rq.queries[1], rq.queries[2]
	if first.OrderBy != "createdAt" || first.Limit != 6 || len(first.Where) != 2 {
		t.Fatalf("unexpected first query %+v", first)
	}
	if second.OrderBy != "" || second.Limit != 6 || len(second.Where) != 2 {
		t.Fatalf("unexpected second query %+v", second)
	}
	if third.OrderBy != "" || len(third.Where) != 0 || third.Limit != 20 {
		t.Fatalf("unexpected third query %+v", third)
	}
}

func TestCascade_OverFetchTruncates(t *testing.T) {
	s := mock.New()
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		o := models.Opportunity{ID: string(rune('A' + i)), Status: "active", CreatedAt: int64(i)}
		_ = s.Set(ctx, models.CollOpportunities, o.ID, o)
	}
	s.FailWhen("query", func(_ string, q docstore.Query) bool { return len(q.Where) > 0 }, errors.New("boom"))

	got, _ := catalog.ActiveOpportunities("", 6, nil).Fetch(ctx, s)
	if len(got) != 6 {
		t.Fatalf("expected truncation to 6, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].CreatedAt < got[i].CreatedAt {
			t.Fatalf("result not sorted descending at %d", i)
		}
	}
}
