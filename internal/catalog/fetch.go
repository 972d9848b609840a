package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

// widenFloor is the minimum page read by the unfiltered last attempt, so
// client-side filtering still has enough rows to fill a small limit.
const widenFloor = 20

// Querier is the part of the document store the cascade needs.
type Querier interface {
	Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error)
}

// Step identifies which attempt of a cascade produced the result.
type Step int

const (
	StepFailed    Step = iota // every attempt failed, result is empty
	StepOrdered               // filters + order + limit
	StepUnordered             // filters + limit
	StepUnfiltered            // limit only, filtered client side
)

// Cascade fetches a collection with equality filters and a descending order,
// falling back to cheaper queries when the store rejects the richer one.
type Cascade[T any] struct {
	Collection string
	Where      []docstore.Filter
	OrderBy    string
	Limit      int
	Decode     func(docstore.Document) (T, error)
	// Keep re-applies Where on the client; nil keeps everything.
	Keep func(T) bool
	// SortKey returns the OrderBy value; absent values must return 0.
	SortKey func(T) int64
	Logger  *slog.Logger
}

// Fetch never fails: on total failure it logs and returns an empty list.
// Results are filtered with Keep, sorted by SortKey descending and cut to
// Limit whichever attempt succeeded.
func (c Cascade[T]) Fetch(ctx context.Context, q Querier) ([]T, Step) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := docstore.Query{Where: c.Where, Limit: c.Limit}
	ordered := base
	ordered.OrderBy = c.OrderBy

	docs, err := q.Query(ctx, c.Collection, ordered)
	step := StepOrdered
	if err != nil {
		if errors.Is(err, docstore.ErrMissingIndex) {
			logger.Info("composite index not found, using fallback query", "collection", c.Collection, "err", err)
		} else {
			logger.Warn("ordered query failed, trying alternative query", "collection", c.Collection, "err", err)
		}

		step = StepUnordered
		docs, err = q.Query(ctx, c.Collection, base)
		if err != nil {
			logger.Warn("filtered query failed, loading unfiltered", "collection", c.Collection, "err", err)

			step = StepUnfiltered
			widened := docstore.Query{}
			if c.Limit > 0 {
				widened.Limit = max(c.Limit, widenFloor)
			}
			docs, err = q.Query(ctx, c.Collection, widened)
			if err != nil {
				logger.Error("fallback query failed", "collection", c.Collection, "err", err)
				return []T{}, StepFailed
			}
		}
	}

	out := make([]T, 0, len(docs))
	for _, d := range docs {
		item, err := c.Decode(d)
		if err != nil {
			logger.Warn("skipping undecodable document", "collection", c.Collection, "id", d.ID, "err", err)
			continue
		}
		if c.Keep != nil && !c.Keep(item) {
			continue
		}
		out = append(out, item)
	}

	if c.SortKey != nil {
		sort.SliceStable(out, func(i, j int) bool {
			return c.SortKey(out[i]) > c.SortKey(out[j])
		})
	}
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}

	return out, step
}

// ActiveOpportunities is the catalog fetch: status active, optional type,
// newest first. A record without a status counts as active.
func ActiveOpportunities(typ string, limit int, logger *slog.Logger) Cascade[models.Opportunity] {
	where := []docstore.Filter{{Field: "status", Value: models.StatusActive}}
	if typ != "" && typ != All {
		where = append(where, docstore.Filter{Field: "type", Value: typ})
	}

	return Cascade[models.Opportunity]{
		Collection: models.CollOpportunities,
		Where:      where,
		OrderBy:    "createdAt",
		Limit:      limit,
		Decode:     models.DecodeOpportunity,
		Keep: func(o models.Opportunity) bool {
			return o.IsActive() && (typ == "" || typ == All || o.Type == typ)
		},
		SortKey: func(o models.Opportunity) int64 { return o.CreatedAt },
		Logger:  logger,
	}
}
