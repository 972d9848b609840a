package hub

import (
	"context"
	"fmt"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

// Browse is the catalog page: the filtered view plus its status line.
type Browse struct {
	catalog.Result
	Filters    catalog.Filters `json:"filters"`
	StatusLine string          `json:"status"`
}

// LoadCatalog fetches every active opportunity into the shared cache. The
// last fetch to finish wins.
func (h *Hub) LoadCatalog(ctx context.Context) []models.Opportunity {
	items, step := catalog.ActiveOpportunities("", 0, h.logger).Fetch(ctx, h.store)

	h.catMu.Lock()
	h.view = catalog.NewView(items, catalog.DefaultFilters())
	h.loaded = true
	all := h.view.All
	h.catMu.Unlock()

	h.logger.Debug("catalog loaded", "count", len(items), "step", step)

	return all
}

func (h *Hub) catalogView(ctx context.Context) catalog.View {
	h.catMu.RLock()
	v, ok := h.view, h.loaded
	h.catMu.RUnlock()
	if ok {
		return v
	}

	h.LoadCatalog(ctx)
	h.catMu.RLock()
	defer h.catMu.RUnlock()

	return h.view
}

// reconcile brings the cache in line with a stored record.
func (h *Hub) reconcile(o models.Opportunity) {
	h.catMu.Lock()
	defer h.catMu.Unlock()
	if h.loaded {
		h.view = h.view.Upsert(o)
	}
}

// Refresh replaces the cached copy of a record written outside the hub.
func (h *Hub) Refresh(o models.Opportunity) {
	h.reconcile(o)
}

func (h *Hub) forget(id string) {
	h.catMu.Lock()
	defer h.catMu.Unlock()
	if h.loaded {
		h.view = h.view.Remove(id)
	}
}

// Featured returns the newest active opportunities, capped at the featured
// limit. It runs its own limited query so the home page never waits on the
// full catalog.
func (h *Hub) Featured(ctx context.Context) []models.Opportunity {
	items, _ := catalog.ActiveOpportunities("", h.featured, h.logger).Fetch(ctx, h.store)
	return items
}

// Events lists active events, newest first.
func (h *Hub) Events(ctx context.Context) []models.Opportunity {
	items, _ := catalog.ActiveOpportunities(models.TypeEvent, 0, h.logger).Fetch(ctx, h.store)
	return items
}

// Browse applies facet filters to the cached catalog. For a signed-in user a
// nil f reuses the filters of the session and a non-nil f replaces them. An
// anonymous caller gets f or no filtering.
func (h *Hub) Browse(ctx context.Context, id *auth.Identity, f *catalog.Filters) (Browse, error) {
	filters := catalog.DefaultFilters()
	if f != nil {
		filters = f.Normalize()
	}

	if id != nil {
		s, err := h.session(ctx, id)
		if err != nil {
			return Browse{}, err
		}
		s.mu.Lock()
		if f != nil {
			s.filters = filters
		}
		filters = s.filters
		s.mu.Unlock()
	}

	res := h.catalogView(ctx).WithFilters(filters).Displayed()

	return Browse{Result: res, Filters: filters, StatusLine: res.Status()}, nil
}

// ClearFilters resets the facets of the session and returns the full view.
func (h *Hub) ClearFilters(ctx context.Context, id *auth.Identity) (Browse, error) {
	f := catalog.DefaultFilters()
	return h.Browse(ctx, id, &f)
}

// Opportunity returns one record by id.
func (h *Hub) Opportunity(ctx context.Context, oppID string) (models.Opportunity, error) {
	doc, err := h.store.Get(ctx, models.CollOpportunities, oppID)
	if err != nil {
		return models.Opportunity{}, fmt.Errorf("load opportunity: %w", err)
	}
	if doc == nil {
		return models.Opportunity{}, fmt.Errorf("opportunity %s: %w", oppID, docstore.ErrNotFound)
	}

	return models.DecodeOpportunity(*doc)
}
