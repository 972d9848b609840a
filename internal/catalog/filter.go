// Package catalog holds the pure opportunity catalog logic: facet filtering,
// the displayed view, the index fallback fetch cascade and the category
// registry. Nothing here renders or holds locks.
package catalog

import (
	"fmt"
	"sort"

	"github.com/garnizeh/opphub/pkg/models"
)

// All is the facet sentinel that disables a filter.
const All = "all"

// Filters are the current facet selections.
type Filters struct {
	Type     string `json:"type"`
	Category string `json:"category"`
}

// DefaultFilters selects everything.
func DefaultFilters() Filters {
	return Filters{Type: All, Category: All}
}

func facet(v string) string {
	if v == "" {
		return All
	}
	return v
}

// Normalize maps empty facets to All.
func (f Filters) Normalize() Filters {
	return Filters{Type: facet(f.Type), Category: facet(f.Category)}
}

// Active reports whether any facet narrows the set.
func (f Filters) Active() bool {
	n := f.Normalize()
	return n.Type != All || n.Category != All
}

// WithType keeps the category facet and sets the type facet.
func (f Filters) WithType(t string) Filters {
	f.Type = t
	return f.Normalize()
}

// WithCategory keeps the type facet and sets the category facet.
func (f Filters) WithCategory(c string) Filters {
	f.Category = c
	return f.Normalize()
}

// Result is a filtered projection of the full list.
type Result struct {
	Items         []models.Opportunity `json:"items"`
	FilteredCount int                  `json:"filteredCount"`
	TotalCount    int                  `json:"totalCount"`
	Active        bool                 `json:"filtersActive"`
}

// Status is the human readable filter status line.
func (r Result) Status() string {
	if r.FilteredCount < r.TotalCount {
		return fmt.Sprintf("Showing %d of %d opportunities", r.FilteredCount, r.TotalCount)
	}
	return fmt.Sprintf("Showing all %d opportunities", r.TotalCount)
}

// Apply returns the records matching every non-All facet, in input order.
// The input is not modified and the returned slice is always new.
func Apply(all []models.Opportunity, f Filters) Result {
	f = f.Normalize()
	items := make([]models.Opportunity, 0, len(all))
	for _, o := range all {
		if f.Type != All && o.Type != f.Type {
			continue
		}
		if f.Category != All && o.Category != f.Category {
			continue
		}
		items = append(items, o)
	}

	return Result{
		Items:         items,
		FilteredCount: len(items),
		TotalCount:    len(all),
		Active:        f.Active(),
	}
}

// SortByCreated orders records newest first; a missing createdAt sorts last.
// Equal timestamps keep their relative order.
func SortByCreated(items []models.Opportunity) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt > items[j].CreatedAt
	})
}
