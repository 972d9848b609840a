package catalog

import "github.com/garnizeh/opphub/pkg/models"

// View is the catalog state of one session: the full fetched list and the
// facet selection. The displayed set is always derived, never stored, so it
// cannot drift from All. Methods return new values and never share the
// backing array of the receiver.
type View struct {
	All     []models.Opportunity
	Filters Filters
}

// NewView sorts a copy of all newest first.
func NewView(all []models.Opportunity, f Filters) View {
	cp := append([]models.Opportunity(nil), all...)
	SortByCreated(cp)
	if cp == nil {
		cp = []models.Opportunity{}
	}

	return View{All: cp, Filters: f.Normalize()}
}

// Displayed applies the current filters to All.
func (v View) Displayed() Result {
	return Apply(v.All, v.Filters)
}

func (v View) WithFilters(f Filters) View {
	return View{All: v.All, Filters: f.Normalize()}
}

// ClearFilters resets every facet to All.
func (v View) ClearFilters() View {
	return v.WithFilters(DefaultFilters())
}

// Featured returns up to n of the newest records.
func (v View) Featured(n int) []models.Opportunity {
	if n <= 0 || n > len(v.All) {
		n = len(v.All)
	}

	return append(make([]models.Opportunity, 0, n), v.All[:n]...)
}

// Find returns the cached record with id.
func (v View) Find(id string) (models.Opportunity, bool) {
	for _, o := range v.All {
		if o.ID == id {
			return o, true
		}
	}

	return models.Opportunity{}, false
}

// Upsert inserts or replaces o. Records that are no longer active leave the
// catalog.
func (v View) Upsert(o models.Opportunity) View {
	out := make([]models.Opportunity, 0, len(v.All)+1)
	for _, cur := range v.All {
		if cur.ID != o.ID {
			out = append(out, cur)
		}
	}
	if o.IsActive() {
		out = append(out, o)
	}

	return NewView(out, v.Filters)
}

// Remove drops the record with id.
func (v View) Remove(id string) View {
	out := make([]models.Opportunity, 0, len(v.All))
	for _, cur := range v.All {
		if cur.ID != id {
			out = append(out, cur)
		}
	}

	return View{All: out, Filters: v.Filters}
}
