package hub

import (
	"context"
	"fmt"
	"strings"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

// Categories returns the built-ins followed by custom categories by name.
// A failed read degrades to the built-ins alone.
func (h *Hub) Categories(ctx context.Context) []models.Category {
	docs, err := h.store.Query(ctx, models.CollCategories, docstore.Query{})
	if err != nil {
		h.logger.Warn("load categories, using built-ins", "err", err)
		return catalog.MergeCategories(nil)
	}

	custom := make([]models.Category, 0, len(docs))
	for _, d := range docs {
		c, err := models.DecodeCategory(d)
		if err != nil {
			h.logger.Warn("skipping undecodable category", "id", d.ID, "err", err)
			continue
		}
		custom = append(custom, c)
	}

	return catalog.MergeCategories(custom)
}

// AddCategory stores a custom category under custom-<slug(name)>.
func (h *Hub) AddCategory(ctx context.Context, id *auth.Identity, name, description string) (models.Category, error) {
	s, err := h.requireAdmin(ctx, id)
	if err != nil {
		return models.Category{}, err
	}

	name = strings.TrimSpace(name)
	if catalog.Slug(name) == "" {
		return models.Category{}, invalid("category name required")
	}

	c := models.Category{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   h.millis(),
		CreatedBy:   s.identity().UID,
	}
	catID := catalog.CustomCategoryID(name)
	if err := h.store.Create(ctx, models.CollCategories, catID, c); err != nil {
		return models.Category{}, fmt.Errorf("category %s: %w", catID, err)
	}
	c.ID = catID

	return c, nil
}

// UpdateCategory renames a custom category.
func (h *Hub) UpdateCategory(ctx context.Context, id *auth.Identity, catID, name, description string) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}
	if catalog.IsBuiltIn(catID) {
		return ErrBuiltinCategory
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("category name required")
	}

	err := h.store.Update(ctx, models.CollCategories, catID, map[string]any{
		"name":        name,
		"description": strings.TrimSpace(description),
		"updatedAt":   h.millis(),
	})
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	return nil
}

// DeleteCategory removes a custom category.
func (h *Hub) DeleteCategory(ctx context.Context, id *auth.Identity, catID string) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}
	if catalog.IsBuiltIn(catID) {
		return ErrBuiltinCategory
	}
	if err := h.store.Delete(ctx, models.CollCategories, catID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	return nil
}
