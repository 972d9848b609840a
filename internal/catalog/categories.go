package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/garnizeh/opphub/pkg/models"
)

var builtins = []models.Category{
	{ID: "web-dev", Name: "Web Development", Description: "Frontend and backend web technologies"},
	{ID: "mobile-dev", Name: "Mobile Development", Description: "iOS, Android, and cross-platform mobile apps"},
	{ID: "data-science", Name: "Data Science", Description: "Data analysis, machine learning, and analytics"},
	{ID: "ai-ml", Name: "AI/ML", Description: "Artificial Intelligence and Machine Learning"},
	{ID: "cybersecurity", Name: "Cybersecurity", Description: "Security, encryption, and threat protection"},
	{ID: "cloud", Name: "Cloud Computing", Description: "Cloud platforms and infrastructure"},
}

// BuiltIns returns the fixed categories.
func BuiltIns() []models.Category {
	out := make([]models.Category, len(builtins))
	for i, c := range builtins {
		c.BuiltIn = true
		out[i] = c
	}

	return out
}

// IsBuiltIn reports whether id names a fixed category.
func IsBuiltIn(id string) bool {
	for _, c := range builtins {
		if c.ID == id {
			return true
		}
	}

	return false
}

// MergeCategories lists the built-ins first, then custom categories ordered
// by name. Ids are unique and a built-in always wins over a stored record
// with the same id.
func MergeCategories(custom []models.Category) []models.Category {
	out := BuiltIns()
	seen := make(map[string]bool, len(out)+len(custom))
	for _, c := range out {
		seen[c.ID] = true
	}

	rest := append([]models.Category(nil), custom...)
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	for _, c := range rest {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		c.BuiltIn = false
		out = append(out, c)
	}

	return out
}

// Slug lowercases name, turns whitespace runs into '-' and drops anything
// that is not a letter, digit or '-'.
func Slug(name string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		}
		inSpace = false
	}

	return b.String()
}

// CustomCategoryID is the id given to an admin-created category.
func CustomCategoryID(name string) string {
	return "custom-" + Slug(name)
}

// CategoryLabel returns the display name of id, or id itself when unknown.
func CategoryLabel(categories []models.Category, id string) string {
	for _, c := range categories {
		if c.ID == id {
			return c.Name
		}
	}
	for _, c := range builtins {
		if c.ID == id {
			return c.Name
		}
	}

	return id
}
