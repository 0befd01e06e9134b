// Package recipes parses recipe suggestions and keeps the favorites list.
package recipes

import (
	"strings"
	"sync"

	"github.com/benvon/smart-pantry/internal/models"
	"github.com/google/uuid"
)

// MinRecipeLines is the shortest reply accepted as a recipe.
const MinRecipeLines = 7

// ParseRecipe turns a completion reply into a recipe. The first line, with
// colons removed, is the name and the remaining lines are the information.
// Replies shorter than MinRecipeLines lines are rejected.
func ParseRecipe(content string) (models.Recipe, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) < MinRecipeLines {
		return models.Recipe{}, false
	}

	name := strings.TrimSpace(strings.ReplaceAll(lines[0], ":", ""))
	if name == "" {
		return models.Recipe{}, false
	}

	return models.Recipe{
		ID:          uuid.New(),
		Name:        name,
		Information: strings.Join(lines[1:], "\n"),
	}, true
}

// Favorites is the saved recipe list, unique by name.
type Favorites struct {
	mu      sync.RWMutex
	recipes []models.Recipe
}

func NewFavorites(recipes []models.Recipe) *Favorites {
	f := &Favorites{}
	f.Replace(recipes)
	return f
}

// Replace swaps the whole list, dropping later duplicates by name.
func (f *Favorites) Replace(recipes []models.Recipe) {
	out := make([]models.Recipe, 0, len(recipes))
	seen := make(map[string]struct{}, len(recipes))
	for _, r := range recipes {
		if _, dup := seen[r.Name]; dup {
			continue
		}
		seen[r.Name] = struct{}{}
		out = append(out, r)
	}
	f.mu.Lock()
	f.recipes = out
	f.mu.Unlock()
}

// Add appends r unless a recipe with the same name exists. It reports
// whether the list changed.
func (f *Favorites) Add(r models.Recipe) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.recipes {
		if existing.Name == r.Name {
			return false
		}
	}
	f.recipes = append(f.recipes, r)
	return true
}

// Remove deletes the recipe with id and reports whether it existed.
func (f *Favorites) Remove(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.recipes {
		if r.ID == id {
			f.recipes = append(f.recipes[:i], f.recipes[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the favorites.
func (f *Favorites) List() []models.Recipe {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.Recipe(nil), f.recipes...)
}
