package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/services/ai"
)

const pancakes = "Pancakes:\nIngredients:\n- flour\n- milk\nSteps:\n1. Mix.\n2. Fry."

func TestRecipeHandler_Suggest(t *testing.T) {
	t.Parallel()

	suggester := &mockSuggester{suggestion: ai.Suggestion{Content: pancakes}}
	env := newTestEnv(t, envOptions{suggester: suggester})
	env.createItem(t, "Eggs", "2024-06-05")
	env.createItem(t, "Milk", "2024-06-02")

	rec := env.do(t, http.MethodPost, "/api/v1/recipes/suggest", map[string]any{"meal_type": "breakfast"})
	expectStatus(t, rec, http.StatusOK)
	var got ai.Suggestion
	decodeData(t, rec, &got)
	if got.Content != pancakes {
		t.Errorf("Unexpected content %q", got.Content)
	}
	if suggester.meal != models.MealTypeBreakfast {
		t.Errorf("Expected breakfast, got %q", suggester.meal)
	}
	if strings.Join(suggester.ingredients, ",") != "Milk,Eggs" {
		t.Errorf("Expected item names in expiration order, got %v", suggester.ingredients)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/recipes/suggest", map[string]any{"meal_type": "brunch"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestRecipeHandler_SuggestNotConfigured(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodPost, "/api/v1/recipes/suggest", map[string]any{"meal_type": "dinner"})
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestRecipeHandler_SuggestRateLimited(t *testing.T) {
	t.Parallel()

	suggester := &mockSuggester{err: &ai.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}}
	env := newTestEnv(t, envOptions{suggester: suggester})
	rec := env.do(t, http.MethodPost, "/api/v1/recipes/suggest", map[string]any{"meal_type": "lunch"})
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestRecipeHandler_Favorites(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodPost, "/api/v1/recipes/favorites", map[string]any{"content": pancakes})
	expectStatus(t, rec, http.StatusCreated)
	var saved SaveFavoriteResponse
	decodeData(t, rec, &saved)
	if !saved.Added || saved.Recipe.Name != "Pancakes" {
		t.Errorf("Unexpected save result %+v", saved)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/recipes/favorites", map[string]any{"content": pancakes})
	expectStatus(t, rec, http.StatusOK)
	decodeData(t, rec, &saved)
	if saved.Added {
		t.Error("Expected duplicate name not to be added")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/recipes/favorites", map[string]any{"content": "just one line"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = env.do(t, http.MethodGet, "/api/v1/recipes/favorites", nil)
	expectStatus(t, rec, http.StatusOK)
	var list []models.Recipe
	decodeData(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("Expected 1 favorite, got %d", len(list))
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/recipes/favorites/"+list[0].ID.String(), nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = env.do(t, http.MethodDelete, "/api/v1/recipes/favorites/"+list[0].ID.String(), nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestLifecycleHandler_Background(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{})
	env.createItem(t, "Milk", "2024-06-10")

	rec := env.do(t, http.MethodPost, "/api/v1/lifecycle/background", nil)
	expectStatus(t, rec, http.StatusNoContent)
}
