package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/services/ai"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RecipeSuggester produces recipe suggestions from item names
type RecipeSuggester interface {
	SuggestRecipe(ctx context.Context, meal models.MealType, ingredients []string) (ai.Suggestion, error)
}

var _ RecipeSuggester = (*ai.Assistant)(nil)

// RecipeHandler handles recipe suggestions and favorites
type RecipeHandler struct {
	core      *cascade.Coordinator
	suggester RecipeSuggester
	logger    *zap.Logger
}

// NewRecipeHandler creates a new recipe handler. suggester may be nil when no
// completion service is configured.
func NewRecipeHandler(core *cascade.Coordinator, suggester RecipeSuggester, logger *zap.Logger) *RecipeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipeHandler{core: core, suggester: suggester, logger: logger}
}

// RegisterRoutes registers recipe routes under the /recipes prefix
func (h *RecipeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/suggest", h.Suggest).Methods("POST")
	r.HandleFunc("/favorites", h.ListFavorites).Methods("GET")
	r.HandleFunc("/favorites", h.SaveFavorite).Methods("POST")
	r.HandleFunc("/favorites/{id}", h.RemoveFavorite).Methods("DELETE")
}

// SuggestRequest selects the meal to suggest a recipe for
type SuggestRequest struct {
	MealType string `json:"meal_type" validate:"required,meal_type"`
}

// SaveFavoriteRequest carries a recipe reply to save
type SaveFavoriteRequest struct {
	Content string `json:"content" validate:"required"`
}

// SaveFavoriteResponse reports whether the recipe was new
type SaveFavoriteResponse struct {
	Recipe models.Recipe `json:"recipe"`
	Added  bool          `json:"added"`
}

// Suggest asks the completion service for a recipe using the current items
func (h *RecipeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if h.suggester == nil {
		respondError(w, h.logger, ai.ErrNotConfigured)
		return
	}
	suggestion, err := h.suggester.SuggestRecipe(r.Context(), models.MealType(req.MealType), h.core.Ingredients())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, suggestion)
}

// ListFavorites returns the saved recipes
func (h *RecipeHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.core.Favorites())
}

// SaveFavorite saves a suggested recipe unless one with the same name exists
func (h *RecipeHandler) SaveFavorite(w http.ResponseWriter, r *http.Request) {
	var req SaveFavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	recipe, added, err := h.core.SaveFavoriteRecipe(r.Context(), req.Content)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	respondJSON(w, status, SaveFavoriteResponse{Recipe: recipe, Added: added})
}

// RemoveFavorite deletes a saved recipe
func (h *RecipeHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.core.RemoveFavorite(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
