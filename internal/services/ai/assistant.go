package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/recipes"
	"go.uber.org/zap"
)

const (
	nameFromImagePrompt = "What is the item name in the picture, it should related to food or groceries. Please just give me the name of the item."
	nameFromTextPrompt  = "What is the food item name inside the following text?just return the name of it, for example: Milk"
	expirationPrompt    = `What is the expiration date of the item inside the following text? Just give me the answer like "yyyy-mm-dd". If the date doesn't have dd, set it as the last day of the month. If you didn't find the date or the date is invalid or there is not any text, please just return N/A.`
	recipePromptFormat  = `What can I have for %s with %s in my storage? Just simply list out the name, ingredients, and steps to make it, be as concise as possible, just show 1 recipe. The format should be as below, the first line should just be the name of the recipe (no additional symbols), and the next section should start with the name "Ingredients:" and the last section should start with the name "Steps:"`

	// NoDateReply is what the provider answers when the text holds no date
	NoDateReply = "N/A"
)

// Assistant phrases the pantry's completion requests and interprets replies
type Assistant struct {
	provider CompletionProvider
	clock    calendar.Clock
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAssistant creates an assistant. A nil provider makes every call fail
// with ErrNotConfigured.
func NewAssistant(provider CompletionProvider, clock calendar.Clock, timeout time.Duration, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Assistant{provider: provider, clock: clock, timeout: timeout, logger: logger}
}

// Configured reports whether a provider is available
func (a *Assistant) Configured() bool {
	return a.provider != nil
}

// NameFromImage asks for the grocery item shown in image
func (a *Assistant) NameFromImage(ctx context.Context, image []byte, mime string) (string, error) {
	reply, err := a.complete(ctx, CompletionRequest{
		Operation: "name_from_image",
		Prompt:    nameFromImagePrompt,
		Image:     image,
		ImageMIME: mime,
		MaxTokens: 20,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// NameFromText asks for the item name in text recognized on a label
func (a *Assistant) NameFromText(ctx context.Context, text string) (string, error) {
	reply, err := a.complete(ctx, CompletionRequest{
		Operation:   "name_from_text",
		Prompt:      nameFromTextPrompt,
		ContextText: text,
		MaxTokens:   30,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// ExpirationFromText asks for the expiration date in text recognized on a
// label. A reply of N/A, or one that is not a yyyy-mm-dd date, means today.
func (a *Assistant) ExpirationFromText(ctx context.Context, text string) (time.Time, error) {
	reply, err := a.complete(ctx, CompletionRequest{
		Operation:   "expiration_from_text",
		Prompt:      expirationPrompt,
		ContextText: text,
		MaxTokens:   30,
	})
	if err != nil {
		return time.Time{}, err
	}

	now := a.clock.Now()
	reply = strings.TrimSpace(reply)
	if reply == NoDateReply {
		return calendar.StartOfDay(now), nil
	}
	date, parseErr := calendar.ParseDate(reply, now.Location())
	if parseErr != nil {
		a.logger.Debug("expiration_reply_unparseable", zap.String("reply", SanitizeResponse(reply, false)))
		return calendar.StartOfDay(now), nil
	}
	return date, nil
}

// Suggestion is a recipe reply. Recipe is only set when the reply could be
// parsed as one.
type Suggestion struct {
	Content string         `json:"content"`
	Recipe  *models.Recipe `json:"recipe,omitempty"`
}

// SuggestRecipe asks for one recipe for meal made from ingredients
func (a *Assistant) SuggestRecipe(ctx context.Context, meal models.MealType, ingredients []string) (Suggestion, error) {
	if !meal.Valid() {
		return Suggestion{}, fmt.Errorf("unknown meal type %q", meal)
	}

	reply, err := a.complete(ctx, CompletionRequest{
		Operation: "suggest_recipe",
		Prompt:    fmt.Sprintf(recipePromptFormat, meal, strings.Join(ingredients, ", ")),
		MaxTokens: 150,
	})
	if err != nil {
		return Suggestion{}, err
	}

	suggestion := Suggestion{Content: reply}
	if recipe, ok := recipes.ParseRecipe(reply); ok {
		suggestion.Recipe = &recipe
	}
	return suggestion, nil
}

func (a *Assistant) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if a.provider == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.provider.Complete(ctx, req)
	if err != nil {
		a.logger.Warn("completion_failed",
			zap.String("operation", req.Operation),
			zap.Bool("rate_limited", IsRateLimitError(err)),
			zap.String("error", SanitizeResponse(err.Error(), false)),
		)
		return "", err
	}
	return reply, nil
}
