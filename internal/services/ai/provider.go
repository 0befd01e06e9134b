package ai

import (
	"context"

	"go.uber.org/zap"
)

// CompletionProvider is the interface for text-completion providers
type CompletionProvider interface {
	// Complete sends one request and returns the first reply's text
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one prompt, optionally with extracted text or an image
type CompletionRequest struct {
	// Operation names the request in logs, e.g. "name_from_image"
	Operation string
	Prompt    string
	// ContextText is appended to the prompt as the text to interpret
	ContextText string
	Image       []byte
	ImageMIME   string
	MaxTokens   int
}

// ProviderFactory creates a completion provider from its configuration
type ProviderFactory func(config map[string]string, logger *zap.Logger) (CompletionProvider, error)

// ProviderRegistry stores available completion providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// DefaultRegistry returns a registry with every built-in provider registered
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterOpenAI(r)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string, logger *zap.Logger) (CompletionProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config, logger)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
