package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second
	// DefaultMaxTokens bounds replies when a request sets no limit
	DefaultMaxTokens = 150

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIConfig configures an OpenAIProvider. Zero values take the defaults above.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// Debug logs prompts and replies, sanitized and capped
	Debug bool
}

// OpenAIProvider implements CompletionProvider using OpenAI's chat completions API
type OpenAIProvider struct {
	client openai.Client
	model  string
	logger *zap.Logger
	debug  bool
}

var _ CompletionProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider talking to cfg.BaseURL. Retries are
// left to the callers, which map rate limits to a retry delay.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			option.WithMaxRetries(0),
		),
		model:  cfg.Model,
		logger: logger,
		debug:  cfg.Debug,
	}
}

func (p *OpenAIProvider) trace(msg string, req CompletionRequest, fields ...zap.Field) {
	if !p.debug {
		return
	}
	p.logger.Debug(msg, append([]zap.Field{
		zap.String("operation", req.Operation),
		zap.String("model", p.model),
	}, fields...)...)
}

func userMessage(prompt string, req CompletionRequest) openai.ChatCompletionMessageParamUnion {
	if len(req.Image) == 0 {
		return openai.UserMessage(prompt)
	}
	return openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: imageDataURL(req.Image, req.ImageMIME),
		}),
	})
}

// Complete sends req as a single user message and returns the reply text
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	prompt := buildPrompt(req)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	requestID := ExtractRequestID(ctx)

	p.trace("llm_api_request", req,
		zap.Int("prompt_length", len(prompt)),
		zap.Int("image_bytes", len(req.Image)),
		zap.String("prompt_preview", SanitizePrompt(prompt, true)),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  []openai.ChatCompletionMessageParamUnion{userMessage(prompt, req)},
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	elapsed := zap.Int64("latency_ms", time.Since(start).Milliseconds())
	if err != nil {
		p.trace("llm_api_error", req, zap.Error(err), zap.String("request_id", requestID), elapsed)
		if apiErr := ExtractAPIError(err); apiErr != nil {
			err = apiErr
		}
		return "", fmt.Errorf("failed to complete %s: %w", req.Operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	p.trace("llm_api_response", req,
		zap.Int("response_length", len(content)),
		zap.String("response_preview", SanitizeResponse(content, true)),
		zap.String("request_id", requestID),
		elapsed,
	)
	return content, nil
}

// buildPrompt appends the extracted text to the prompt the way every text
// request is phrased.
func buildPrompt(req CompletionRequest) string {
	if req.ContextText == "" {
		return req.Prompt
	}
	return fmt.Sprintf("%s here is the text string(%s)", req.Prompt, req.ContextText)
}

func imageDataURL(image []byte, mime string) string {
	if mime == "" {
		mime = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// RegisterOpenAI registers the "openai" factory. It reads api_key (required),
// base_url, model, timeout (a Go duration) and debug.
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string, logger *zap.Logger) (CompletionProvider, error) {
		if config["api_key"] == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}
		cfg := OpenAIConfig{
			APIKey:  config["api_key"],
			BaseURL: config["base_url"],
			Model:   config["model"],
			Debug:   config["debug"] == "true",
		}
		if raw := config["timeout"]; raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid openai timeout %q: %w", raw, err)
			}
			cfg.Timeout = d
		}
		return NewOpenAIProvider(cfg, logger), nil
	})
}
