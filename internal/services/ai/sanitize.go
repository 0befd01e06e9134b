package ai

import (
	"context"

	"github.com/benvon/smart-pantry/internal/logger"
	"github.com/benvon/smart-pantry/internal/request"
)

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey sanitizes an API key for logging
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	// Show first 4 and last 4 characters, redact the middle
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt creates a safe preview of a prompt for logging
func SanitizePrompt(prompt string, fullLog bool) string {
	if fullLog {
		return logger.SanitizeDebugContent(prompt)
	}
	return logger.SanitizeString(prompt, MaxPreviewLength)
}

// SanitizeResponse creates a safe preview of a response for logging
func SanitizeResponse(response string, fullLog bool) string {
	if fullLog {
		return logger.SanitizeDebugContent(response)
	}
	return logger.SanitizeString(response, MaxPreviewLength)
}

// ExtractRequestID extracts the HTTP request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	return request.RequestIDFromContext(ctx)
}
