// Package handlers exposes the pantry core over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/benvon/smart-pantry/internal/entry"
	"github.com/benvon/smart-pantry/internal/inventory"
	"github.com/benvon/smart-pantry/internal/logger"
	"github.com/benvon/smart-pantry/internal/services/ai"
	"github.com/benvon/smart-pantry/internal/services/barcode"
	"github.com/benvon/smart-pantry/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSONError sends an error JSON response. The message is cut and
// stripped of control characters before it reaches the client.
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   logger.SanitizeString(message, maxErrorMessageLength),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// decodeJSON decodes a request body into dst and validates its struct tags.
// An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validation.Validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %s validation", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// pathID parses the {id} route variable
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

// respondError maps errors from the core to HTTP statuses. Unknown errors are
// logged and reported as 500 without detail.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound), errors.Is(err, cascade.ErrRecipeNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, validation.ErrEmptyName), errors.Is(err, entry.ErrMissingName),
		errors.Is(err, barcode.ErrInvalidCode):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, cascade.ErrRecipeNotParsed):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, barcode.ErrNotScanning):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, entry.ErrUnavailable), errors.Is(err, ai.ErrNotConfigured), ai.IsQuotaError(err):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The completion service is not available")
	case ai.IsRateLimitError(err):
		retryAfter := ai.GetRetryDelay(err, 0)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "The completion service is rate limited")
	default:
		log.Error("request_failed", logger.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
	}
}
