package handlers

import (
	"net/http"

	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LifecycleHandler receives app lifecycle events from the client
type LifecycleHandler struct {
	core   *cascade.Coordinator
	logger *zap.Logger
}

// NewLifecycleHandler creates a new lifecycle handler
func NewLifecycleHandler(core *cascade.Coordinator, logger *zap.Logger) *LifecycleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleHandler{core: core, logger: logger}
}

// RegisterRoutes registers lifecycle routes under the /lifecycle prefix
func (h *LifecycleHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/background", h.Background).Methods("POST")
}

// Background persists the items and pending bulk edits when the client leaves
// the foreground
func (h *LifecycleHandler) Background(w http.ResponseWriter, r *http.Request) {
	if err := h.core.Background(r.Context()); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
