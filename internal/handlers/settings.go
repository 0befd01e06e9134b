package handlers

import (
	"net/http"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SettingsHandler handles default settings and the bulk-apply controls
type SettingsHandler struct {
	core   *cascade.Coordinator
	logger *zap.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(core *cascade.Coordinator, logger *zap.Logger) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{core: core, logger: logger}
}

// RegisterRoutes registers settings routes under the /settings prefix
func (h *SettingsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetSettings).Methods("GET")
	r.HandleFunc("", h.UpdateSettings).Methods("PATCH")
	r.HandleFunc("/bulk", h.OpenBulk).Methods("GET")
	r.HandleFunc("/bulk/enabled", h.SetEnableAll).Methods("PUT")
	r.HandleFunc("/bulk/notify-time", h.ApplyNotifyTime).Methods("PUT")
	r.HandleFunc("/bulk/prior-days", h.ApplyPriorDays).Methods("PUT")
}

// UpdateSettingsRequest changes one or more defaults. Existing items are not touched.
type UpdateSettingsRequest struct {
	DefaultEnableNotify *bool   `json:"default_enable_notify,omitempty"`
	DefaultPriorDays    *int    `json:"default_prior_days,omitempty" validate:"omitempty,prior_days"`
	DefaultNotifyTime   *string `json:"default_notify_time,omitempty"`
}

// NotifyTimeRequest carries a bulk time of day
type NotifyTimeRequest struct {
	NotifyTime string `json:"notify_time" validate:"required"`
}

// PriorDaysRequest carries a bulk prior days value
type PriorDaysRequest struct {
	PriorDays int `json:"prior_days" validate:"prior_days"`
}

// BulkResult reports how many items a bulk action changed. Suppressed is set
// when an enable-all toggle was taken as the settings view syncing itself.
type BulkResult struct {
	Updated    int              `json:"updated"`
	Suppressed bool             `json:"suppressed,omitempty"`
	Bulk       cascade.BulkView `json:"bulk"`
}

// GetSettings returns the defaults for new items
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.core.Settings())
}

// UpdateSettings changes the defaults for new items
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	var tod *calendar.TimeOfDay
	if req.DefaultNotifyTime != nil {
		parsed, err := calendar.ParseTimeOfDay(*req.DefaultNotifyTime)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		tod = &parsed
	}

	ctx := r.Context()
	current := h.core.Settings()
	var err error
	if req.DefaultEnableNotify != nil {
		if current, err = h.core.SetDefaultEnableNotify(ctx, *req.DefaultEnableNotify); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}
	if req.DefaultPriorDays != nil {
		if current, err = h.core.SetDefaultPriorDays(ctx, *req.DefaultPriorDays); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}
	if tod != nil {
		if current, err = h.core.SetDefaultNotifyTime(ctx, *tod); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, current)
}

// OpenBulk opens the bulk-apply controls with their values derived from the items
func (h *SettingsHandler) OpenBulk(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.core.OpenSettings(r.Context()))
}

// SetEnableAll turns every item's reminder on or off
func (h *SettingsHandler) SetEnableAll(w http.ResponseWriter, r *http.Request) {
	var req EnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	n, suppressed := h.core.SetEnableAll(r.Context(), *req.Enabled)
	respondJSON(w, http.StatusOK, BulkResult{Updated: n, Suppressed: suppressed, Bulk: h.core.BulkView()})
}

// ApplyNotifyTime sets the reminder time of day on every item
func (h *SettingsHandler) ApplyNotifyTime(w http.ResponseWriter, r *http.Request) {
	var req NotifyTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	tod, err := calendar.ParseTimeOfDay(req.NotifyTime)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	n, err := h.core.ApplyNotifyTimeToAll(r.Context(), tod)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, BulkResult{Updated: n, Bulk: h.core.BulkView()})
}

// ApplyPriorDays sets the prior days on every item
func (h *SettingsHandler) ApplyPriorDays(w http.ResponseWriter, r *http.Request) {
	var req PriorDaysRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	n, err := h.core.ApplyPriorDaysToAll(r.Context(), req.PriorDays)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, BulkResult{Updated: n, Bulk: h.core.BulkView()})
}
