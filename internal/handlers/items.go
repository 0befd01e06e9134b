package handlers

import (
	"net/http"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ItemHandler handles item-related requests
type ItemHandler struct {
	core   *cascade.Coordinator
	clock  calendar.Clock
	logger *zap.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(core *cascade.Coordinator, clock calendar.Clock, logger *zap.Logger) *ItemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	return &ItemHandler{core: core, clock: clock, logger: logger}
}

// RegisterRoutes registers item routes on the given router
// The router should already have the /items prefix (e.g., from apiRouter.PathPrefix("/items"))
func (h *ItemHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListItems).Methods("GET")
	r.HandleFunc("", h.CreateItem).Methods("POST")
	r.HandleFunc("/expired", h.RemoveExpired).Methods("DELETE")
	r.HandleFunc("/{id}", h.GetItem).Methods("GET")
	r.HandleFunc("/{id}", h.RenameItem).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteItem).Methods("DELETE")
	r.HandleFunc("/{id}/expiration", h.ChangeExpiration).Methods("PUT")
	r.HandleFunc("/{id}/notification", h.UpdateNotification).Methods("PUT")
	r.HandleFunc("/{id}/notification/enabled", h.SetNotificationEnabled).Methods("PUT")
}

// ItemResponse is an item as returned by the API
type ItemResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	ExpirationDate      *string    `json:"expiration_date"`
	NotificationTime    *time.Time `json:"notification_time"`
	NotificationEnabled bool       `json:"notification_enabled"`
	PriorDays           int        `json:"prior_days"`
	ReminderState       string     `json:"reminder_state"`
}

// CreateItemRequest represents a create item request
type CreateItemRequest struct {
	Name           string  `json:"name" validate:"required,item_name"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
}

// RenameItemRequest represents a rename request
type RenameItemRequest struct {
	Name string `json:"name" validate:"required,item_name"`
}

// ChangeExpirationRequest represents an expiration change. With
// RecomputeNotification the item keeps its own reminder time of day.
type ChangeExpirationRequest struct {
	ExpirationDate        string `json:"expiration_date" validate:"required"`
	RecomputeNotification bool   `json:"recompute_notification"`
}

// UpdateNotificationRequest represents a per-item reminder change
type UpdateNotificationRequest struct {
	PriorDays  int    `json:"prior_days" validate:"prior_days"`
	NotifyTime string `json:"notify_time" validate:"required"`
}

// EnabledRequest toggles a reminder
type EnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// RemoveExpiredResponse reports the result of removing expired items
type RemoveExpiredResponse struct {
	Count   int            `json:"count"`
	Removed []ItemResponse `json:"removed"`
	Message string         `json:"message"`
}

func (h *ItemHandler) toResponse(item models.Item) ItemResponse {
	resp := ItemResponse{
		ID:                  item.ID,
		Name:                item.Name,
		NotificationTime:    item.NotificationTime,
		NotificationEnabled: item.IsNotificationEnabled,
		PriorDays:           item.PriorDays,
		ReminderState:       h.core.ReminderState(item.ID).String(),
	}
	if item.ExpirationDate != nil {
		d := calendar.FormatDate(*item.ExpirationDate)
		resp.ExpirationDate = &d
	}
	return resp
}

func (h *ItemHandler) toResponses(items []models.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, h.toResponse(item))
	}
	return out
}

func (h *ItemHandler) parseDate(s string) (time.Time, error) {
	return calendar.ParseDate(s, h.clock.Now().Location())
}

// ListItems returns the items ordered by expiration date
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.toResponses(h.core.Items()))
}

// CreateItem adds an item with the current defaults
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	var expiration *time.Time
	if req.ExpirationDate != nil && *req.ExpirationDate != "" {
		d, err := h.parseDate(*req.ExpirationDate)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "expiration_date must be yyyy-mm-dd")
			return
		}
		expiration = &d
	}

	item, err := h.core.AddItem(r.Context(), req.Name, expiration)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.toResponse(item))
}

// GetItem returns one item
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	item, err := h.core.Item(id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(item))
}

// RenameItem changes an item's name
func (h *ItemHandler) RenameItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var req RenameItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	item, err := h.core.RenameItem(r.Context(), id, req.Name)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(item))
}

// DeleteItem removes an item and cancels its reminder
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.core.RemoveItem(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveExpired deletes every item that expired before today
func (h *ItemHandler) RemoveExpired(w http.ResponseWriter, r *http.Request) {
	removed := h.core.RemoveAllExpired(r.Context(), h.clock.Now())
	resp := RemoveExpiredResponse{
		Count:   len(removed),
		Removed: h.toResponses(removed),
		Message: "Expired items deleted",
	}
	if len(removed) == 0 {
		resp.Message = "No expired items to delete"
	}
	respondJSON(w, http.StatusOK, resp)
}

// ChangeExpiration sets a new expiration date and reschedules the reminder
func (h *ItemHandler) ChangeExpiration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var req ChangeExpirationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	date, err := h.parseDate(req.ExpirationDate)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "expiration_date must be yyyy-mm-dd")
		return
	}
	item, err := h.core.ChangeExpiration(r.Context(), id, date, req.RecomputeNotification)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(item))
}

// UpdateNotification sets an item's prior days and reminder time of day
func (h *ItemHandler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var req UpdateNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	tod, err := calendar.ParseTimeOfDay(req.NotifyTime)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	item, err := h.core.UpdateItemNotification(r.Context(), id, req.PriorDays, tod)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(item))
}

// SetNotificationEnabled turns one item's reminder on or off
func (h *ItemHandler) SetNotificationEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var req EnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	item, err := h.core.SetItemNotificationEnabled(r.Context(), id, *req.Enabled)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(item))
}
