package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/benvon/smart-pantry/internal/entry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxImageBytes bounds a decoded label photo
const maxImageBytes = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// DraftHandler handles the add-item form
type DraftHandler struct {
	draft  *entry.Draft
	items  *ItemHandler
	logger *zap.Logger
}

// NewDraftHandler creates a new draft handler. items renders confirmed items.
func NewDraftHandler(draft *entry.Draft, items *ItemHandler, logger *zap.Logger) *DraftHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftHandler{draft: draft, items: items, logger: logger}
}

// RegisterRoutes registers draft routes under the /draft prefix
func (h *DraftHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetDraft).Methods("GET")
	r.HandleFunc("", h.UpdateDraft).Methods("PATCH")
	r.HandleFunc("", h.ResetDraft).Methods("DELETE")
	r.HandleFunc("/name-from-image", h.NameFromImage).Methods("POST")
	r.HandleFunc("/name-from-text", h.NameFromText).Methods("POST")
	r.HandleFunc("/expiration-from-text", h.ExpirationFromText).Methods("POST")
	r.HandleFunc("/barcode", h.ReadBarcode).Methods("POST")
	r.HandleFunc("/barcode/rearm", h.RearmBarcode).Methods("POST")
	r.HandleFunc("/confirm", h.Confirm).Methods("POST")
}

// UpdateDraftRequest sets the typed fields of the form
type UpdateDraftRequest struct {
	Name            *string `json:"name,omitempty"`
	ExpirationInput *string `json:"expiration_input,omitempty"`
}

// ImageRequest carries a base64-encoded label photo
type ImageRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	MimeType    string `json:"mime_type" validate:"required"`
}

// TextRequest carries recognized label text
type TextRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// BarcodeRequest carries a scanned code
type BarcodeRequest struct {
	Code string `json:"code" validate:"required"`
}

// BarcodeResponse reports a barcode read
type BarcodeResponse struct {
	Product string     `json:"product"`
	Draft   entry.View `json:"draft"`
}

// GetDraft returns the form state
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.draft.View())
}

// UpdateDraft sets the typed name and expiration input
func (h *DraftHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req UpdateDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.Name != nil {
		h.draft.SetName(*req.Name)
	}
	if req.ExpirationInput != nil {
		h.draft.SetExpirationInput(*req.ExpirationInput)
	}
	respondJSON(w, http.StatusOK, h.draft.View())
}

// ResetDraft clears the form
func (h *DraftHandler) ResetDraft(w http.ResponseWriter, r *http.Request) {
	h.draft.Reset()
	respondJSON(w, http.StatusOK, h.draft.View())
}

// NameFromImage starts reading the item name from a label photo. The result
// arrives asynchronously; poll GET /draft until loading_name is false.
func (h *DraftHandler) NameFromImage(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	mime := strings.ToLower(req.MimeType)
	if !allowedImageTypes[mime] {
		respondJSONError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", "mime_type must be image/jpeg, image/png, image/webp or image/heic")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(image) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "image_base64 is not valid base64")
		return
	}
	if len(image) > maxImageBytes {
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "image is too large")
		return
	}
	if err := h.draft.RequestNameFromImage(image, mime); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.draft.View())
}

// NameFromText starts reading the item name from label text
func (h *DraftHandler) NameFromText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.draft.RequestNameFromText(req.Text); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.draft.View())
}

// ExpirationFromText starts reading the expiration date from label text
func (h *DraftHandler) ExpirationFromText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.draft.RequestExpirationFromText(req.Text); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.draft.View())
}

// ReadBarcode feeds a scanned code to the scanning session
func (h *DraftHandler) ReadBarcode(w http.ResponseWriter, r *http.Request) {
	var req BarcodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	product, err := h.draft.ReadBarcode(r.Context(), req.Code)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, BarcodeResponse{Product: product, Draft: h.draft.View()})
}

// RearmBarcode discards the last scan and starts scanning again
func (h *DraftHandler) RearmBarcode(w http.ResponseWriter, r *http.Request) {
	if err := h.draft.RearmBarcode(); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.draft.View())
}

// Confirm creates an item from the form
func (h *DraftHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	item, err := h.draft.Confirm(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.items.toResponse(item))
}
