package session

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/membridge-ai/membridge/internal/api"
)

// Handler exposes the continuity protocol over HTTP.
type Handler struct {
	protocol *Protocol
	validate *validator.Validate
}

// NewHandler creates a new session handler.
func NewHandler(protocol *Protocol) *Handler {
	return &Handler{
		protocol: protocol,
		validate: validator.New(),
	}
}

// InitializeResponse wraps the session-start digest.
type InitializeResponse struct {
	Context string `json:"context"`
}

// CloseRequest is the body of POST /session/close.
type CloseRequest struct {
	ConversationID   string `json:"conversation_id" validate:"required,min=1"`
	Status           string `json:"status" validate:"required,min=1"`
	Momentum         string `json:"momentum,omitempty"`
	Pending          string `json:"pending,omitempty"`
	RetrievalMarkers string `json:"retrieval_markers,omitempty"`
}

// Initialize assembles and returns the session-start digest.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	digest := h.protocol.Initialize(r.Context())
	api.JSON(w, http.StatusOK, InitializeResponse{Context: digest})
}

// Close writes a conversation bridge. A failed write returns 503 with the
// structured result in the body.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, "bad request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.protocol.Close(r.Context(), req.ConversationID, req.Status, req.Momentum, req.Pending, req.RetrievalMarkers)
	status := http.StatusCreated
	if !result.Success {
		status = http.StatusServiceUnavailable
	}
	api.JSON(w, status, result)
}
