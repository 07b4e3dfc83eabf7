package retrieval

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/membridge-ai/membridge/internal/api"
	"github.com/membridge-ai/membridge/internal/memerr"
	"github.com/membridge-ai/membridge/internal/memory"
)

// Handler exposes the retrieval engine over HTTP.
type Handler struct {
	engine   *Engine
	validate *validator.Validate
}

// NewHandler creates a new retrieval handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(),
	}
}

// StoreRequest is the body of POST /memories.
type StoreRequest struct {
	Text     string          `json:"text" validate:"required,min=1"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// SearchRequest is the body of POST /memories/search.
type SearchRequest struct {
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// Store persists a new memory.
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, "bad request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	meta, err := memory.ParseMetadata(req.Metadata)
	if err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, "invalid metadata")
		return
	}

	receipt, err := h.engine.Store(r.Context(), req.Text, meta)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, receipt)
}

// Search runs a vector, chronological, or hybrid search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, "bad request")
		return
	}

	mode := Mode(req.Mode)
	if req.Mode == "" {
		mode = ModeVector
	}

	result, err := h.engine.Search(r.Context(), req.Query, req.Limit, mode)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// Get fetches one memory by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	memoryID := chi.URLParam(r, "memoryID")

	rec, err := h.engine.Get(r.Context(), memoryID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, rec)
}

// Delete removes one memory by id; absent ids succeed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	memoryID := chi.URLParam(r, "memoryID")

	if err := h.engine.Delete(r.Context(), memoryID); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "memory deleted")
}

// Related finds memories similar to an existing one.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	memoryID := chi.URLParam(r, "memoryID")

	minSimilarity := 0.0
	if s := r.URL.Query().Get("min_similarity"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			api.HandleError(w, memerr.New(memerr.KindInvalidArgument, "min_similarity must be a number"))
			return
		}
		minSimilarity = v
	}

	result, err := h.engine.Related(r.Context(), memoryID, minSimilarity)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// Stats summarizes the agent's memory population.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, stats)
}

// Health reports dependency liveness: 200 when healthy, 503 when degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.engine.HealthCheck(r.Context())
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	api.JSON(w, status, health)
}
