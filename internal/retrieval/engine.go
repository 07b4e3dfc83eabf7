package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/membridge-ai/membridge/internal/embedding"
	"github.com/membridge-ai/membridge/internal/events"
	"github.com/membridge-ai/membridge/internal/memerr"
	"github.com/membridge-ai/membridge/internal/memory"
	"github.com/membridge-ai/membridge/internal/metrics"
)

// Mode selects how a search ranks records.
type Mode string

const (
	ModeVector        Mode = "vector"
	ModeChronological Mode = "chronological"
	// ModeHybrid is mechanically identical to ModeVector: no recency blending
	// is defined anywhere in the retrieval protocol.
	ModeHybrid Mode = "hybrid"
)

const (
	// MaxLimit bounds the store-level row limit on every search.
	MaxLimit = 100
	// DefaultLimit applies when a caller passes no limit.
	DefaultLimit = 10
	// relatedLimit is the store-level row limit for related-memory lookups,
	// applied before threshold filtering.
	relatedLimit = 10

	// chronologicalSimilarity marks results that were not ranked by
	// relevance.
	chronologicalSimilarity = 1.0
)

// Result is one search row as surfaced to callers.
type Result struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Metadata   memory.Metadata `json:"metadata"`
	CreatedAt  string          `json:"created_at"`
	Similarity float64         `json:"similarity"`
}

// SearchResult is the full response of a search operation. QueryTimeMs is
// measured by the engine, not the store, and covers embedding plus query.
type SearchResult struct {
	Results     []Result `json:"results"`
	QueryTimeMs int64    `json:"query_time_ms"`
	Namespace   string   `json:"namespace"`
	Mode        Mode     `json:"mode"`
}

// StoreReceipt confirms a stored memory.
type StoreReceipt struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Health reports dependency liveness. Status is "healthy" only when both the
// embedding service and the store respond.
type Health struct {
	Status    string `json:"status"`
	Embedding string `json:"embedding"`
	Store     string `json:"store"`
}

// Prober checks embedding-service liveness.
type Prober interface {
	Health(ctx context.Context) error
}

// Engine orchestrates embedding and store queries for one agent. It holds no
// mutable state beyond configuration set at construction, so a single Engine
// may be shared across callers.
type Engine struct {
	repo     memory.Repository
	embedder embedding.Client
	prober   Prober
	agentID  string
	events   *events.Publisher
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithProber attaches an embedding-service liveness probe used by Health.
func WithProber(p Prober) Option {
	return func(e *Engine) { e.prober = p }
}

// WithEvents attaches a lifecycle event publisher.
func WithEvents(p *events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// NewEngine creates an Engine scoped to agentID.
func NewEngine(repo memory.Repository, embedder embedding.Client, agentID string, opts ...Option) *Engine {
	e := &Engine{repo: repo, embedder: embedder, agentID: agentID}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AgentID returns the namespace partition this engine operates in.
func (e *Engine) AgentID() string {
	return e.agentID
}

func (e *Engine) namespace() string {
	return "agent_" + e.agentID
}

// Store validates, embeds, and persists a new memory. The length check runs
// before any network call so an oversized text never reaches the embedding
// service. Store is not idempotent: retrying a failed call may create a
// duplicate record under a new id.
func (e *Engine) Store(ctx context.Context, text string, meta memory.Metadata) (*StoreReceipt, error) {
	if err := memory.ValidateText(text); err != nil {
		metrics.MemoriesStoredTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	vec, err := e.embed(ctx, text)
	if err != nil {
		metrics.MemoriesStoredTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	rec := memory.NewRecord(e.agentID, text, vec, meta)
	if err := e.repo.Insert(ctx, rec); err != nil {
		metrics.MemoriesStoredTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MemoriesStoredTotal.WithLabelValues("ok").Inc()

	if err := e.events.PublishMemoryStored(ctx, events.MemoryStored{
		MemoryID:    rec.ID,
		AgentID:     rec.AgentID,
		ContextType: rec.Metadata.ContextType,
		CreatedAt:   rec.CreatedAt,
	}); err != nil {
		slog.Warn("publishing memory stored event", "error", err, "memory_id", rec.ID)
	}

	return &StoreReceipt{
		ID:        rec.ID,
		Text:      rec.Text,
		CreatedAt: memory.FormatTimestamp(rec.CreatedAt),
	}, nil
}

// Search retrieves up to limit memories for this agent. Vector and hybrid
// modes require a query and rank by ascending cosine distance; chronological
// mode ignores the query, orders by recency, and assigns the sentinel
// similarity 1.0. Lower-layer failures propagate unchanged.
func (e *Engine) Search(ctx context.Context, query string, limit int, mode Mode) (*SearchResult, error) {
	start := time.Now()

	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, memerr.Newf(memerr.KindInvalidArgument, "limit must be in [1, %d], got %d", MaxLimit, limit)
	}

	var hits []memory.Hit
	var err error

	switch mode {
	case ModeChronological:
		hits, err = e.repo.SearchChronological(ctx, e.agentID, limit)
		for i := range hits {
			hits[i].Similarity = chronologicalSimilarity
		}
	case ModeVector, ModeHybrid:
		if query == "" {
			metrics.SearchesTotal.WithLabelValues(string(mode), "invalid").Inc()
			return nil, memerr.Newf(memerr.KindInvalidArgument, "query required for %s search", mode)
		}
		var vec []float32
		vec, err = e.embed(ctx, query)
		if err == nil {
			hits, err = e.repo.SearchByVector(ctx, e.agentID, vec, limit, "")
		}
	default:
		metrics.SearchesTotal.WithLabelValues(string(mode), "invalid").Inc()
		return nil, memerr.Newf(memerr.KindInvalidArgument,
			"mode must be %q, %q, or %q", ModeVector, ModeChronological, ModeHybrid)
	}
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(string(mode), "error").Inc()
		return nil, err
	}

	metrics.SearchesTotal.WithLabelValues(string(mode), "ok").Inc()
	metrics.SearchDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	return &SearchResult{
		Results:     toResults(hits),
		QueryTimeMs: time.Since(start).Milliseconds(),
		Namespace:   e.namespace(),
		Mode:        mode,
	}, nil
}

// Related finds memories similar to an existing one by reusing its stored
// embedding as the query vector; the target's text is never re-embedded. The
// store-level limit applies before the minSimilarity filter, so a low
// threshold with a small limit can still yield zero results.
func (e *Engine) Related(ctx context.Context, memoryID string, minSimilarity float64) (*SearchResult, error) {
	start := time.Now()

	vec, err := e.repo.EmbeddingByID(ctx, e.agentID, memoryID)
	if err != nil {
		return nil, err
	}

	hits, err := e.repo.SearchByVector(ctx, e.agentID, vec, relatedLimit, memoryID)
	if err != nil {
		return nil, err
	}

	var kept []memory.Hit
	for _, h := range hits {
		if h.Similarity >= minSimilarity {
			kept = append(kept, h)
		}
	}

	return &SearchResult{
		Results:     toResults(kept),
		QueryTimeMs: time.Since(start).Milliseconds(),
		Namespace:   e.namespace(),
		Mode:        ModeVector,
	}, nil
}

// Get fetches one record by id.
func (e *Engine) Get(ctx context.Context, memoryID string) (*memory.Record, error) {
	return e.repo.GetByID(ctx, e.agentID, memoryID)
}

// Delete hard-deletes a record. Deleting an absent id succeeds.
func (e *Engine) Delete(ctx context.Context, memoryID string) error {
	if err := e.repo.Delete(ctx, e.agentID, memoryID); err != nil {
		return err
	}
	if err := e.events.PublishMemoryDeleted(ctx, events.MemoryDeleted{
		MemoryID: memoryID,
		AgentID:  e.agentID,
		At:       time.Now().Unix(),
	}); err != nil {
		slog.Warn("publishing memory deleted event", "error", err, "memory_id", memoryID)
	}
	return nil
}

// Stats summarizes this agent's memory population.
func (e *Engine) Stats(ctx context.Context) (*memory.Stats, error) {
	return e.repo.Stats(ctx, e.agentID)
}

// HealthCheck probes the embedding service and the store.
func (e *Engine) HealthCheck(ctx context.Context) *Health {
	h := &Health{Status: "healthy", Embedding: "up", Store: "up"}

	if e.prober != nil {
		if err := e.prober.Health(ctx); err != nil {
			slog.Warn("embedding health probe failed", "error", err)
			h.Embedding = "down"
		}
	}
	if err := e.repo.Ping(ctx); err != nil {
		slog.Warn("store health probe failed", "error", err)
		h.Store = "down"
	}
	if h.Embedding != "up" || h.Store != "up" {
		h.Status = "degraded"
	}
	return h
}

// Events exposes the publisher for collaborators layered on the engine.
func (e *Engine) Events() *events.Publisher {
	return e.events
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	return vec, nil
}

func toResults(hits []memory.Hit) []Result {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:         h.ID,
			Text:       h.Text,
			Metadata:   h.Metadata,
			CreatedAt:  memory.FormatTimestamp(h.CreatedAt),
			Similarity: h.Similarity,
		})
	}
	return results
}
