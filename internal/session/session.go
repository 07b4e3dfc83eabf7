// Package session implements the continuity protocol layered on the
// retrieval engine: a multi-section context digest assembled at session start
// and a single bridge memory written at session end.
package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/membridge-ai/membridge/internal/events"
	"github.com/membridge-ai/membridge/internal/memory"
	"github.com/membridge-ai/membridge/internal/metrics"
	"github.com/membridge-ai/membridge/internal/retrieval"
)

// FreshStart is returned by Initialize when no category yields a qualifying
// memory, so callers can distinguish "no memories" from an empty digest.
const FreshStart = "No initialization memories found. Fresh start."

// Retriever is the slice of the retrieval engine the protocol needs.
type Retriever interface {
	Search(ctx context.Context, query string, limit int, mode retrieval.Mode) (*retrieval.SearchResult, error)
	Store(ctx context.Context, text string, meta memory.Metadata) (*retrieval.StoreReceipt, error)
}

// contextPass is one retrieval category of the initialization digest: a fixed
// canonical query with its own threshold and store-level limit. The limit
// applies before the threshold filter; top-K all falling below the threshold
// legitimately yields an empty category.
type contextPass struct {
	heading   string
	query     string
	threshold float64
	limit     int
}

var digestPasses = []contextPass{
	{
		heading:   "## Recent Session Context",
		query:     "CONVERSATION-BRIDGE recent session momentum pending",
		threshold: 0.60,
		limit:     3,
	},
	{
		heading:   "## User Preferences & Patterns",
		query:     "PREFERENCE PATTERN PRINCIPLE user preferences habits",
		threshold: 0.65,
		limit:     5,
	},
	{
		heading:   "## Active Projects",
		query:     "PROJECT active current working building status",
		threshold: 0.65,
		limit:     3,
	},
	{
		heading:   "## Cognitive Patterns",
		query:     "CONSCIOUSNESS pattern observation cognitive evolution",
		threshold: 0.65,
		limit:     3,
	},
}

// Protocol runs session initialization and close for one agent.
type Protocol struct {
	retriever Retriever
	agentID   string
	userName  string
	events    *events.Publisher
}

// Option configures optional Protocol collaborators.
type Option func(*Protocol)

// WithEvents attaches a lifecycle event publisher.
func WithEvents(p *events.Publisher) Option {
	return func(pr *Protocol) { pr.events = p }
}

// New creates a Protocol. userName labels the user in formatted memories; an
// empty value falls back to "User" at format time.
func New(retriever Retriever, agentID, userName string, opts ...Option) *Protocol {
	p := &Protocol{retriever: retriever, agentID: agentID, userName: userName}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize assembles the session-start digest: four independent threshold
// filtered retrieval passes in fixed category order. A failed pass degrades
// to zero results for its category rather than aborting the digest; partial
// context is better than none.
func (p *Protocol) Initialize(ctx context.Context) string {
	var parts []string

	for _, pass := range digestPasses {
		found := p.retrieve(ctx, pass)
		if len(found) == 0 {
			continue
		}
		parts = append(parts, pass.heading+"\n")
		parts = append(parts, FormatForContext(found))
	}

	if len(parts) == 0 {
		metrics.SessionDigestsTotal.WithLabelValues("fresh_start").Inc()
		return FreshStart
	}
	metrics.SessionDigestsTotal.WithLabelValues("digest").Inc()
	return strings.Join(parts, "\n")
}

func (p *Protocol) retrieve(ctx context.Context, pass contextPass) []retrieval.Result {
	res, err := p.retriever.Search(ctx, pass.query, pass.limit, retrieval.ModeVector)
	if err != nil {
		slog.Warn("session context pass failed", "heading", pass.heading, "error", err)
		return nil
	}
	var kept []retrieval.Result
	for _, r := range res.Results {
		if r.Similarity >= pass.threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// BridgeResult is the structured outcome of Close. Write failures surface
// here rather than as an error, so session close never throws across the
// caller boundary.
type BridgeResult struct {
	Success   bool   `json:"success"`
	MemoryID  string `json:"memory_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Close writes exactly one conversation_bridge memory summarizing session
// state for future resumption. Bridges accumulate; retrieval, not storage, is
// responsible for surfacing only the most relevant ones.
func (p *Protocol) Close(ctx context.Context, conversationID, status, momentum, pending, retrievalMarkers string) *BridgeResult {
	topic := "Session " + tail(conversationID, 8)
	text, meta := memory.FormatForStorage(status, memory.CategoryConversationBridge, topic, memory.FormatContext{
		UserName:         p.userName,
		Status:           status,
		Momentum:         momentum,
		Pending:          pending,
		RetrievalMarkers: retrievalMarkers,
		ConversationID:   conversationID,
	})

	receipt, err := p.retriever.Store(ctx, text, meta)
	if err != nil {
		slog.Warn("storing conversation bridge failed", "error", err, "conversation_id", conversationID)
		metrics.BridgesWrittenTotal.WithLabelValues("error").Inc()
		return &BridgeResult{Success: false, Error: err.Error()}
	}
	metrics.BridgesWrittenTotal.WithLabelValues("ok").Inc()

	if err := p.events.PublishBridgeWritten(ctx, events.BridgeWritten{
		MemoryID:       receipt.ID,
		AgentID:        p.agentID,
		ConversationID: conversationID,
		CreatedAt:      time.Now().Unix(),
	}); err != nil {
		slog.Warn("publishing bridge event", "error", err, "memory_id", receipt.ID)
	}

	return &BridgeResult{Success: true, MemoryID: receipt.ID, CreatedAt: receipt.CreatedAt}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
