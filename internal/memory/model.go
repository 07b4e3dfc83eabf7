package memory

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/membridge-ai/membridge/internal/memerr"
)

// MaxTextRunes is the upper bound on memory content length, enforced before
// any network call so an oversized store attempt never reaches the embedding
// service or the store.
const MaxTextRunes = 100000

// IDPrefix is prepended to every generated memory identifier.
const IDPrefix = "mem_"

// Record is a row in the memories table. Records are immutable once stored;
// there is no update path, so UpdatedAt always mirrors CreatedAt.
type Record struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
}

// NewRecord builds a Record with a fresh id and current timestamps.
func NewRecord(agentID, text string, embedding []float32, meta Metadata) *Record {
	now := time.Now().Unix()
	return &Record{
		ID:        NewID(),
		AgentID:   agentID,
		Text:      text,
		Embedding: embedding,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID generates a memory identifier: the prefix plus the first 12 hex
// characters of a random UUID.
func NewID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return IDPrefix + hex[:12]
}

// ValidateText rejects content exceeding MaxTextRunes. Length is counted in
// runes, not bytes, matching the store's character limit.
func ValidateText(text string) error {
	if utf8.RuneCountInString(text) > MaxTextRunes {
		return memerr.Newf(memerr.KindInvalidArgument, "text exceeds %d character limit", MaxTextRunes)
	}
	return nil
}

// FormatTimestamp renders a Unix-epoch-second timestamp as ISO-8601 UTC.
func FormatTimestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

// Metadata is the typed envelope around a record's metadata JSON: a fixed set
// of well-known optional fields plus an open Extra map for anything else. It
// is flattened to a single JSON object only at the store boundary.
type Metadata struct {
	ContextType    string
	Topic          string
	Timestamp      string
	ConversationID string
	RelatedTo      string
	Priority       string
	Status         string
	Category       string
	Extra          map[string]any
}

var wellKnownKeys = map[string]struct{}{
	"context_type":    {},
	"topic":           {},
	"timestamp":       {},
	"conversation_id": {},
	"related_to":      {},
	"priority":        {},
	"status":          {},
	"category":        {},
}

// MarshalJSON flattens the envelope into one object, well-known fields first,
// extension fields merged in. Empty well-known fields are omitted.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		if _, reserved := wellKnownKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	set := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}
	set("context_type", m.ContextType)
	set("topic", m.Topic)
	set("timestamp", m.Timestamp)
	set("conversation_id", m.ConversationID)
	set("related_to", m.RelatedTo)
	set("priority", m.Priority)
	set("status", m.Status)
	set("category", m.Category)
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object back into well-known fields and Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	str := func(key string) string {
		if v, ok := raw[key].(string); ok {
			return v
		}
		return ""
	}
	m.ContextType = str("context_type")
	m.Topic = str("topic")
	m.Timestamp = str("timestamp")
	m.ConversationID = str("conversation_id")
	m.RelatedTo = str("related_to")
	m.Priority = str("priority")
	m.Status = str("status")
	m.Category = str("category")
	for k, v := range raw {
		if _, reserved := wellKnownKeys[k]; reserved {
			continue
		}
		if m.Extra == nil {
			m.Extra = map[string]any{}
		}
		m.Extra[k] = v
	}
	return nil
}

// ParseMetadata decodes a metadata JSON document from the store. Empty input
// yields a zero envelope.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, memerr.Wrap(memerr.KindStoreProtocolError, "decoding metadata", err)
	}
	return m, nil
}

// Hit is a search row: a record without its embedding, plus the similarity
// assigned by the search mode.
type Hit struct {
	ID         string
	Text       string
	Metadata   Metadata
	CreatedAt  int64
	Similarity float64
}

// Stats summarizes an agent's memory population. The timestamp fields are nil
// when the agent has no records.
type Stats struct {
	AgentID       string  `json:"agent_id"`
	Namespace     string  `json:"namespace"`
	MemoryCount   int64   `json:"memory_count"`
	FirstMemoryAt *string `json:"first_memory_at"`
	LastMemoryAt  *string `json:"last_memory_at"`
}
