package events

// Stream and subject names for memory lifecycle events.
const (
	StreamEvents = "MEMBRIDGE_EVENTS"

	SubjectMemoryStored  = "membridge.events.memory.stored"
	SubjectMemoryDeleted = "membridge.events.memory.deleted"
	SubjectBridgeWritten = "membridge.events.session.bridge"
)

// MemoryStored announces a newly persisted memory record.
type MemoryStored struct {
	MemoryID    string `json:"memory_id"`
	AgentID     string `json:"agent_id"`
	ContextType string `json:"context_type,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// MemoryDeleted announces a hard delete.
type MemoryDeleted struct {
	MemoryID string `json:"memory_id"`
	AgentID  string `json:"agent_id"`
	At       int64  `json:"at"`
}

// BridgeWritten announces a conversation bridge stored at session close.
type BridgeWritten struct {
	MemoryID       string `json:"memory_id"`
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
	CreatedAt      int64  `json:"created_at"`
}
