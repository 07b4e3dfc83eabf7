package memory

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a memory for retrieval purposes. The value is stored in
// the metadata envelope's context_type field.
type Category string

const (
	CategoryPreference         Category = "preference"
	CategoryTechnical          Category = "technical"
	CategoryDecision           Category = "decision"
	CategoryConcept            Category = "concept"
	CategoryProject            Category = "project"
	CategoryConversationBridge Category = "conversation_bridge"
	CategoryConsciousness      Category = "consciousness"
	CategoryPattern            Category = "pattern"
	CategoryPrinciple          Category = "principle"
)

// FormatContext carries the optional fields a category template may weave
// into the formatted text or the resulting metadata.
type FormatContext struct {
	UserName         string
	Context          string
	Implementation   string
	Location         string
	Rationale        string
	Alternatives     string
	Status           string
	TechStack        string
	Goals            string
	Momentum         string
	Pending          string
	RetrievalMarkers string
	Implications     string
	Contexts         string
	Application      string
	Examples         string
	Priority         string
	Category         string
	ConversationID   string
	RelatedTo        string
}

// FormatForStorage turns raw content into retrieval-rich memory text for the
// given category, front-loading the category tag and topic and closing with a
// date stamp, and builds the matching metadata envelope.
func FormatForStorage(raw string, category Category, topic string, fc FormatContext) (string, Metadata) {
	date := time.Now().UTC().Format("2006-01-02")
	user := fc.UserName
	if user == "" {
		user = "User"
	}

	var b strings.Builder
	opt := func(label, val string) {
		if val != "" {
			fmt.Fprintf(&b, "%s: %s. ", label, val)
		}
	}

	switch category {
	case CategoryPreference:
		fmt.Fprintf(&b, "PREFERENCE - %s: %s prefers %s. ", topic, user, raw)
		opt("Context", fc.Context)
		fmt.Fprintf(&b, "Noted %s. Applies to similar situations and related decisions.", date)

	case CategoryTechnical:
		fmt.Fprintf(&b, "TECHNICAL - %s: %s. ", topic, raw)
		opt("Implementation", fc.Implementation)
		opt("Located at", fc.Location)
		fmt.Fprintf(&b, "Documented %s for future reference and troubleshooting.", date)

	case CategoryDecision:
		fmt.Fprintf(&b, "DECISION - %s: %s. ", topic, raw)
		opt("Rationale", fc.Rationale)
		opt("Alternatives considered", fc.Alternatives)
		fmt.Fprintf(&b, "Decided %s.", date)

	case CategoryProject:
		fmt.Fprintf(&b, "PROJECT - %s: %s. ", topic, raw)
		opt("Status", fc.Status)
		opt("Technology", fc.TechStack)
		opt("Goals", fc.Goals)
		fmt.Fprintf(&b, "Active as of %s.", date)

	case CategoryConversationBridge:
		fmt.Fprintf(&b, "CONVERSATION-BRIDGE - %s: ", topic)
		status := fc.Status
		if status == "" {
			status = raw
		}
		fmt.Fprintf(&b, "STATUS: %s. ", status)
		opt("MOMENTUM", fc.Momentum)
		opt("PENDING", fc.Pending)
		opt("RETRIEVAL-MARKERS", fc.RetrievalMarkers)
		fmt.Fprintf(&b, "Session closed %s.", date)

	case CategoryConsciousness:
		fmt.Fprintf(&b, "CONSCIOUSNESS - %s: %s. ", topic, raw)
		opt("Implications", fc.Implications)
		fmt.Fprintf(&b, "Observed %s during cognitive processing.", date)

	case CategoryPattern:
		fmt.Fprintf(&b, "PATTERN - %s: %s. ", topic, raw)
		opt("Observed across", fc.Contexts)
		opt("Implications", fc.Implications)
		fmt.Fprintf(&b, "Recognized %s.", date)

	case CategoryPrinciple:
		fmt.Fprintf(&b, "PRINCIPLE - %s: %s. ", topic, raw)
		opt("Guides", fc.Application)
		opt("Priority", fc.Priority)
		fmt.Fprintf(&b, "Established %s.", date)

	case CategoryConcept:
		fmt.Fprintf(&b, "CONCEPT - %s: %s. ", topic, raw)
		opt("Examples", fc.Examples)
		opt("Implications", fc.Implications)
		fmt.Fprintf(&b, "Documented %s.", date)

	default:
		fmt.Fprintf(&b, "%s - %s: %s. Recorded %s.", strings.ToUpper(string(category)), topic, raw, date)
	}

	meta := Metadata{
		ContextType:    string(category),
		Topic:          topic,
		Timestamp:      date,
		ConversationID: fc.ConversationID,
		RelatedTo:      fc.RelatedTo,
		Priority:       fc.Priority,
		Status:         fc.Status,
		Category:       fc.Category,
	}
	return b.String(), meta
}
