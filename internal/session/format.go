package session

import (
	"fmt"
	"strings"

	"github.com/membridge-ai/membridge/internal/retrieval"
)

// FormatForContext renders retrieved memories as readable context for
// injection into a conversation. Returns "" for an empty slice.
func FormatForContext(memories []retrieval.Result) string {
	if len(memories) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Relevant Memories\n\n")

	for i, mem := range memories {
		contextType := mem.Metadata.ContextType
		if contextType == "" {
			contextType = "general"
		}
		fmt.Fprintf(&b, "**Memory %d** (similarity: %.2f, id: %s)\n", i+1, mem.Similarity, mem.ID)
		fmt.Fprintf(&b, "*Type: %s*\n", contextType)
		fmt.Fprintf(&b, "%s\n\n", mem.Text)
	}
	return b.String()
}
