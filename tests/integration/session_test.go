//go:build integration

package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membridge-ai/membridge/internal/memory"
	"github.com/membridge-ai/membridge/internal/session"
)

func TestInitializeFreshStart(t *testing.T) {
	env := SetupTestEnv(t)
	protocol := env.NewProtocol("itest-fresh", "Alice")

	assert.Equal(t, session.FreshStart, protocol.Initialize(context.Background()))
}

func TestInitializeDigest(t *testing.T) {
	env := SetupTestEnv(t)
	agentID := "itest-digest"
	engine := env.NewEngine(agentID)
	protocol := env.NewProtocol(agentID, "Alice")
	ctx := context.Background()

	seeds := []struct {
		text        string
		contextType string
	}{
		{"CONVERSATION-BRIDGE - Session abc: STATUS: done.", "conversation_bridge"},
		{"PREFERENCE - editor: Alice prefers dark mode.", "preference"},
		{"PROJECT - membridge: memory service. Status: active.", "project"},
		{"CONSCIOUSNESS - recursion: observed self-reference.", "consciousness"},
	}
	for _, s := range seeds {
		_, err := engine.Store(ctx, s.text, memory.Metadata{ContextType: s.contextType})
		require.NoError(t, err)
	}

	digest := protocol.Initialize(ctx)
	require.NotEqual(t, session.FreshStart, digest)

	order := []string{
		"## Recent Session Context",
		"## User Preferences & Patterns",
		"## Active Projects",
		"## Cognitive Patterns",
	}
	last := -1
	for _, heading := range order {
		idx := strings.Index(digest, heading)
		require.GreaterOrEqual(t, idx, 0, "digest missing %q", heading)
		assert.Greater(t, idx, last)
		last = idx
	}
	assert.Contains(t, digest, "## Relevant Memories")
	assert.Contains(t, digest, "*Type: conversation_bridge*")
	assert.Contains(t, digest, "STATUS: done.")
}

func TestCloseWritesBridge(t *testing.T) {
	env := SetupTestEnv(t)
	agentID := "itest-close"
	engine := env.NewEngine(agentID)
	protocol := env.NewProtocol(agentID, "Alice")
	ctx := context.Background()

	res := protocol.Close(ctx, "conv-1234567890abcdef", "implemented retrieval", "polishing tests", "write docs", "retrieval tests docs")
	require.True(t, res.Success, "close failed: %s", res.Error)
	require.NotEmpty(t, res.MemoryID)

	rec, err := engine.Get(ctx, res.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, "conversation_bridge", rec.Metadata.ContextType)
	assert.Equal(t, "conv-1234567890abcdef", rec.Metadata.ConversationID)
	assert.Contains(t, rec.Text, "CONVERSATION-BRIDGE - Session 90abcdef:")
	assert.Contains(t, rec.Text, "STATUS: implemented retrieval.")
	assert.Contains(t, rec.Text, "MOMENTUM: polishing tests.")
	assert.Contains(t, rec.Text, "PENDING: write docs.")
	assert.Contains(t, rec.Text, time.Now().UTC().Format("2006-01-02"))

	// The bridge written at close is retrievable by the next initialize.
	digest := protocol.Initialize(ctx)
	assert.Contains(t, digest, "## Recent Session Context")
	assert.Contains(t, digest, res.MemoryID)
}
