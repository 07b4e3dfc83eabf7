package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membridge-ai/membridge/internal/embedding"
	"github.com/membridge-ai/membridge/internal/memerr"
	"github.com/membridge-ai/membridge/internal/memory"
)

// fakeRepo is an in-memory Repository capturing calls for assertions.
type fakeRepo struct {
	records map[string]*memory.Record

	vectorHits []memory.Hit
	chronoHits []memory.Hit

	insertErr error
	searchErr error
	pingErr   error

	lastVectorLimit int
	lastExcludeID   string
	deleted         []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]*memory.Record{}}
}

func (f *fakeRepo) Insert(_ context.Context, rec *memory.Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, _, id string) (*memory.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, memerr.Newf(memerr.KindNotFound, "memory not found: %s", id)
	}
	return rec, nil
}

func (f *fakeRepo) SearchByVector(_ context.Context, _ string, _ []float32, limit int, excludeID string) ([]memory.Hit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.lastVectorLimit = limit
	f.lastExcludeID = excludeID
	hits := f.vectorHits
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeRepo) SearchChronological(_ context.Context, _ string, limit int) ([]memory.Hit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	hits := f.chronoHits
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeRepo) Delete(_ context.Context, _, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.records, id)
	return nil
}

func (f *fakeRepo) Stats(_ context.Context, agentID string) (*memory.Stats, error) {
	return &memory.Stats{
		AgentID:     agentID,
		Namespace:   "agent_" + agentID,
		MemoryCount: int64(len(f.records)),
	}, nil
}

func (f *fakeRepo) EmbeddingByID(_ context.Context, _, id string) ([]float32, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, memerr.Newf(memerr.KindNotFound, "memory not found: %s", id)
	}
	return rec.Embedding, nil
}

func (f *fakeRepo) Ping(_ context.Context) error {
	return f.pingErr
}

func countingEmbedder(calls *int) embedding.Client {
	return embedding.Func(func(_ context.Context, text string) ([]float32, error) {
		*calls++
		return []float32{0.1, 0.2, 0.3}, nil
	})
}

func TestEngineStore(t *testing.T) {
	t.Run("stores and returns receipt", func(t *testing.T) {
		repo := newFakeRepo()
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1")

		receipt, err := e.Store(context.Background(), "remember this", memory.Metadata{Topic: "test"})
		require.NoError(t, err)
		assert.Contains(t, receipt.ID, "mem_")
		assert.Equal(t, "remember this", receipt.Text)
		assert.NotEmpty(t, receipt.CreatedAt)

		rec := repo.records[receipt.ID]
		require.NotNil(t, rec)
		assert.Equal(t, "agent-1", rec.AgentID)
		assert.Len(t, rec.Embedding, 4)
		assert.Equal(t, "test", rec.Metadata.Topic)
	})

	t.Run("oversized text rejected before embedding", func(t *testing.T) {
		calls := 0
		e := NewEngine(newFakeRepo(), countingEmbedder(&calls), "agent-1")

		big := make([]byte, memory.MaxTextRunes+1)
		for i := range big {
			big[i] = 'x'
		}
		_, err := e.Store(context.Background(), string(big), memory.Metadata{})
		require.Error(t, err)
		assert.Equal(t, memerr.KindInvalidArgument, memerr.KindOf(err))
		assert.Zero(t, calls, "embedder must not be called for oversized text")
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		e := NewEngine(newFakeRepo(), embedding.Func(func(_ context.Context, _ string) ([]float32, error) {
			return nil, memerr.New(memerr.KindEmbeddingUnavailable, "down")
		}), "agent-1")

		_, err := e.Store(context.Background(), "text", memory.Metadata{})
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
	})

	t.Run("insert failure propagates", func(t *testing.T) {
		repo := newFakeRepo()
		repo.insertErr = memerr.New(memerr.KindStoreUnavailable, "down")
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1")

		_, err := e.Store(context.Background(), "text", memory.Metadata{})
		assert.Equal(t, memerr.KindStoreUnavailable, memerr.KindOf(err))
	})
}

func TestEngineSearch(t *testing.T) {
	hits := []memory.Hit{
		{ID: "mem_1", Text: "first", CreatedAt: 1700000000, Similarity: 0.92},
		{ID: "mem_2", Text: "second", CreatedAt: 1700000100, Similarity: 0.71},
	}

	t.Run("vector mode", func(t *testing.T) {
		repo := newFakeRepo()
		repo.vectorHits = hits
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1")

		res, err := e.Search(context.Background(), "query", 5, ModeVector)
		require.NoError(t, err)
		assert.Equal(t, ModeVector, res.Mode)
		assert.Equal(t, "agent_agent-1", res.Namespace)
		require.Len(t, res.Results, 2)
		assert.Equal(t, "mem_1", res.Results[0].ID)
		assert.Equal(t, 0.92, res.Results[0].Similarity)
		assert.Equal(t, 5, repo.lastVectorLimit)
		assert.Empty(t, repo.lastExcludeID)
	})

	t.Run("hybrid behaves like vector", func(t *testing.T) {
		repo := newFakeRepo()
		repo.vectorHits = hits
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1")

		res, err := e.Search(context.Background(), "query", 5, ModeHybrid)
		require.NoError(t, err)
		assert.Equal(t, ModeHybrid, res.Mode)
		require.Len(t, res.Results, 2)
		assert.Equal(t, 0.92, res.Results[0].Similarity)
	})

	t.Run("chronological skips embedding and marks sentinel", func(t *testing.T) {
		calls := 0
		repo := newFakeRepo()
		repo.chronoHits = hits
		e := NewEngine(repo, countingEmbedder(&calls), "agent-1")

		res, err := e.Search(context.Background(), "", 5, ModeChronological)
		require.NoError(t, err)
		assert.Zero(t, calls)
		for _, r := range res.Results {
			assert.Equal(t, 1.0, r.Similarity)
		}
	})

	t.Run("vector mode requires query", func(t *testing.T) {
		e := NewEngine(newFakeRepo(), embedding.Deterministic(4), "agent-1")
		_, err := e.Search(context.Background(), "", 5, ModeVector)
		require.Error(t, err)
		assert.Equal(t, memerr.KindInvalidArgument, memerr.KindOf(err))
	})

	t.Run("zero limit defaults", func(t *testing.T) {
		repo := newFakeRepo()
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1")
		_, err := e.Search(context.Background(), "q", 0, ModeVector)
		require.NoError(t, err)
		assert.Equal(t, DefaultLimit, repo.lastVectorLimit)
	})

	t.Run("limit out of range", func(t *testing.T) {
		e := NewEngine(newFakeRepo(), embedding.Deterministic(4), "agent-1")
		for _, limit := range []int{-1, MaxLimit + 1} {
			_, err := e.Search(context.Background(), "q", limit, ModeVector)
			require.Error(t, err, "limit %d", limit)
			assert.Equal(t, memerr.KindInvalidArgument, memerr.KindOf(err))
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		e := NewEngine(newFakeRepo(), embedding.Deterministic(4), "agent-1")
		_, err := e.Search(context.Background(), "q", 5, Mode("fuzzy"))
		require.Error(t, err)
		assert.Equal(t, memerr.KindInvalidArgument, memerr.KindOf(err))
	})

	t.Run("store failure propagates", func(t *testing.T) {
		repo := newFakeRepo()
		repo.searchErr = memerr.New(memerr.KindStoreUnavailable, "down")
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1")
		_, err := e.Search(context.Background(), "q", 5, ModeVector)
		assert.Equal(t, memerr.KindStoreUnavailable, memerr.KindOf(err))
	})
}

func TestEngineRelated(t *testing.T) {
	seed := func(repo *fakeRepo) {
		repo.records["mem_src"] = &memory.Record{
			ID:        "mem_src",
			AgentID:   "agent-1",
			Embedding: []float32{0.4, 0.4},
		}
	}

	t.Run("reuses stored embedding and excludes self", func(t *testing.T) {
		repo := newFakeRepo()
		seed(repo)
		repo.vectorHits = []memory.Hit{
			{ID: "mem_a", Similarity: 0.9},
			{ID: "mem_b", Similarity: 0.6},
		}
		calls := 0
		e := NewEngine(repo, countingEmbedder(&calls), "agent-1")

		res, err := e.Related(context.Background(), "mem_src", 0.7)
		require.NoError(t, err)
		assert.Zero(t, calls, "related lookup must not re-embed")
		assert.Equal(t, "mem_src", repo.lastExcludeID)
		require.Len(t, res.Results, 1)
		assert.Equal(t, "mem_a", res.Results[0].ID)
	})

	t.Run("threshold applies after store limit", func(t *testing.T) {
		repo := newFakeRepo()
		seed(repo)
		repo.vectorHits = []memory.Hit{
			{ID: "mem_a", Similarity: 0.5},
			{ID: "mem_b", Similarity: 0.4},
		}
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1")

		res, err := e.Related(context.Background(), "mem_src", 0.8)
		require.NoError(t, err)
		assert.Empty(t, res.Results)
		assert.Equal(t, 10, repo.lastVectorLimit)
	})

	t.Run("unknown id", func(t *testing.T) {
		e := NewEngine(newFakeRepo(), embedding.Deterministic(4), "agent-1")
		_, err := e.Related(context.Background(), "mem_missing", 0)
		require.Error(t, err)
		assert.Equal(t, memerr.KindNotFound, memerr.KindOf(err))
	})
}

func TestEngineDelete(t *testing.T) {
	repo := newFakeRepo()
	e := NewEngine(repo, embedding.Deterministic(4), "agent-1")

	// Absent id still succeeds.
	require.NoError(t, e.Delete(context.Background(), "mem_ghost"))
	assert.Equal(t, []string{"mem_ghost"}, repo.deleted)
}

func TestEngineStats(t *testing.T) {
	repo := newFakeRepo()
	e := NewEngine(repo, embedding.Deterministic(4), "agent-1")

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent-1", stats.AgentID)
	assert.Equal(t, "agent_agent-1", stats.Namespace)
	assert.Zero(t, stats.MemoryCount)
}

type proberFunc func(ctx context.Context) error

func (f proberFunc) Health(ctx context.Context) error { return f(ctx) }

func TestEngineHealthCheck(t *testing.T) {
	up := proberFunc(func(context.Context) error { return nil })
	down := proberFunc(func(context.Context) error { return errors.New("unreachable") })

	t.Run("healthy", func(t *testing.T) {
		e := NewEngine(newFakeRepo(), embedding.Deterministic(4), "agent-1", WithProber(up))
		h := e.HealthCheck(context.Background())
		assert.Equal(t, "healthy", h.Status)
		assert.Equal(t, "up", h.Embedding)
		assert.Equal(t, "up", h.Store)
	})

	t.Run("embedding down", func(t *testing.T) {
		e := NewEngine(newFakeRepo(), embedding.Deterministic(4), "agent-1", WithProber(down))
		h := e.HealthCheck(context.Background())
		assert.Equal(t, "degraded", h.Status)
		assert.Equal(t, "down", h.Embedding)
	})

	t.Run("store down", func(t *testing.T) {
		repo := newFakeRepo()
		repo.pingErr = errors.New("unreachable")
		e := NewEngine(repo, embedding.Deterministic(4), "agent-1", WithProber(up))
		h := e.HealthCheck(context.Background())
		assert.Equal(t, "degraded", h.Status)
		assert.Equal(t, "down", h.Store)
	})
}
