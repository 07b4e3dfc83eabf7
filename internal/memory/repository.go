package memory

import (
	"context"
	"encoding/json"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/membridge-ai/membridge/internal/memerr"
	"github.com/membridge-ai/membridge/internal/store"
)

// Repository defines memory persistence operations. Every read is scoped by
// agent_id; no operation may return another agent's rows.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, agentID, id string) (*Record, error)
	SearchByVector(ctx context.Context, agentID string, vec []float32, limit int, excludeID string) ([]Hit, error)
	SearchChronological(ctx context.Context, agentID string, limit int) ([]Hit, error)
	Delete(ctx context.Context, agentID, id string) error
	Stats(ctx context.Context, agentID string) (*Stats, error)
	EmbeddingByID(ctx context.Context, agentID, id string) ([]float32, error)
	Ping(ctx context.Context) error
}

// StoreRepository implements Repository on top of the statement adapter.
type StoreRepository struct {
	client *store.Client
}

// NewStoreRepository creates a repository over the given adapter.
func NewStoreRepository(client *store.Client) *StoreRepository {
	return &StoreRepository{client: client}
}

func (r *StoreRepository) Insert(ctx context.Context, rec *Record) error {
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return memerr.Wrap(memerr.KindInvalidArgument, "encoding metadata", err)
	}

	_, err = r.client.Execute(ctx, []store.Statement{{
		SQL: `INSERT INTO memories (id, agent_id, content, embedding, metadata, created_at, updated_at)
		      VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		Args: []any{
			rec.ID, rec.AgentID, rec.Text,
			pgvector.NewVector(rec.Embedding),
			string(metaJSON), rec.CreatedAt, rec.UpdatedAt,
		},
	}})
	return err
}

func (r *StoreRepository) GetByID(ctx context.Context, agentID, id string) (*Record, error) {
	results, err := r.client.Execute(ctx, []store.Statement{{
		SQL:  `SELECT id, content, metadata, created_at, updated_at FROM memories WHERE id = $1 AND agent_id = $2`,
		Args: []any{id, agentID},
	}})
	if err != nil {
		return nil, err
	}
	rows := results[0].Rows
	if len(rows) == 0 {
		return nil, memerr.Newf(memerr.KindNotFound, "memory not found: %s", id)
	}

	row := rows[0]
	rec := &Record{AgentID: agentID}
	if rec.ID, err = store.StringField(row, 0); err != nil {
		return nil, err
	}
	if rec.Text, err = store.StringField(row, 1); err != nil {
		return nil, err
	}
	metaJSON, err := store.StringField(row, 2)
	if err != nil {
		return nil, err
	}
	if rec.Metadata, err = ParseMetadata([]byte(metaJSON)); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = store.Int64Field(row, 3); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = store.Int64Field(row, 4); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *StoreRepository) SearchByVector(ctx context.Context, agentID string, vec []float32, limit int, excludeID string) ([]Hit, error) {
	results, err := r.client.Execute(ctx, []store.Statement{{
		SQL: `SELECT id, content, metadata, created_at, embedding <=> $1 AS distance
		      FROM memories
		      WHERE agent_id = $2 AND ($3 = '' OR id <> $3)
		      ORDER BY distance
		      LIMIT $4`,
		Args: []any{pgvector.NewVector(vec), agentID, excludeID, limit},
	}})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results[0].Rows))
	for _, row := range results[0].Rows {
		hit, err := scanHit(row, true)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (r *StoreRepository) SearchChronological(ctx context.Context, agentID string, limit int) ([]Hit, error) {
	results, err := r.client.Execute(ctx, []store.Statement{{
		SQL: `SELECT id, content, metadata, created_at
		      FROM memories
		      WHERE agent_id = $1
		      ORDER BY created_at DESC
		      LIMIT $2`,
		Args: []any{agentID, limit},
	}})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results[0].Rows))
	for _, row := range results[0].Rows {
		hit, err := scanHit(row, false)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Delete removes a record. Deleting an absent id is a no-op success.
func (r *StoreRepository) Delete(ctx context.Context, agentID, id string) error {
	_, err := r.client.Execute(ctx, []store.Statement{{
		SQL:  `DELETE FROM memories WHERE id = $1 AND agent_id = $2`,
		Args: []any{id, agentID},
	}})
	return err
}

func (r *StoreRepository) Stats(ctx context.Context, agentID string) (*Stats, error) {
	results, err := r.client.Execute(ctx, []store.Statement{{
		SQL:  `SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM memories WHERE agent_id = $1`,
		Args: []any{agentID},
	}})
	if err != nil {
		return nil, err
	}
	rows := results[0].Rows
	if len(rows) == 0 {
		return nil, memerr.New(memerr.KindStoreProtocolError, "stats query returned no rows")
	}

	row := rows[0]
	stats := &Stats{AgentID: agentID, Namespace: "agent_" + agentID}
	if stats.MemoryCount, err = store.Int64Field(row, 0); err != nil {
		return nil, err
	}
	first, err := store.NullableInt64Field(row, 1)
	if err != nil {
		return nil, err
	}
	last, err := store.NullableInt64Field(row, 2)
	if err != nil {
		return nil, err
	}
	if first != nil {
		ts := FormatTimestamp(*first)
		stats.FirstMemoryAt = &ts
	}
	if last != nil {
		ts := FormatTimestamp(*last)
		stats.LastMemoryAt = &ts
	}
	return stats, nil
}

// EmbeddingByID reads a record's stored embedding back in reusable vector
// form. Returns not_found when the id is absent and feature_unavailable when
// the column cannot be interpreted as a vector.
func (r *StoreRepository) EmbeddingByID(ctx context.Context, agentID, id string) ([]float32, error) {
	results, err := r.client.Execute(ctx, []store.Statement{{
		SQL:  `SELECT embedding FROM memories WHERE id = $1 AND agent_id = $2`,
		Args: []any{id, agentID},
	}})
	if err != nil {
		return nil, err
	}
	rows := results[0].Rows
	if len(rows) == 0 {
		return nil, memerr.Newf(memerr.KindNotFound, "memory not found: %s", id)
	}
	return store.VectorField(rows[0], 0)
}

func (r *StoreRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func scanHit(row []any, withDistance bool) (Hit, error) {
	var hit Hit
	var err error
	if hit.ID, err = store.StringField(row, 0); err != nil {
		return hit, err
	}
	if hit.Text, err = store.StringField(row, 1); err != nil {
		return hit, err
	}
	metaJSON, err := store.StringField(row, 2)
	if err != nil {
		return hit, err
	}
	if hit.Metadata, err = ParseMetadata([]byte(metaJSON)); err != nil {
		return hit, err
	}
	if hit.CreatedAt, err = store.Int64Field(row, 3); err != nil {
		return hit, err
	}
	if withDistance {
		distance, err := store.Float64Field(row, 4)
		if err != nil {
			return hit, err
		}
		// Cosine distance to similarity. Deliberately unclamped; threshold
		// filtering downstream operates on the raw value.
		hit.Similarity = 1 - distance
	}
	return hit, nil
}

var _ Repository = (*StoreRepository)(nil)
