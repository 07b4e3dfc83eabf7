package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/membridge-ai/membridge/internal/memerr"
)

// DefaultTimeout bounds every statement batch.
const DefaultTimeout = 30 * time.Second

// Statement is one parameterized query.
type Statement struct {
	SQL  string
	Args []any
}

// Result is the tabular row set produced by a single statement.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Client executes ordered statement batches against Postgres. Each statement
// runs atomically, but the batch as a whole is not transactional; callers must
// not assume multi-statement atomicity.
type Client struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewClient wraps a pool. A zero timeout falls back to DefaultTimeout.
func NewClient(pool *pgxpool.Pool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{pool: pool, timeout: timeout}
}

// Execute runs the statements in order and returns one Result per statement.
// It stops at the first failing statement and returns a typed error:
// store_unavailable for transport or timeout failures, store_query_error for
// errors the store itself reported.
func (c *Client) Execute(ctx context.Context, stmts []Statement) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, st := range stmts {
		batch.Queue(st.SQL, st.Args...)
	}

	br := c.pool.SendBatch(ctx, batch)
	defer br.Close()

	results := make([]Result, 0, len(stmts))
	for i := range stmts {
		res, err := readResult(br)
		if err != nil {
			return nil, classify(i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Ping issues a no-op statement, used by health probes.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, []Statement{{SQL: "SELECT 1"}})
	return err
}

// Close releases the underlying pool.
func (c *Client) Close() {
	c.pool.Close()
}

func readResult(br pgx.BatchResults) (Result, error) {
	rows, err := br.Query()
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return Result{}, err
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return Result{Columns: cols, Rows: out}, nil
}

func classify(idx int, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return memerr.Wrap(memerr.KindStoreQueryError,
			fmt.Sprintf("statement %d: %s", idx, pgErr.Message), err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return memerr.Wrap(memerr.KindStoreUnavailable,
			fmt.Sprintf("statement %d: timed out", idx), err)
	}
	return memerr.Wrap(memerr.KindStoreUnavailable,
		fmt.Sprintf("statement %d: store unreachable", idx), err)
}

// StringField extracts a string column from a generic row.
func StringField(row []any, idx int) (string, error) {
	v, err := field(row, idx)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", memerr.Newf(memerr.KindStoreProtocolError, "column %d: expected string, got %T", idx, v)
	}
	return s, nil
}

// Int64Field extracts an integer column from a generic row.
func Int64Field(row []any, idx int) (int64, error) {
	v, err := field(row, idx)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, memerr.Newf(memerr.KindStoreProtocolError, "column %d: expected integer, got %T", idx, v)
	}
}

// NullableInt64Field extracts an integer column that may be SQL NULL.
func NullableInt64Field(row []any, idx int) (*int64, error) {
	v, err := field(row, idx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	n, err := Int64Field(row, idx)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Float64Field extracts a floating-point column from a generic row.
func Float64Field(row []any, idx int) (float64, error) {
	v, err := field(row, idx)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	default:
		return 0, memerr.Newf(memerr.KindStoreProtocolError, "column %d: expected float, got %T", idx, v)
	}
}

// VectorField extracts an embedding column in a directly reusable vector
// form. A value that cannot be turned back into a float vector yields
// feature_unavailable: callers must fail closed rather than degrade to a
// text-based approximation.
func VectorField(row []any, idx int) ([]float32, error) {
	v, err := field(row, idx)
	if err != nil {
		return nil, err
	}
	switch vec := v.(type) {
	case pgvector.Vector:
		return vec.Slice(), nil
	case []float32:
		return vec, nil
	case string:
		return ParseVector(vec)
	default:
		return nil, memerr.Newf(memerr.KindFeatureUnavailable,
			"embedding column not readable as a vector (got %T)", v)
	}
}

// ParseVector parses a pgvector text literal like "[0.1,0.2]".
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, memerr.Newf(memerr.KindFeatureUnavailable, "malformed vector literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindFeatureUnavailable, "malformed vector literal", err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func field(row []any, idx int) (any, error) {
	if idx >= len(row) {
		return nil, memerr.Newf(memerr.KindStoreProtocolError, "row has %d columns, wanted index %d", len(row), idx)
	}
	return row[idx], nil
}
