package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Client with a Redis lookaside cache keyed by model and text.
// Cache failures are logged and fall through to the inner client; the cache
// never turns a good embedding into an error.
type Cache struct {
	client *redis.Client
	inner  Client
	model  string
	ttl    time.Duration
}

// NewCache builds a Cache around inner.
func NewCache(client *redis.Client, inner Client, model string, ttl time.Duration) *Cache {
	return &Cache{client: client, inner: inner, model: model, ttl: ttl}
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return fmt.Sprintf("embed:%s:%s", c.model, hex.EncodeToString(sum[:]))
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	} else if err != redis.Nil {
		slog.Warn("embedding cache read failed", "error", err)
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

var _ Client = (*Cache)(nil)
