package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, inner Client) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, inner, "nomic-embed-text", time.Hour), mr
}

func TestCacheEmbed(t *testing.T) {
	t.Run("miss then hit", func(t *testing.T) {
		calls := 0
		cache, _ := setupCache(t, Func(func(_ context.Context, text string) ([]float32, error) {
			calls++
			return []float32{0.1, 0.2}, nil
		}))

		vec, err := cache.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2}, vec)
		assert.Equal(t, 1, calls)

		vec, err = cache.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2}, vec)
		assert.Equal(t, 1, calls, "second call should hit the cache")
	})

	t.Run("distinct texts get distinct entries", func(t *testing.T) {
		calls := 0
		cache, _ := setupCache(t, Func(func(_ context.Context, text string) ([]float32, error) {
			calls++
			return []float32{float32(len(text))}, nil
		}))

		a, err := cache.Embed(context.Background(), "a")
		require.NoError(t, err)
		b, err := cache.Embed(context.Background(), "bb")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
		assert.Equal(t, 2, calls)
	})

	t.Run("inner error propagates", func(t *testing.T) {
		cache, _ := setupCache(t, Func(func(_ context.Context, text string) ([]float32, error) {
			return nil, errors.New("service down")
		}))

		_, err := cache.Embed(context.Background(), "hello")
		assert.Error(t, err)
	})

	t.Run("redis outage falls through", func(t *testing.T) {
		calls := 0
		cache, mr := setupCache(t, Func(func(_ context.Context, text string) ([]float32, error) {
			calls++
			return []float32{0.5}, nil
		}))
		mr.Close()

		vec, err := cache.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5}, vec)
		assert.Equal(t, 1, calls)
	})

	t.Run("corrupt cache entry re-embeds", func(t *testing.T) {
		calls := 0
		cache, mr := setupCache(t, Func(func(_ context.Context, text string) ([]float32, error) {
			calls++
			return []float32{0.7}, nil
		}))

		mr.Set(cache.key("hello"), "not json")
		vec, err := cache.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.7}, vec)
		assert.Equal(t, 1, calls)
	})
}
