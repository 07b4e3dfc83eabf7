package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membridge-ai/membridge/internal/config"
	"github.com/membridge-ai/membridge/internal/memerr"
)

func newTestGateway(url string, dimensions int) *Gateway {
	return NewGateway(config.EmbeddingConfig{
		URL:        url,
		Model:      "nomic-embed-text",
		Dimensions: dimensions,
		Timeout:    5 * time.Second,
	})
}

func TestGatewayEmbed(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/embed", r.URL.Path)

			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req["model"])
			assert.Equal(t, "hello", req["input"])

			json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{0.1, 0.2, 0.3}},
			})
		}))
		defer srv.Close()

		vec, err := newTestGateway(srv.URL, 3).Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestGateway(srv.URL, 3).Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		_, err := newTestGateway(srv.URL, 3).Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
	})

	t.Run("empty embeddings", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
		}))
		defer srv.Close()

		_, err := newTestGateway(srv.URL, 3).Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{0.1, 0.2}},
			})
		}))
		defer srv.Close()

		_, err := newTestGateway(srv.URL, 768).Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
		assert.Contains(t, err.Error(), "dimension mismatch")
	})

	t.Run("unreachable service", func(t *testing.T) {
		_, err := newTestGateway("http://127.0.0.1:1", 3).Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
	})
}

func TestGatewayHealth(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/version", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"version": "0.5.0"})
		}))
		defer srv.Close()

		assert.NoError(t, newTestGateway(srv.URL, 3).Health(context.Background()))
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := newTestGateway(srv.URL, 3).Health(context.Background())
		require.Error(t, err)
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
	})

	t.Run("down", func(t *testing.T) {
		err := newTestGateway("http://127.0.0.1:1", 3).Health(context.Background())
		require.Error(t, err)
		assert.Equal(t, memerr.KindEmbeddingUnavailable, memerr.KindOf(err))
	})
}

func TestDeterministic(t *testing.T) {
	client := Deterministic(8)
	a, err := client.Embed(context.Background(), "same text")
	require.NoError(t, err)
	b, err := client.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}
