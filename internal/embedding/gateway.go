package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/membridge-ai/membridge/internal/config"
	"github.com/membridge-ai/membridge/internal/memerr"
)

// Client converts text into a fixed-dimension float vector.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const healthTimeout = 5 * time.Second

// Gateway calls an Ollama-compatible embedding service over HTTP. It is
// stateless and applies no retry policy; retries belong to the caller.
type Gateway struct {
	baseURL    string
	model      string
	dimensions int
	http       *http.Client
}

// NewGateway builds a Gateway from config. The HTTP client timeout bounds
// every embed call.
func NewGateway(cfg config.EmbeddingConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		http:       &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the vector for text. Any transport failure, non-2xx status,
// malformed body, or dimension mismatch surfaces as embedding_unavailable.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: g.model, Input: text})
	if err != nil {
		return nil, memerr.Wrap(memerr.KindEmbeddingUnavailable, "encoding embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, memerr.Wrap(memerr.KindEmbeddingUnavailable, "building embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindEmbeddingUnavailable, "calling embedding service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, memerr.Newf(memerr.KindEmbeddingUnavailable,
			"embedding service returned status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, memerr.Wrap(memerr.KindEmbeddingUnavailable, "decoding embed response", err)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, memerr.New(memerr.KindEmbeddingUnavailable, "embedding service returned no vectors")
	}

	vec := parsed.Embeddings[0]
	if g.dimensions > 0 && len(vec) != g.dimensions {
		return nil, memerr.Newf(memerr.KindEmbeddingUnavailable,
			"embedding dimension mismatch: got %d, want %d", len(vec), g.dimensions)
	}
	return vec, nil
}

// Health probes the embedding service's version endpoint with a short
// timeout. A nil return means the service is up.
func (g *Gateway) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/version", nil)
	if err != nil {
		return memerr.Wrap(memerr.KindEmbeddingUnavailable, "building health request", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return memerr.Wrap(memerr.KindEmbeddingUnavailable, "embedding service unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return memerr.Newf(memerr.KindEmbeddingUnavailable,
			"embedding service health returned status %d", resp.StatusCode)
	}
	return nil
}

// Model returns the configured model name.
func (g *Gateway) Model() string {
	return g.model
}

var _ Client = (*Gateway)(nil)

// Func adapts a plain function to the Client interface, used by tests.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Deterministic returns a test Client whose output depends only on the input
// text: a crude hash spread over dim dimensions. Same text, same vector.
func Deterministic(dim int) Client {
	return Func(func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dim)
		for i, r := range text {
			vec[i%dim] += float32(r%13) / 13
		}
		return vec, nil
	})
}
