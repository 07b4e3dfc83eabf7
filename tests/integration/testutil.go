//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/membridge-ai/membridge/internal/config"
	"github.com/membridge-ai/membridge/internal/embedding"
	"github.com/membridge-ai/membridge/internal/memory"
	"github.com/membridge-ai/membridge/internal/retrieval"
	"github.com/membridge-ai/membridge/internal/session"
	"github.com/membridge-ai/membridge/internal/store"
)

const embedDims = 768

type TestEnv struct {
	Client  *store.Client
	Repo    *memory.StoreRepository
	Gateway *embedding.Gateway
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "membridge_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	dbCfg := config.DBConfig{
		Host:     pgHost,
		Port:     pgPort.Int(),
		User:     "test",
		Password: "test",
		Name:     "membridge_test",
		SSLMode:  "disable",
		MaxConns: 5,
	}

	if err := store.RunMigrations(dbCfg.DSN(), getMigrationsPath()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := store.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}

	embedSrv := httptest.NewServer(http.HandlerFunc(serveEmbedding))

	testEnv = &TestEnv{
		Client: store.NewClient(pool, store.DefaultTimeout),
		Gateway: embedding.NewGateway(config.EmbeddingConfig{
			URL:        embedSrv.URL,
			Model:      "nomic-embed-text",
			Dimensions: embedDims,
			Timeout:    5 * time.Second,
		}),
	}
	testEnv.Repo = memory.NewStoreRepository(testEnv.Client)
	return testEnv
}

// NewEngine creates an engine for a fresh agent namespace, so tests stay
// isolated without truncating tables.
func (env *TestEnv) NewEngine(agentID string) *retrieval.Engine {
	return retrieval.NewEngine(env.Repo, env.Gateway, agentID, retrieval.WithProber(env.Gateway))
}

func (env *TestEnv) NewProtocol(agentID, userName string) *session.Protocol {
	return session.New(env.NewEngine(agentID), agentID, userName)
}

func getMigrationsPath() string {
	paths := []string{
		"../../internal/store/migrations",
		"../../../internal/store/migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// serveEmbedding answers /api/embed with keyword-anchored vectors: texts that
// share a category keyword land on the same basis vector, everything else is
// hashed. Same text always gets the same vector.
func serveEmbedding(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/version":
		json.NewEncoder(w).Encode(map[string]string{"version": "test"})
	case "/api/embed":
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{embedText(req.Input)},
		})
	default:
		http.NotFound(w, r)
	}
}

var embedKeywords = []string{
	"CONVERSATION-BRIDGE",
	"PREFERENCE",
	"PROJECT",
	"CONSCIOUSNESS",
}

func embedText(text string) []float32 {
	vec := make([]float32, embedDims)
	for i, kw := range embedKeywords {
		if strings.Contains(text, kw) {
			vec[i] = 1
			return vec
		}
	}
	h := fnv.New32a()
	fmt.Fprint(h, text)
	sum := h.Sum32()
	for i := 0; i < 8; i++ {
		vec[len(embedKeywords)+int(sum>>(i*4))%32] += 1
	}
	return vec
}
