// Package cli is the thin command surface over the memory engine: every
// command loads configuration once, wires the collaborators, runs a single
// operation, and prints JSON or plain text to stdout.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/membridge-ai/membridge/internal/config"
	"github.com/membridge-ai/membridge/internal/embedding"
	"github.com/membridge-ai/membridge/internal/events"
	"github.com/membridge-ai/membridge/internal/memory"
	iredis "github.com/membridge-ai/membridge/internal/redis"
	"github.com/membridge-ai/membridge/internal/retrieval"
	"github.com/membridge-ai/membridge/internal/session"
	"github.com/membridge-ai/membridge/internal/store"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "membridge",
		Usage: "Agent-scoped semantic memory with session continuity",
		Commands: []*cli.Command{
			storeCommand(),
			searchCommand(),
			getCommand(),
			deleteCommand(),
			relatedCommand(),
			statsCommand(),
			healthCommand(),
			initializeCommand(),
			closeCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// app bundles the wired collaborators for one command invocation.
type app struct {
	cfg      *config.Config
	client   *store.Client
	engine   *retrieval.Engine
	protocol *session.Protocol
	nats     *events.Client
}

// setup loads config once and wires the store adapter, embedding gateway
// (with optional Redis cache), optional event publisher, engine, and
// protocol.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setupLogger(cfg.Log)

	pool, err := store.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	client := store.NewClient(pool, store.DefaultTimeout)
	repo := memory.NewStoreRepository(client)

	gateway := embedding.NewGateway(cfg.Embedding)
	var embedder embedding.Client = gateway
	if cfg.Redis.Enabled {
		redisClient, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			client.Close()
			return nil, err
		}
		embedder = embedding.NewCache(redisClient, gateway, cfg.Embedding.Model, cfg.Redis.CacheTTL)
	}

	a := &app{cfg: cfg, client: client}

	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err := events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, lifecycle events disabled", "error", err)
		} else {
			a.nats = natsClient
			publisher = events.NewPublisher(natsClient.JetStream())
		}
	}

	a.engine = retrieval.NewEngine(repo, embedder, cfg.Agent.ID,
		retrieval.WithProber(gateway),
		retrieval.WithEvents(publisher),
	)
	a.protocol = session.New(a.engine, cfg.Agent.ID, cfg.Agent.UserName,
		session.WithEvents(publisher),
	)
	return a, nil
}

func (a *app) close() {
	if a.nats != nil {
		a.nats.Close()
	}
	a.client.Close()
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
