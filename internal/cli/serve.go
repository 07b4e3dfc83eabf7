package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/membridge-ai/membridge/internal/api"
	"github.com/membridge-ai/membridge/internal/retrieval"
	"github.com/membridge-ai/membridge/internal/server"
	"github.com/membridge-ai/membridge/internal/session"
	"github.com/membridge-ai/membridge/internal/store"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.DB.MigrationsPath != "" {
				if err := store.RunMigrations(a.cfg.DB.DSN(), a.cfg.DB.MigrationsPath); err != nil {
					return err
				}
			}

			memHandler := retrieval.NewHandler(a.engine)
			sessHandler := session.NewHandler(a.protocol)

			router := api.NewRouter(api.RouterConfig{
				CORSAllowedOrigins: a.cfg.Server.CORSOrigins,
			}, api.HandlerSet{
				StoreMemory:       memHandler.Store,
				SearchMemories:    memHandler.Search,
				GetMemory:         memHandler.Get,
				DeleteMemory:      memHandler.Delete,
				RelatedMemory:     memHandler.Related,
				Stats:             memHandler.Stats,
				InitializeSession: sessHandler.Initialize,
				CloseSession:      sessHandler.Close,
				Health:            memHandler.Health,
			})

			slog.Info("serving memory API",
				"host", a.cfg.Server.Host,
				"port", a.cfg.Server.Port,
				"agent_id", a.cfg.Agent.ID,
			)
			return server.New(a.cfg.Server, router).Start()
		},
	}
}
