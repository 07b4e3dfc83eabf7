package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/membridge-ai/membridge/internal/memory"
	"github.com/membridge-ai/membridge/internal/retrieval"
)

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:      "store",
		Usage:     "Store a memory",
		ArgsUsage: "<text> [metadata_json]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "category",
				Usage: "format the text as a category memory (preference, technical, decision, ...)",
			},
			&cli.StringFlag{
				Name:  "topic",
				Usage: "topic line for category formatting",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("usage: store <text> [metadata_json]")
			}
			text := c.Args().Get(0)

			var meta memory.Metadata
			if raw := c.Args().Get(1); raw != "" {
				var err error
				meta, err = memory.ParseMetadata([]byte(raw))
				if err != nil {
					return fmt.Errorf("invalid metadata: %w", err)
				}
			}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if category := c.String("category"); category != "" {
				extra := meta.Extra
				text, meta = memory.FormatForStorage(text, memory.Category(category), c.String("topic"), memory.FormatContext{
					UserName: a.cfg.Agent.UserName,
				})
				meta.Extra = extra
			}

			receipt, err := a.engine.Store(ctx, text, meta)
			if err != nil {
				return err
			}
			return printJSON(receipt)
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search memories by similarity or recency",
		ArgsUsage: "[query] [limit] [mode]",
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.Args().Get(0)

			limit := 0
			if s := c.Args().Get(1); s != "" {
				v, err := strconv.Atoi(s)
				if err != nil {
					return fmt.Errorf("invalid limit %q", s)
				}
				limit = v
			}

			mode := retrieval.ModeVector
			if s := c.Args().Get(2); s != "" {
				mode = retrieval.Mode(s)
			}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.engine.Search(ctx, query, limit, mode)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a memory by id",
		ArgsUsage: "<memory_id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("usage: get <memory_id>")
			}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.engine.Get(ctx, c.Args().Get(0))
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a memory by id",
		ArgsUsage: "<memory_id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("usage: delete <memory_id>")
			}
			memoryID := c.Args().Get(0)

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.Delete(ctx, memoryID); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", memoryID)
			return nil
		},
	}
}

func relatedCommand() *cli.Command {
	return &cli.Command{
		Name:      "related",
		Usage:     "Find memories related to an existing one",
		ArgsUsage: "<memory_id> [min_similarity]",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("usage: related <memory_id> [min_similarity]")
			}

			minSimilarity := 0.0
			if s := c.Args().Get(1); s != "" {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return fmt.Errorf("invalid min_similarity %q", s)
				}
				minSimilarity = v
			}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.engine.Related(ctx, c.Args().Get(0), minSimilarity)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show memory statistics for the configured agent",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.engine.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Probe the embedding service and the store",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			return printJSON(a.engine.HealthCheck(ctx))
		},
	}
}
