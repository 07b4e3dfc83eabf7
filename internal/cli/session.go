package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func initializeCommand() *cli.Command {
	return &cli.Command{
		Name:  "initialize",
		Usage: "Build the session startup context digest",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Println(a.protocol.Initialize(ctx))
			return nil
		},
	}
}

func closeCommand() *cli.Command {
	return &cli.Command{
		Name:      "close",
		Usage:     "Write a conversation bridge for the ending session",
		ArgsUsage: "<conversation_id> <status> [momentum] [pending] [retrieval_markers]",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("usage: close <conversation_id> <status> [momentum] [pending] [retrieval_markers]")
			}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result := a.protocol.Close(ctx,
				c.Args().Get(0),
				c.Args().Get(1),
				c.Args().Get(2),
				c.Args().Get(3),
				c.Args().Get(4),
			)
			if err := printJSON(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("bridge write failed: %s", result.Error)
			}
			return nil
		},
	}
}
