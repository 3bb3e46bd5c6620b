package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mxcheck/internal/bundle"
	"github.com/samcharles93/mxcheck/internal/logger"
	"github.com/samcharles93/mxcheck/internal/verify"
)

func replayCmd() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Relaunch the tiled kernel on a saved bundle and compare with its stored output",
		ArgsUsage: "<bundle.safetensors>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("replay requires a bundle path", 2)
			}

			b, err := bundle.Read(path)
			if err != nil {
				return err
			}
			log.Info("loaded bundle", "case", b.Case.Name(), "path", path)

			stats, err := bundle.Replay(b, int(workers), tolerance())
			if errors.Is(err, verify.ErrNumericMismatch) {
				return cli.Exit(fmt.Sprintf("%s: %v", b.Case.Name(), err), 1)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (max abs %.3g, max rel %.3g)\n", b.Case.Name(), stats.MaxAbs, stats.MaxRel)
			return nil
		},
	}
}
