package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mxcheck/internal/calib"
	"github.com/samcharles93/mxcheck/internal/logger"
	"github.com/samcharles93/mxcheck/internal/mxgemm"
	"github.com/samcharles93/mxcheck/internal/verify"
)

// fileConfig is loaded once in setup and read by subcommands.
var fileConfig Config

func main() {
	app := &cli.Command{
		Name:   "mxcheck",
		Usage:  "Cross-check mixed MXFP8/MXFP4 scaled matmul kernels",
		Flags:  globalFlags(),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			matrixCmd(),
			caseCmd(),
			replayCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and installs the logger into the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return ctx, err
	}
	fileConfig = cfg
	applyGlobalConfig(cmd, cfg)

	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	log, err := logger.ForFormat(os.Stderr, logFormat, level, isTerminal(os.Stderr))
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}

func tolerance() verify.Tolerance {
	return verify.Tolerance{Abs: atol, Rel: rtol}
}

// newRunner builds a Runner from the global flags.
func newRunner(log logger.Logger) (*calib.Runner, error) {
	k, err := mxgemm.KernelByName(candidate)
	if err != nil {
		return nil, err
	}
	r := calib.NewRunner(log, int(workers))
	r.Tolerance = tolerance()
	r.Candidate = k
	return r, nil
}
