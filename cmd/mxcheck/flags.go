package main

import (
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mxcheck/internal/verify"
)

var (
	logLevel   string
	logFormat  string
	debug      bool
	workers    int64
	configFile string
	atol       float64
	rtol       float64
	candidate  string
)

func globalFlags() []cli.Flag {
	return append(loggingFlags(),
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "tile workers per launch",
			Value:       int64(runtime.GOMAXPROCS(0)),
			Destination: &workers,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: $XDG_CONFIG_HOME/mxcheck/config.yaml)",
			Destination: &configFile,
		},
		&cli.FloatFlag{
			Name:        "atol",
			Usage:       "absolute tolerance",
			Value:       verify.Default.Abs,
			Destination: &atol,
		},
		&cli.StringFlag{
			Name:        "candidate",
			Usage:       "kernel checked against the explicit oracle (tiled, explicit)",
			Value:       "tiled",
			Destination: &candidate,
		},
		&cli.FloatFlag{
			Name:        "rtol",
			Usage:       "relative tolerance",
			Value:       verify.Default.Rel,
			Destination: &rtol,
		},
	)
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// caseFlags describe one calibration case. Defaults match the matrix blocks.
type caseFlags struct {
	m, n, k                int64
	blockM, blockN, blockK int64
	lhsScale               bool
	mxFormat, normalFormat string
	seed                   uint64
}

func (f *caseFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{Name: "m", Usage: "rows of A and C", Value: 128, Destination: &f.m},
		&cli.Int64Flag{Name: "n", Usage: "columns of B and C", Value: 128, Destination: &f.n},
		&cli.Int64Flag{Name: "k", Usage: "reduction length (multiple of 32)", Value: 128, Destination: &f.k},
		&cli.Int64Flag{Name: "block-m", Value: 32, Destination: &f.blockM},
		&cli.Int64Flag{Name: "block-n", Value: 32, Destination: &f.blockN},
		&cli.Int64Flag{Name: "block-k", Value: 128, Destination: &f.blockK},
		&cli.BoolFlag{
			Name:        "lhs-scale",
			Usage:       "scale the e2m1 A operand instead of B",
			Destination: &f.lhsScale,
		},
		&cli.StringFlag{Name: "mx-format", Usage: "scaled operand format", Value: "e2m1", Destination: &f.mxFormat},
		&cli.StringFlag{
			Name:        "normal-format",
			Aliases:     []string{"format"},
			Usage:       "unscaled operand format (e4m3, e5m2)",
			Value:       "e4m3",
			Destination: &f.normalFormat,
		},
		&cli.Uint64Flag{Name: "seed", Usage: "generator seed", Destination: &f.seed},
	}
}
