package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mxcheck/internal/calib"
	"github.com/samcharles93/mxcheck/internal/logger"
)

func caseCmd() *cli.Command {
	var (
		cf     caseFlags
		asJSON bool
		dump   string
	)

	return &cli.Command{
		Name:  "case",
		Usage: "Run a single case described by flags",
		Flags: append(cf.flags(),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print a JSON report instead of a table",
				Destination: &asJSON,
			},
			&cli.StringFlag{
				Name:        "dump",
				Usage:       "write the inputs and candidate output to this bundle path",
				Destination: &dump,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			c := cf.toCase()
			if err := c.Validate(); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			runner, err := newRunner(log)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			runner.KeepData = dump != ""

			res := runner.Run(ctx, c)
			if dump != "" && res.Inputs != nil {
				if err := dumpResult(dump, res); err != nil {
					return fmt.Errorf("dump %s: %w", dump, err)
				}
				log.Info("wrote bundle", "path", dump)
			}

			report := newReport([]calib.Result{res}, runner.Tolerance)
			if err := writeReport(os.Stdout, report, asJSON); err != nil {
				return err
			}
			if err := exitOnFailure(report.Summary); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func (f *caseFlags) toCase() calib.Case {
	return calib.Case{
		M:            int(f.m),
		N:            int(f.n),
		K:            int(f.k),
		BlockM:       int(f.blockM),
		BlockN:       int(f.blockN),
		BlockK:       int(f.blockK),
		RHSScale:     !f.lhsScale,
		MXFormat:     f.mxFormat,
		NormalFormat: f.normalFormat,
		Seed:         f.seed,
	}
}
