package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/mxcheck/internal/bundle"
	"github.com/samcharles93/mxcheck/internal/calib"
	"github.com/samcharles93/mxcheck/internal/logger"
	"github.com/samcharles93/mxcheck/internal/verify"
	"github.com/samcharles93/mxcheck/internal/version"
)

// Report is the --json output of matrix and case.
type Report struct {
	Version   string           `json:"version"`
	Tolerance verify.Tolerance `json:"tolerance"`
	Summary   calib.Summary    `json:"summary"`
	Results   []calib.Result   `json:"results"`
}

func newReport(results []calib.Result, tol verify.Tolerance) Report {
	return Report{
		Version:   version.String(),
		Tolerance: tol,
		Summary:   calib.Summarize(results),
		Results:   results,
	}
}

func writeJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeTable(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CASE\tSTATUS\tGRID\tMAX ABS\tMAX REL\tTILED\tEXPLICIT")
	for _, res := range r.Results {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%.3g\t%.3g\t%s\t%s\n",
			res.Name, res.Status, res.Grid, res.Stats.MaxAbs, res.Stats.MaxRel,
			elapsed(res, "tiled"), elapsed(res, "explicit"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := r.Summary
	_, err := fmt.Fprintf(w, "\n%d passed, %d mismatched, %d errored of %d (atol=%g rtol=%g)\n",
		s.Passed, s.Mismatch, s.Errors, s.Total, r.Tolerance.Abs, r.Tolerance.Rel)
	if err != nil {
		return err
	}
	for _, res := range r.Results {
		if res.Error != "" {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", res.Name, res.Error)
		}
	}
	return nil
}

func elapsed(res calib.Result, kernel string) string {
	for _, k := range res.Kernels {
		if k.Name == kernel {
			return k.Elapsed.Round(time.Microsecond).String()
		}
	}
	return "-"
}

func writeReport(w io.Writer, r Report, asJSON bool) error {
	if asJSON {
		return writeJSON(w, r)
	}
	return writeTable(w, r)
}

// dumpFailures writes a bundle for every result that did not pass and still
// carries its inputs.
func dumpFailures(log logger.Logger, dir string, results []calib.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	for _, res := range results {
		if res.Passed() || res.Inputs == nil {
			continue
		}
		path := filepath.Join(dir, bundleName(res))
		if err := dumpResult(path, res); err != nil {
			return err
		}
		log.Info("wrote bundle", "case", res.Name, "path", path)
	}
	return nil
}

func dumpResult(path string, res calib.Result) error {
	b, err := bundle.FromResult(res)
	if err != nil {
		return err
	}
	return bundle.Write(path, b)
}

func bundleName(res calib.Result) string {
	name := res.Name
	if res.Case.Seed != 0 {
		name = fmt.Sprintf("%s_seed%d", name, res.Case.Seed)
	}
	return strings.ReplaceAll(name, string(filepath.Separator), "_") + ".safetensors"
}

func exitOnFailure(s calib.Summary) error {
	if s.OK() {
		return nil
	}
	return fmt.Errorf("%d of %d cases failed", s.Total-s.Passed, s.Total)
}
