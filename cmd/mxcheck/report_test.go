package main

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/mxcheck/internal/bundle"
	"github.com/samcharles93/mxcheck/internal/calib"
	"github.com/samcharles93/mxcheck/internal/logger"
	"github.com/samcharles93/mxcheck/internal/verify"
)

func sampleResults() []calib.Result {
	return []calib.Result{
		{Name: "m128_n128_k128_e4m3xe2m1_rhs_scale", Status: calib.StatusPassed, Grid: 16},
		{
			Name:   "m128_n128_k128_e5m2xe2m1_rhs_scale",
			Status: calib.StatusMismatch,
			Grid:   16,
			Stats:  verify.Stats{MaxAbs: math.Inf(1), MaxRel: math.Inf(1)},
			Error:  "1/16384 elements outside tolerance",
		},
	}
}

func TestWriteTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := writeTable(&buf, newReport(sampleResults(), verify.Default)); err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"CASE", "e4m3xe2m1_rhs_scale", "mismatch", "1 passed, 1 mismatched, 0 errored of 2", "elements outside tolerance"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSONReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := writeJSON(&buf, newReport(sampleResults(), verify.Default)); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	var decoded struct {
		Summary calib.Summary `json:"summary"`
		Results []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if decoded.Summary.Total != 2 || decoded.Summary.Mismatch != 1 || len(decoded.Results) != 2 {
		t.Fatalf("unexpected report %+v", decoded)
	}
}

func TestExitOnFailure(t *testing.T) {
	t.Parallel()

	if err := exitOnFailure(calib.Summarize(sampleResults())); err == nil {
		t.Fatal("expected failure")
	}
	if err := exitOnFailure(calib.Summarize(sampleResults()[:1])); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSelectCases(t *testing.T) {
	t.Parallel()

	quick := selectCases(calib.Matrix(), true, 7)
	if len(quick) != 8 {
		t.Fatalf("expected 8 quick cases, got %d", len(quick))
	}
	for _, c := range quick {
		if c.M > 128 || c.Seed != 7 {
			t.Fatalf("unexpected case %+v", c)
		}
	}
	if all := selectCases(calib.Matrix(), false, 0); len(all) != 12 {
		t.Fatalf("expected 12 cases, got %d", len(all))
	}
}

func TestDumpFailures(t *testing.T) {
	t.Parallel()

	r := calib.NewRunner(nil, 1)
	r.KeepData = true
	c := calib.Case{M: 32, N: 64, K: 128, BlockM: 32, BlockN: 32, BlockK: 128, RHSScale: true, MXFormat: "e2m1", NormalFormat: "e4m3", Seed: 5}
	res := r.Run(context.Background(), c)
	if !res.Passed() {
		t.Fatalf("run: %v", res.Err)
	}
	passed := res
	res.Status = calib.StatusMismatch

	dir := t.TempDir()
	if err := dumpFailures(logger.Discard(), dir, []calib.Result{passed, res}); err != nil {
		t.Fatalf("dumpFailures: %v", err)
	}
	path := filepath.Join(dir, bundleName(res))
	if !strings.HasSuffix(path, "_seed5.safetensors") {
		t.Fatalf("unexpected bundle name %s", path)
	}
	b, err := bundle.Read(path)
	if err != nil {
		t.Fatalf("read dumped bundle: %v", err)
	}
	if b.Case != c {
		t.Fatalf("case = %+v, want %+v", b.Case, c)
	}
	if _, err := bundle.Replay(b, 1, verify.Default); err != nil {
		t.Fatalf("replay: %v", err)
	}
}

func TestCaseFlagsToCase(t *testing.T) {
	t.Parallel()

	f := caseFlags{m: 64, n: 32, k: 256, blockM: 32, blockN: 32, blockK: 128, lhsScale: true, mxFormat: "e2m1", normalFormat: "e5m2", seed: 3}
	c := f.toCase()
	if c.RHSScale || c.M != 64 || c.K != 256 || c.NormalFormat != "e5m2" || c.Seed != 3 {
		t.Fatalf("unexpected case %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
