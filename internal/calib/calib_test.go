package calib

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/samcharles93/mxcheck/internal/mx"
	"github.com/samcharles93/mxcheck/internal/mxgemm"
	"github.com/samcharles93/mxcheck/internal/tensor"
	"github.com/samcharles93/mxcheck/internal/verify"
)

func TestMatrix(t *testing.T) {
	t.Parallel()

	cases := Matrix()
	if len(cases) != 12 {
		t.Fatalf("expected 12 cases, got %d", len(cases))
	}
	seen := map[string]bool{}
	for _, c := range cases {
		if seen[c.Name()] {
			t.Fatalf("duplicate case name %s", c.Name())
		}
		seen[c.Name()] = true
		if err := c.Validate(); err != nil {
			t.Fatalf("%s: %v", c.Name(), err)
		}
	}
	if !seen["m128_n128_k128_e4m3xe2m1_rhs_scale"] || !seen["m1024_n512_k256_e2m1xe5m2_lhs_scale"] {
		t.Fatalf("missing expected case names: %v", seen)
	}
}

func TestBuildInputsPolicy(t *testing.T) {
	t.Parallel()

	c := Case{M: 64, N: 96, K: 256, BlockM: 32, BlockN: 32, BlockK: 128, RHSScale: true, MXFormat: "e2m1", NormalFormat: "e5m2", Seed: 3}
	in, err := BuildInputs(c)
	if err != nil {
		t.Fatalf("BuildInputs: %v", err)
	}
	args := in.Args
	if args.A.Format != mx.E5M2 || args.B.Format != mx.E2M1 {
		t.Fatalf("unexpected formats a=%s b=%s", args.A.Format, args.B.Format)
	}
	if args.AScale != nil || args.BScale == nil {
		t.Fatal("expected only the b scale")
	}
	if in.ScaleStride != 256/32 {
		t.Fatalf("scale stride %d", in.ScaleStride)
	}
	if args.B.Rows != 128 || args.B.Cols != 96 || args.A.Rows != 64 || args.A.Cols != 256 {
		t.Fatalf("unexpected physical shapes a=%dx%d b=%dx%d", args.A.Rows, args.A.Cols, args.B.Rows, args.B.Cols)
	}
	for i, b := range args.A.Data {
		if !mx.IsFinite(mx.E5M2, b) {
			t.Fatalf("a[%d] not finite: %#x", i, b)
		}
	}

	again, err := BuildInputs(c)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again.Args.A.Data, args.A.Data) || !bytes.Equal(again.Args.BScale.Data, args.BScale.Data) {
		t.Fatal("inputs are not reproducible for the same seed")
	}

	c.RHSScale = false
	swapped, err := BuildInputs(c)
	if err != nil {
		t.Fatal(err)
	}
	if swapped.Args.A.Format != mx.E2M1 || swapped.Args.AScale == nil || swapped.Args.BScale != nil {
		t.Fatal("lhs scale case should scale the e2m1 a operand only")
	}
}

func TestBuildInputsRejectsBadCases(t *testing.T) {
	t.Parallel()

	bad := []Case{
		{M: 32, N: 32, K: 100, BlockM: 32, BlockN: 32, BlockK: 32, MXFormat: "e2m1", NormalFormat: "e4m3"},
		{M: 32, N: 32, K: 256, BlockM: 32, BlockN: 32, BlockK: 96, MXFormat: "e2m1", NormalFormat: "e4m3"},
		{M: 0, N: 32, K: 128, BlockM: 32, BlockN: 32, BlockK: 128, MXFormat: "e2m1", NormalFormat: "e4m3"},
	}
	for _, c := range bad {
		if _, err := BuildInputs(c); !errors.Is(err, mx.ErrShape) {
			t.Fatalf("%+v: expected shape error, got %v", c, err)
		}
	}

	enc := Case{M: 32, N: 32, K: 128, BlockM: 32, BlockN: 32, BlockK: 128, MXFormat: "e2m1", NormalFormat: "e3m4"}
	if _, err := BuildInputs(enc); !errors.Is(err, mx.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

func TestCalibrationMatrixAgrees(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 4)
	for _, c := range Matrix() {
		if testing.Short() && c.M > 128 {
			continue
		}
		res := r.Run(context.Background(), c)
		if !res.Passed() {
			t.Fatalf("%s: status %s: %v", res.Name, res.Status, res.Err)
		}
		if len(res.Kernels) != 2 || res.Kernels[0].Name != "tiled" || res.Kernels[1].Name != "explicit" {
			t.Fatalf("%s: unexpected kernel timings %+v", res.Name, res.Kernels)
		}
		if res.Grid != (c.M/32)*(c.N/32) {
			t.Fatalf("%s: grid %d", res.Name, res.Grid)
		}
		if res.ID == "" {
			t.Fatalf("%s: missing id", res.Name)
		}
	}
}

type skewedKernel struct{}

func (skewedKernel) Name() string { return "skewed" }

func (skewedKernel) Launch(cfg mxgemm.Config, args mxgemm.Args, out *tensor.Mat) error {
	if err := (mxgemm.Tiled{}).Launch(cfg, args, out); err != nil {
		return err
	}
	out.Set(3, 4, float32(math.NaN()))
	return nil
}

func TestRunDetectsMismatch(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 2)
	r.Candidate = skewedKernel{}
	c := Matrix()[len(Matrix())-1]
	res := r.Run(context.Background(), c)
	if res.Status != StatusMismatch {
		t.Fatalf("expected mismatch, got %s (%v)", res.Status, res.Err)
	}
	var me *verify.MismatchError
	if !errors.As(res.Err, &me) || me.Count != 1 || me.WorstIdx != 3*c.N+4 {
		t.Fatalf("unexpected mismatch detail: %v", res.Err)
	}
}

func TestRunReportsShapeError(t *testing.T) {
	t.Parallel()

	c := Matrix()[0]
	c.BlockK = 96
	res := NewRunner(nil, 1).Run(context.Background(), c)
	if res.Status != StatusError || !errors.Is(res.Err, mx.ErrShape) {
		t.Fatalf("expected shape error, got %s %v", res.Status, res.Err)
	}
}

func TestRunAllStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewRunner(nil, 1).RunAll(ctx, Matrix())
	if len(results) != 0 {
		t.Fatalf("expected no results after cancel, got %d", len(results))
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize([]Result{{Status: StatusPassed}, {Status: StatusMismatch}, {Status: StatusError}, {Status: StatusPassed}})
	if s.Total != 4 || s.Passed != 2 || s.Mismatch != 1 || s.Errors != 1 || s.OK() {
		t.Fatalf("unexpected summary %+v", s)
	}
	if !Summarize([]Result{{Status: StatusPassed}}).OK() {
		t.Fatal("expected OK")
	}
}

func TestKeepData(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 1)
	r.KeepData = true
	res := r.Run(context.Background(), Matrix()[len(Matrix())-1])
	if res.Inputs == nil || res.Output == nil {
		t.Fatal("expected inputs and output to be retained")
	}
	if res.Output.R != 128 || res.Output.C != 128 {
		t.Fatalf("unexpected output shape %dx%d", res.Output.R, res.Output.C)
	}
}
