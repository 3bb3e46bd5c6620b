// Package mxgemm computes C = A·B for microscaled operands. Each logical
// element is decoded and multiplied by the E8M0 scale of its 32-wide K group
// before the float32 reduction.
//
// Two kernels implement the same contract. Tiled is the canonical engine:
// independent output tiles run on a persistent worker pool. Explicit fully
// dequantizes both operands and reduces each output element on its own, and
// serves as the cross-check oracle.
package mxgemm

import (
	"fmt"

	"github.com/samcharles93/mxcheck/internal/mx"
	"github.com/samcharles93/mxcheck/internal/tensor"
)

// Args are the tensors of one launch. A nil scale means every group of that
// operand uses mx.NeutralScale.
type Args struct {
	A      mx.Operand
	AScale *mx.Scale
	B      mx.Operand
	BScale *mx.Scale
}

// Dims returns the logical M, N and K of the launch.
func (a Args) Dims() (m, n, k int) {
	return a.A.Outer(), a.B.Outer(), a.A.LogicalK()
}

// Kernel is a synchronous launch: out is fully written when Launch returns
// nil.
type Kernel interface {
	Name() string
	Launch(cfg Config, args Args, out *tensor.Mat) error
}

var kernels = []Kernel{Tiled{}, Explicit{}}

// Kernels lists every available kernel, canonical first.
func Kernels() []Kernel {
	return append([]Kernel(nil), kernels...)
}

// KernelByName resolves a kernel by its Name.
func KernelByName(name string) (Kernel, error) {
	for _, k := range kernels {
		if k.Name() == name {
			return k, nil
		}
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

// MatMulScaled runs the tiled kernel into a freshly allocated M×N matrix.
func MatMulScaled(cfg Config, args Args) (*tensor.Mat, error) {
	if err := validateArgs(cfg, args, nil); err != nil {
		return nil, err
	}
	m, n, _ := args.Dims()
	out := tensor.NewMat(m, n)
	if err := (Tiled{}).Launch(cfg, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func validateArgs(cfg Config, args Args, out *tensor.Mat) error {
	if args.A.Side != mx.LHS {
		return mx.NewShapeError("a", "operand is not laid out as lhs")
	}
	if args.B.Side != mx.RHS {
		return mx.NewShapeError("b", "operand is not laid out as rhs")
	}
	for _, op := range []mx.Operand{args.A, args.B} {
		if !op.Format.Valid() {
			return fmt.Errorf("%w: %s operand format %s", mx.ErrEncoding, op.Side, op.Format)
		}
		if len(op.Data) != op.Rows*op.Cols {
			return mx.NewShapeError(op.Side.String(), "data length %d, want %d", len(op.Data), op.Rows*op.Cols)
		}
	}
	m, n, k := args.Dims()
	if bk := args.B.LogicalK(); bk != k {
		return mx.NewShapeError("b", "K=%d does not match a K=%d", bk, k)
	}
	if err := mx.CheckScale(args.A, args.AScale); err != nil {
		return err
	}
	if err := mx.CheckScale(args.B, args.BScale); err != nil {
		return err
	}
	if err := cfg.Validate(k); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if out.R != m || out.C != n {
		return mx.NewShapeError("out", "%dx%d, want %dx%d", out.R, out.C, m, n)
	}
	if out.Stride < out.C {
		return mx.NewShapeError("out", "stride=%d smaller than columns=%d", out.Stride, out.C)
	}
	if out.R > 0 && len(out.Data) < (out.R-1)*out.Stride+out.C {
		return mx.NewShapeError("out", "data length %d too short for %dx%d with stride %d", len(out.Data), out.R, out.C, out.Stride)
	}
	return nil
}

// resolveScale substitutes the all-neutral tensor for an absent scale.
func resolveScale(op mx.Operand, s *mx.Scale) (*mx.Scale, error) {
	if s != nil {
		return s, nil
	}
	return mx.NeutralScaleTensor(op.Outer(), op.LogicalK())
}
