// Package calib builds the calibration inputs for mixed MXFP8/MXFP4 matmul
// and cross-checks the tiled kernel against the explicit one.
package calib

import (
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/mxcheck/internal/mx"
	"github.com/samcharles93/mxcheck/internal/mxgemm"
)

// Case is one configuration of the calibration matrix. When RHSScale is set
// A uses NormalFormat without a scale and B uses MXFormat with one; otherwise
// the roles swap.
type Case struct {
	M            int    `json:"m" yaml:"m"`
	N            int    `json:"n" yaml:"n"`
	K            int    `json:"k" yaml:"k"`
	BlockM       int    `json:"block_m" yaml:"block_m"`
	BlockN       int    `json:"block_n" yaml:"block_n"`
	BlockK       int    `json:"block_k" yaml:"block_k"`
	RHSScale     bool   `json:"rhs_scale" yaml:"rhs_scale"`
	MXFormat     string `json:"mx_format" yaml:"mx_format"`
	NormalFormat string `json:"normal_format" yaml:"normal_format"`
	Seed         uint64 `json:"seed" yaml:"seed"`
}

// MatrixDims lists the (M, N, K) triples of the calibration matrix.
var (
	MatrixDims = [][3]int{{1024, 512, 256}, {128, 256, 256}, {128, 128, 128}}

	matrixNormalFormats = []string{"e4m3", "e5m2"}
)

// Matrix returns every calibration case: each dims triple, each normal format
// and both scale sides.
func Matrix() []Case {
	cases := make([]Case, 0, len(MatrixDims)*len(matrixNormalFormats)*2)
	for _, d := range MatrixDims {
		for _, rhs := range []bool{true, false} {
			for _, normal := range matrixNormalFormats {
				cases = append(cases, Case{
					M: d[0], N: d[1], K: d[2],
					BlockM: 32, BlockN: 32, BlockK: 128,
					RHSScale:     rhs,
					MXFormat:     "e2m1",
					NormalFormat: normal,
				})
			}
		}
	}
	return cases
}

// Name is a stable identifier used in logs and reports.
func (c Case) Name() string {
	side := "lhs"
	if c.RHSScale {
		side = "rhs"
	}
	fa, fb := c.formatNames()
	return fmt.Sprintf("m%d_n%d_k%d_%sx%s_%s_scale", c.M, c.N, c.K, fa, fb, side)
}

func (c Case) formatNames() (string, string) {
	if c.RHSScale {
		return c.NormalFormat, c.MXFormat
	}
	return c.MXFormat, c.NormalFormat
}

// Formats resolves the element formats of A and B.
func (c Case) Formats() (mx.Format, mx.Format, error) {
	na, nb := c.formatNames()
	fa, err := mx.ParseFormat(na)
	if err != nil {
		return 0, 0, fmt.Errorf("a: %w", err)
	}
	fb, err := mx.ParseFormat(nb)
	if err != nil {
		return 0, 0, fmt.Errorf("b: %w", err)
	}
	return fa, fb, nil
}

// Config is the launch configuration of the case.
func (c Case) Config(workers int) mxgemm.Config {
	return mxgemm.Config{
		BlockM:  c.BlockM,
		BlockN:  c.BlockN,
		BlockK:  c.BlockK,
		Workers: workers,
	}
}

// Validate checks dimensions before any allocation.
func (c Case) Validate() error {
	if c.M <= 0 || c.N <= 0 || c.K <= 0 {
		return mx.NewShapeError("case", "dimensions must be positive, got m=%d n=%d k=%d", c.M, c.N, c.K)
	}
	if c.K%mx.GroupSize != 0 {
		return mx.NewShapeError("case", "K=%d is not a multiple of %d", c.K, mx.GroupSize)
	}
	if _, _, err := c.Formats(); err != nil {
		return err
	}
	return c.Config(1).Validate(c.K)
}

// Inputs are the generated tensors of a case. Exactly one of AScale and
// BScale is set.
type Inputs struct {
	Args        mxgemm.Args
	ScaleStride int
}

// BuildInputs draws A, B and both scale tensors from a PCG stream seeded by
// c.Seed, drops the scale of the unscaled side and sanitizes both operands.
func BuildInputs(c Case) (*Inputs, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	fa, fb, err := c.Formats()
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))

	a, err := mx.GenerateOperand(rng, mx.LHS, fa, c.M, c.K, mx.DefaultOperandRange)
	if err != nil {
		return nil, err
	}
	b, err := mx.GenerateOperand(rng, mx.RHS, fb, c.N, c.K, mx.DefaultOperandRange)
	if err != nil {
		return nil, err
	}
	aScale, err := mx.GenerateScale(rng, c.M, c.K, mx.DefaultScaleRange)
	if err != nil {
		return nil, err
	}
	bScale, err := mx.GenerateScale(rng, c.N, c.K, mx.DefaultScaleRange)
	if err != nil {
		return nil, err
	}

	in := &Inputs{}
	if c.RHSScale {
		aScale = nil
		in.ScaleStride = bScale.Stride
	} else {
		bScale = nil
		in.ScaleStride = aScale.Stride
	}

	mx.SanitizeBytes(a.Data, a.Format)
	mx.SanitizeBytes(b.Data, b.Format)

	in.Args = mxgemm.Args{A: a, AScale: aScale, B: b, BScale: bScale}
	return in, nil
}
