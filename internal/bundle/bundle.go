// Package bundle persists a calibration case, its quantized inputs and the
// kernel output as a safetensors file so a failing case can be replayed.
package bundle

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/samcharles93/mxcheck/internal/calib"
	"github.com/samcharles93/mxcheck/internal/mx"
	"github.com/samcharles93/mxcheck/internal/mxgemm"
	"github.com/samcharles93/mxcheck/internal/safetensors"
	"github.com/samcharles93/mxcheck/internal/tensor"
	"github.com/samcharles93/mxcheck/internal/verify"
)

// Tensor names inside a bundle file.
const (
	TensorA      = "a"
	TensorB      = "b"
	TensorAScale = "a_scale"
	TensorBScale = "b_scale"
	TensorOut    = "out"
)

// formatVersion is stored in the metadata and checked on Read.
const formatVersion = "1"

var (
	ErrNoOutput = errors.New("bundle has no stored output")
	ErrVersion  = errors.New("unsupported bundle version")
)

// Bundle is everything needed to relaunch one case.
type Bundle struct {
	Case   calib.Case
	Args   mxgemm.Args
	Output *tensor.Mat
}

// FromResult builds a bundle from a result produced with Runner.KeepData.
func FromResult(res calib.Result) (*Bundle, error) {
	if res.Inputs == nil {
		return nil, fmt.Errorf("result %s: inputs were not retained", res.Name)
	}
	return &Bundle{Case: res.Case, Args: res.Inputs.Args, Output: res.Output}, nil
}

// Write stores b at path.
func Write(path string, b *Bundle) error {
	tensors := []safetensors.Tensor{
		operandTensor(TensorA, b.Args.A),
		operandTensor(TensorB, b.Args.B),
	}
	if b.Args.AScale != nil {
		tensors = append(tensors, scaleTensor(TensorAScale, b.Args.AScale))
	}
	if b.Args.BScale != nil {
		tensors = append(tensors, scaleTensor(TensorBScale, b.Args.BScale))
	}
	if b.Output != nil {
		tensors = append(tensors, safetensors.F32(TensorOut, []int{b.Output.R, b.Output.C}, b.Output.Packed()))
	}
	if err := safetensors.Write(path, tensors, caseMetadata(b.Case)); err != nil {
		return fmt.Errorf("write bundle %s: %w", path, err)
	}
	return nil
}

func operandTensor(name string, op mx.Operand) safetensors.Tensor {
	return safetensors.U8(name, []int{op.Rows, op.Cols}, op.Data)
}

// scaleTensor writes the full Rows×Stride pitch so the stride survives a
// round trip.
func scaleTensor(name string, s *mx.Scale) safetensors.Tensor {
	data := s.Data
	if want := s.Rows * s.Stride; len(data) != want {
		data = make([]byte, want)
		copy(data, s.Data)
	}
	return safetensors.U8(name, []int{s.Rows, s.Stride}, data)
}

func caseMetadata(c calib.Case) map[string]string {
	return map[string]string{
		"version":       formatVersion,
		"m":             strconv.Itoa(c.M),
		"n":             strconv.Itoa(c.N),
		"k":             strconv.Itoa(c.K),
		"block_m":       strconv.Itoa(c.BlockM),
		"block_n":       strconv.Itoa(c.BlockN),
		"block_k":       strconv.Itoa(c.BlockK),
		"rhs_scale":     strconv.FormatBool(c.RHSScale),
		"mx_format":     c.MXFormat,
		"normal_format": c.NormalFormat,
		"seed":          strconv.FormatUint(c.Seed, 10),
	}
}

func parseCase(meta map[string]string) (calib.Case, error) {
	var c calib.Case
	if v := meta["version"]; v != formatVersion {
		return c, fmt.Errorf("%w: %q", ErrVersion, v)
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"m", &c.M}, {"n", &c.N}, {"k", &c.K},
		{"block_m", &c.BlockM}, {"block_n", &c.BlockN}, {"block_k", &c.BlockK},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(meta[f.key])
		if err != nil {
			return c, fmt.Errorf("metadata %s: %w", f.key, err)
		}
		*f.dst = v
	}
	rhs, err := strconv.ParseBool(meta["rhs_scale"])
	if err != nil {
		return c, fmt.Errorf("metadata rhs_scale: %w", err)
	}
	c.RHSScale = rhs
	seed, err := strconv.ParseUint(meta["seed"], 10, 64)
	if err != nil {
		return c, fmt.Errorf("metadata seed: %w", err)
	}
	c.Seed = seed
	c.MXFormat = meta["mx_format"]
	c.NormalFormat = meta["normal_format"]
	return c, nil
}

// Read loads a bundle written by Write and checks every tensor against the
// case dimensions.
func Read(path string) (*Bundle, error) {
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	c, err := parseCase(f.Metadata)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	fa, fb, err := c.Formats()
	if err != nil {
		return nil, err
	}

	b := &Bundle{Case: c}
	if b.Args.A, err = readOperand(f, TensorA, mx.LHS, fa, c.M, c.K); err != nil {
		return nil, err
	}
	if b.Args.B, err = readOperand(f, TensorB, mx.RHS, fb, c.N, c.K); err != nil {
		return nil, err
	}
	if b.Args.AScale, err = readScale(f, TensorAScale, c.M, c.K); err != nil {
		return nil, err
	}
	if b.Args.BScale, err = readScale(f, TensorBScale, c.N, c.K); err != nil {
		return nil, err
	}
	if err := checkScaleSide(c, b.Args); err != nil {
		return nil, err
	}
	if _, ok := f.Tensor(TensorOut); ok {
		data, info, err := f.ReadTensorF32(TensorOut)
		if err != nil {
			return nil, err
		}
		if len(info.Shape) != 2 || info.Shape[0] != c.M || info.Shape[1] != c.N {
			return nil, mx.NewShapeError(TensorOut, "shape %v, want [%d %d]", info.Shape, c.M, c.N)
		}
		out, err := tensor.NewMatFromData(c.M, c.N, data)
		if err != nil {
			return nil, err
		}
		b.Output = &out
	}
	return b, nil
}

func readOperand(f *safetensors.File, name string, side mx.Side, format mx.Format, outer, k int) (mx.Operand, error) {
	op, err := mx.NewOperand(side, format, outer, k)
	if err != nil {
		return mx.Operand{}, err
	}
	data, info, err := f.ReadTensorU8(name)
	if err != nil {
		return mx.Operand{}, err
	}
	if len(info.Shape) != 2 || info.Shape[0] != op.Rows || info.Shape[1] != op.Cols {
		return mx.Operand{}, mx.NewShapeError(name, "shape %v, want [%d %d]", info.Shape, op.Rows, op.Cols)
	}
	op.Data = data
	return op, nil
}

// readScale returns nil when the bundle does not carry the tensor.
func readScale(f *safetensors.File, name string, rows, k int) (*mx.Scale, error) {
	if _, ok := f.Tensor(name); !ok {
		return nil, nil
	}
	s, err := mx.NewScale(rows, k)
	if err != nil {
		return nil, err
	}
	data, info, err := f.ReadTensorU8(name)
	if err != nil {
		return nil, err
	}
	if len(info.Shape) != 2 || info.Shape[0] != rows || info.Shape[1] < s.Groups {
		return nil, mx.NewShapeError(name, "shape %v, want [%d >=%d]", info.Shape, rows, s.Groups)
	}
	s.Stride = info.Shape[1]
	s.Data = data
	return s, nil
}

// checkScaleSide requires exactly the scale named by c.RHSScale.
func checkScaleSide(c calib.Case, args mxgemm.Args) error {
	want, other := TensorBScale, TensorAScale
	present, extra := args.BScale != nil, args.AScale != nil
	if !c.RHSScale {
		want, other = other, want
		present, extra = extra, present
	}
	if !present {
		return mx.NewShapeError(want, "missing for rhs_scale=%t", c.RHSScale)
	}
	if extra {
		return mx.NewShapeError(other, "unexpected for rhs_scale=%t", c.RHSScale)
	}
	return nil
}

// Replay relaunches the tiled kernel on the stored inputs and compares the
// result against the stored output.
func Replay(b *Bundle, workers int, tol verify.Tolerance) (verify.Stats, error) {
	if b.Output == nil {
		return verify.Stats{}, ErrNoOutput
	}
	got, err := mxgemm.MatMulScaled(b.Case.Config(workers), b.Args)
	if err != nil {
		return verify.Stats{}, err
	}
	want := b.Output.Packed()
	stats, err := verify.Compare(got.Data, want)
	if err != nil {
		return verify.Stats{}, err
	}
	return stats, verify.AllClose(got.Data, want, tol)
}
