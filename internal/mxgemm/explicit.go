package mxgemm

import (
	"github.com/samcharles93/mxcheck/internal/mx"
	"github.com/samcharles93/mxcheck/internal/tensor"
)

// Explicit dequantizes A into an M×K and B into a K×N float32 matrix with
// explicit row pitches, then reduces every output element with a sequential
// dot product. It ignores the block shape beyond validation.
type Explicit struct{}

func (Explicit) Name() string { return "explicit" }

func (Explicit) Launch(cfg Config, args Args, out *tensor.Mat) error {
	if err := validateArgs(cfg, args, out); err != nil {
		return err
	}
	a, err := Dequantize(args.A, args.AScale)
	if err != nil {
		return err
	}
	b, err := Dequantize(args.B, args.BScale)
	if err != nil {
		return err
	}

	m, n, k := args.Dims()
	for i := 0; i < m; i++ {
		aOff := i * a.Stride
		cOff := i * out.Stride
		for j := 0; j < n; j++ {
			var acc float32
			bOff := j
			for kk := 0; kk < k; kk++ {
				acc += float32(a.Data[aOff+kk] * b.Data[bOff])
				bOff += b.Stride
			}
			out.Data[cOff+j] = acc
		}
	}
	return nil
}

// Dequantize expands op into its logical float32 matrix (M×K for A, K×N for
// B) with each element multiplied by its group scale. A nil scale is neutral.
func Dequantize(op mx.Operand, s *mx.Scale) (tensor.Mat, error) {
	if err := mx.CheckScale(op, s); err != nil {
		return tensor.Mat{}, err
	}
	pack := op.Format.PackFactor()
	outer, k := op.Outer(), op.LogicalK()

	scaleAt := func(row, kk int) float32 {
		if s == nil {
			return 1
		}
		return mx.DecodeScale(s.Data[row*s.Stride+kk/mx.GroupSize])
	}

	if op.Side == mx.LHS {
		dst := tensor.NewMat(outer, k)
		for i := 0; i < outer; i++ {
			src := op.Data[i*op.Cols : (i+1)*op.Cols]
			row := dst.Row(i)
			for kk := range row {
				row[kk] = decodePacked(op.Format, src[kk/pack], kk, pack) * scaleAt(i, kk)
			}
		}
		return dst, nil
	}

	dst := tensor.NewMat(k, outer)
	for kk := 0; kk < k; kk++ {
		src := op.Data[(kk/pack)*op.Cols : (kk/pack+1)*op.Cols]
		row := dst.Row(kk)
		for j := range row {
			row[j] = decodePacked(op.Format, src[j], kk, pack) * scaleAt(j, kk)
		}
	}
	return dst, nil
}

func decodePacked(f mx.Format, b byte, k, pack int) float32 {
	if pack == 2 && k&1 == 1 {
		b >>= 4
	}
	return f.Decode(b)
}
