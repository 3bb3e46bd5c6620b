package mx

import (
	"fmt"
	"math/rand/v2"
)

// Side selects which matmul operand a tensor is. A (LHS) is logically M×K and
// packed along its columns. B (RHS) is logically K×N and packed along its rows.
type Side uint8

const (
	LHS Side = iota
	RHS
)

func (s Side) String() string {
	if s == RHS {
		return "b"
	}
	return "a"
}

// Operand is a row-major byte tensor in its physical (packed) shape.
//
// For e2m1 two logical K elements share a byte: the even one in the low
// nibble, the odd one in the high nibble.
type Operand struct {
	Side   Side
	Format Format
	Rows   int
	Cols   int
	Data   []byte
}

// NewOperand allocates a zeroed operand for the logical outer×k shape. outer
// is M for A and N for B.
func NewOperand(side Side, format Format, outer, k int) (Operand, error) {
	if !format.Valid() {
		return Operand{}, fmt.Errorf("%w: %s", ErrEncoding, format)
	}
	if outer < 0 || k < 0 {
		return Operand{}, NewShapeError(side.String(), "negative dimension %dx%d", outer, k)
	}
	pack := format.PackFactor()
	if k%pack != 0 {
		return Operand{}, NewShapeError(side.String(), "K=%d is not divisible by packing factor %d of %s", k, pack, format)
	}
	op := Operand{Side: side, Format: format}
	if side == LHS {
		op.Rows, op.Cols = outer, k/pack
	} else {
		op.Rows, op.Cols = k/pack, outer
	}
	op.Data = make([]byte, op.Rows*op.Cols)
	return op, nil
}

// LogicalK is the unpacked reduction length.
func (o Operand) LogicalK() int {
	if o.Side == LHS {
		return o.Cols * o.Format.PackFactor()
	}
	return o.Rows * o.Format.PackFactor()
}

// Outer is M for A and N for B.
func (o Operand) Outer() int {
	if o.Side == LHS {
		return o.Rows
	}
	return o.Cols
}

// Code returns the element code at logical (outer, k), already unpacked.
func (o Operand) Code(outer, k int) byte {
	pack := o.Format.PackFactor()
	var b byte
	if o.Side == LHS {
		b = o.Data[outer*o.Cols+k/pack]
	} else {
		b = o.Data[(k/pack)*o.Cols+outer]
	}
	if pack == 2 {
		if k&1 == 1 {
			return b >> 4
		}
		return b & 0x0F
	}
	return b
}

// At decodes the element at logical (outer, k).
func (o Operand) At(outer, k int) float32 {
	return o.Format.Decode(o.Code(outer, k))
}

// Range is a half-open byte interval [Lo, Hi).
type Range struct {
	Lo int
	Hi int
}

var (
	// DefaultOperandRange keeps element codes small and finite for every format.
	DefaultOperandRange = Range{Lo: 20, Hi: 40}
	// DefaultScaleRange spans 2^-127 .. 2^15.
	DefaultScaleRange = Range{Lo: 0, Hi: 143}
)

func (r Range) valid() bool {
	return r.Lo >= 0 && r.Hi <= 256 && r.Lo < r.Hi
}

func (r Range) draw(rng *rand.Rand) byte {
	return byte(r.Lo + rng.IntN(r.Hi-r.Lo))
}

// GenerateOperand fills a packed operand with uniform random bytes from r.
func GenerateOperand(rng *rand.Rand, side Side, format Format, outer, k int, r Range) (Operand, error) {
	if !r.valid() {
		return Operand{}, NewShapeError(side.String(), "invalid byte range [%d,%d)", r.Lo, r.Hi)
	}
	op, err := NewOperand(side, format, outer, k)
	if err != nil {
		return Operand{}, err
	}
	for i := range op.Data {
		op.Data[i] = r.draw(rng)
	}
	return op, nil
}

// GenerateScale fills a rows × k/32 scale tensor with uniform random bytes.
func GenerateScale(rng *rand.Rand, rows, k int, r Range) (*Scale, error) {
	if !r.valid() {
		return nil, NewShapeError("scale", "invalid byte range [%d,%d)", r.Lo, r.Hi)
	}
	s, err := NewScale(rows, k)
	if err != nil {
		return nil, err
	}
	for i := range s.Data {
		s.Data[i] = r.draw(rng)
	}
	return s, nil
}

// CheckScale verifies that s covers op: one row per outer index and one group
// per GroupSize logical K elements. A nil scale is always accepted.
func CheckScale(op Operand, s *Scale) error {
	if s == nil {
		return nil
	}
	name := op.Side.String() + "_scale"
	if s.Rows != op.Outer() {
		return NewShapeError(name, "rows=%d, operand outer dimension is %d", s.Rows, op.Outer())
	}
	k := op.LogicalK()
	if k%GroupSize != 0 {
		return NewShapeError(name, "K=%d is not a multiple of %d", k, GroupSize)
	}
	if s.Groups != k/GroupSize {
		return NewShapeError(name, "groups=%d, want %d for K=%d", s.Groups, k/GroupSize, k)
	}
	if s.Stride < s.Groups {
		return NewShapeError(name, "stride=%d smaller than groups=%d", s.Stride, s.Groups)
	}
	if s.Rows > 0 && len(s.Data) < (s.Rows-1)*s.Stride+s.Groups {
		return NewShapeError(name, "data length %d too short", len(s.Data))
	}
	return nil
}
