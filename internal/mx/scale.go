package mx

import "math"

const (
	// GroupSize is the number of logical K elements sharing one scale byte.
	GroupSize = 32

	// NeutralScale is the E8M0 code for a multiplier of exactly 1.
	NeutralScale byte = 0x7F

	scaleBias = 127
	scaleNaN  = 0xFF
)

var scaleTable [256]float32

func init() {
	for i := range 256 {
		if i == scaleNaN {
			scaleTable[i] = float32(math.NaN())
			continue
		}
		scaleTable[i] = float32(math.Ldexp(1, i-scaleBias))
	}
}

// DecodeScale returns 2^(code-127). 0xFF is NaN.
func DecodeScale(code byte) float32 {
	return scaleTable[code]
}

// Scale holds one E8M0 byte per GroupSize logical elements along K, for each
// row of the operand's outer dimension (M for A, N for B).
type Scale struct {
	Rows   int
	Groups int
	Stride int
	Data   []byte
}

// NewScale allocates a zeroed scale tensor for rows × k logical elements.
func NewScale(rows, k int) (*Scale, error) {
	if rows < 0 || k < 0 {
		return nil, NewShapeError("scale", "negative dimension %dx%d", rows, k)
	}
	if k%GroupSize != 0 {
		return nil, NewShapeError("scale", "K=%d is not a multiple of %d", k, GroupSize)
	}
	groups := k / GroupSize
	return &Scale{
		Rows:   rows,
		Groups: groups,
		Stride: groups,
		Data:   make([]byte, rows*groups),
	}, nil
}

// NeutralScaleTensor returns a scale tensor whose every byte is NeutralScale.
func NeutralScaleTensor(rows, k int) (*Scale, error) {
	s, err := NewScale(rows, k)
	if err != nil {
		return nil, err
	}
	for i := range s.Data {
		s.Data[i] = NeutralScale
	}
	return s, nil
}

// Code returns the raw scale byte covering logical element k of row.
func (s *Scale) Code(row, k int) byte {
	return s.Data[row*s.Stride+k/GroupSize]
}

// At returns the decoded multiplier covering logical element k of row.
func (s *Scale) At(row, k int) float32 {
	return scaleTable[s.Code(row, k)]
}
