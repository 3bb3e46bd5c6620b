// Package mx implements the OCP microscaling element and scale encodings used
// by the scaled-block matmul: e2m1 (packed two per byte), e4m3, e5m2 and the
// E8M0 shared scale.
//
// Reference: https://www.opencompute.org/documents/ocp-microscaling-formats-mx-v1-0-spec-final-pdf
package mx

import (
	"fmt"
	"math"
	"strings"
)

// Format is the element encoding of an operand.
type Format uint8

const (
	E2M1 Format = iota + 1
	E4M3
	E5M2
)

func (f Format) String() string {
	switch f {
	case E2M1:
		return "e2m1"
	case E4M3:
		return "e4m3"
	case E5M2:
		return "e5m2"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat resolves a format name. Unknown names return an error wrapping
// ErrEncoding.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "e2m1", "mxfp4", "fp4":
		return E2M1, nil
	case "e4m3", "fp8e4", "e4m3fn":
		return E4M3, nil
	case "e5m2", "fp8e5":
		return E5M2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrEncoding, name)
	}
}

// Valid reports whether f is one of the supported encodings.
func (f Format) Valid() bool {
	return f == E2M1 || f == E4M3 || f == E5M2
}

// PackFactor is the number of logical elements stored per byte.
func (f Format) PackFactor() int {
	if f == E2M1 {
		return 2
	}
	return 1
}

// MagnitudeMask selects the bits that, when all set, mark an infinity or NaN.
// e2m1 has no such pattern and returns 0.
func (f Format) MagnitudeMask() byte {
	switch f {
	case E4M3:
		return 0x7F
	case E5M2:
		return 0x7C
	default:
		return 0
	}
}

// E2M1 values
var e2m1Table = [16]float32{
	0.0,  // 0 00 0
	0.5,  // 0 00 1
	1.0,  // 0 01 0
	1.5,  // 0 01 1
	2.0,  // 0 10 0
	3.0,  // 0 10 1
	4.0,  // 0 11 0
	6.0,  // 0 11 1
	0.0,  // 1 00 0
	-0.5, // 1 00 1
	-1.0, // 1 01 0
	-1.5, // 1 01 1
	-2.0, // 1 10 0
	-3.0, // 1 10 1
	-4.0, // 1 11 0
	-6.0, // 1 11 1
}

var (
	e4m3Table [256]float32
	e5m2Table [256]float32
)

func init() {
	for i := range 256 {
		b := byte(i)
		e4m3Table[i] = decodeE4M3(b)
		e5m2Table[i] = decodeE5M2(b)
	}
}

// Decode returns the value of a single element code. For e2m1 only the low
// nibble of code is used.
func (f Format) Decode(code byte) float32 {
	switch f {
	case E2M1:
		return e2m1Table[code&0x0F]
	case E4M3:
		return e4m3Table[code]
	case E5M2:
		return e5m2Table[code]
	default:
		return float32(math.NaN())
	}
}

func decodeE4M3(b byte) float32 {
	exp := int(b>>3) & 0x0F
	mant := int(b & 0x07)
	if exp == 0x0F && mant == 0x07 {
		return float32(math.NaN())
	}
	var v float64
	if exp == 0 {
		v = math.Ldexp(float64(mant)/8, -6)
	} else {
		v = math.Ldexp(1+float64(mant)/8, exp-7)
	}
	if b&0x80 != 0 {
		v = -v
	}
	return float32(v)
}

func decodeE5M2(b byte) float32 {
	exp := int(b>>2) & 0x1F
	mant := int(b & 0x03)
	neg := b&0x80 != 0
	if exp == 0x1F {
		if mant != 0 {
			return float32(math.NaN())
		}
		if neg {
			return float32(math.Inf(-1))
		}
		return float32(math.Inf(1))
	}
	var v float64
	if exp == 0 {
		v = math.Ldexp(float64(mant)/4, -14)
	} else {
		v = math.Ldexp(1+float64(mant)/4, exp-15)
	}
	if neg {
		v = -v
	}
	return float32(v)
}
