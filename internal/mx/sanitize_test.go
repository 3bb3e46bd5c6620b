package mx

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"
)

func allCodes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i * 7)
	}
	return out
}

func TestSanitizeRemovesNonFinite(t *testing.T) {
	t.Parallel()

	for _, f := range []Format{E4M3, E5M2} {
		data := allCodes(1024)
		SanitizeBytes(data, f)
		for i, b := range data {
			v := float64(f.Decode(b))
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s: position %d still non-finite (%#x)", f, i, b)
			}
		}
	}
}

func TestSanitizeReplacementValue(t *testing.T) {
	t.Parallel()

	data := make([]byte, 300)
	data[5] = 0x7F   // +NaN
	data[6] = 0xFF   // -NaN
	data[299] = 0x7F // index wraps to 43
	SanitizeBytes(data, E4M3)
	if data[5] != 5 {
		t.Fatalf("pos 5: got %#x", data[5])
	}
	if data[6] != 0x86 {
		t.Fatalf("pos 6: got %#x", data[6])
	}
	if data[299] != 43 {
		t.Fatalf("pos 299: got %#x", data[299])
	}

	e5 := make([]byte, 200)
	e5[130] = 0xFC // -Inf
	SanitizeBytes(e5, E5M2)
	if e5[130] != (130%0x7C)|0x80 {
		t.Fatalf("e5m2 pos 130: got %#x", e5[130])
	}
}

func TestSanitizeIdempotentAndPreserving(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 7))
	for _, f := range []Format{E2M1, E4M3, E5M2} {
		orig := make([]byte, 4096)
		for i := range orig {
			orig[i] = byte(rng.IntN(256))
		}
		op := Operand{Side: LHS, Format: f, Rows: 64, Cols: 64, Data: orig}

		once := Sanitize(op)
		twice := Sanitize(once)
		if !bytes.Equal(once.Data, twice.Data) {
			t.Fatalf("%s: sanitize is not idempotent", f)
		}
		for i := range orig {
			if orig[i]&0x80 != once.Data[i]&0x80 {
				t.Fatalf("%s: sign changed at %d", f, i)
			}
			if IsFinite(f, orig[i]) && orig[i] != once.Data[i] {
				t.Fatalf("%s: finite value changed at %d", f, i)
			}
		}
		if f == E2M1 && !bytes.Equal(orig, once.Data) {
			t.Fatal("e2m1 must be untouched")
		}
	}
}

func TestSanitizeDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	op := Operand{Side: RHS, Format: E4M3, Rows: 1, Cols: 2, Data: []byte{0x7F, 0x01}}
	_ = Sanitize(op)
	if op.Data[0] != 0x7F {
		t.Fatal("Sanitize modified its input")
	}
}
