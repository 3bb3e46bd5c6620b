package mx

// SanitizeBytes rewrites, in place, every code whose magnitude bits mark an
// infinity or NaN under format. The replacement is (uint8(i) % mask) with the
// original sign bit, where i is the flat position. e2m1 is left untouched.
func SanitizeBytes(data []byte, format Format) {
	mask := format.MagnitudeMask()
	if mask == 0 {
		return
	}
	for i, b := range data {
		if b&mask != mask {
			continue
		}
		data[i] = (uint8(i) % mask) | (b & 0x80)
	}
}

// Sanitize returns a copy of op with all non-finite codes replaced.
func Sanitize(op Operand) Operand {
	out := op
	out.Data = make([]byte, len(op.Data))
	copy(out.Data, op.Data)
	SanitizeBytes(out.Data, op.Format)
	return out
}

// IsFinite reports whether code decodes to a finite value under format.
func IsFinite(format Format, code byte) bool {
	mask := format.MagnitudeMask()
	return mask == 0 || code&mask != mask
}
