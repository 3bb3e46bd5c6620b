// Package verify compares kernel outputs elementwise under an absolute plus
// relative tolerance.
package verify

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Tolerance defines acceptable numeric drift between two kernel outputs.
// Elements a (got) and b (want) agree when |a-b| <= Abs + Rel*|b|.
type Tolerance struct {
	Abs float64 `json:"abs" yaml:"abs"`
	Rel float64 `json:"rel" yaml:"rel"`
}

// Default is the cross-kernel parity target.
var Default = Tolerance{Abs: 1e-5, Rel: 1e-5}

var ErrNumericMismatch = errors.New("numeric mismatch")

// MismatchError describes the elements that exceeded the tolerance.
type MismatchError struct {
	Count     int
	Total     int
	WorstIdx  int
	WorstGot  float32
	WorstWant float32
	MaxAbs    float64
	MaxRel    float64
	Tol       Tolerance
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%d/%d elements outside tolerance (abs=%g rel=%g): worst at %d got %g want %g (max abs %g, max rel %g)",
		e.Count, e.Total, e.Tol.Abs, e.Tol.Rel, e.WorstIdx, e.WorstGot, e.WorstWant, e.MaxAbs, e.MaxRel)
}

func (e *MismatchError) Unwrap() error {
	return ErrNumericMismatch
}

// Stats holds the largest absolute and relative differences between two
// slices. NaN pairs count as infinite difference.
type Stats struct {
	MaxAbs float64 `json:"max_abs"`
	MaxRel float64 `json:"max_rel"`
}

// MarshalJSON writes non-finite differences as null, which JSON cannot
// represent as numbers.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MaxAbs *float64 `json:"max_abs"`
		MaxRel *float64 `json:"max_rel"`
	}{finite(s.MaxAbs), finite(s.MaxRel)})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func diff(a, b float32) (float64, float64) {
	fa, fb := float64(a), float64(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return math.Inf(1), math.Inf(1)
	}
	if fa == fb {
		// Covers matching infinities.
		return 0, 0
	}
	d := math.Abs(fa - fb)
	if fb == 0 {
		return d, math.Inf(1)
	}
	return d, d / math.Abs(fb)
}

// Compare returns the max abs/rel differences between got and want.
func Compare(got, want []float32) (Stats, error) {
	if len(got) != len(want) {
		return Stats{}, fmt.Errorf("length mismatch: got %d want %d", len(got), len(want))
	}
	var s Stats
	for i := range got {
		d, r := diff(got[i], want[i])
		s.MaxAbs = max(s.MaxAbs, d)
		s.MaxRel = max(s.MaxRel, r)
	}
	return s, nil
}

// AllClose returns nil when every element of got is within tol of want,
// otherwise a *MismatchError.
func AllClose(got, want []float32, tol Tolerance) error {
	if len(got) != len(want) {
		return fmt.Errorf("length mismatch: got %d want %d", len(got), len(want))
	}
	var (
		count    int
		worst    = -1
		worstExc float64
		stats    Stats
	)
	for i := range got {
		d, r := diff(got[i], want[i])
		stats.MaxAbs = max(stats.MaxAbs, d)
		stats.MaxRel = max(stats.MaxRel, r)

		w := math.Abs(float64(want[i]))
		limit := tol.Abs + tol.Rel*w
		exc := d - limit
		if math.IsInf(w, 1) {
			// An infinite target only matches itself.
			if d == 0 {
				continue
			}
			exc = math.Inf(1)
		} else if d <= limit {
			continue
		}
		count++
		if worst < 0 || exc > worstExc {
			worst, worstExc = i, exc
		}
	}
	if count == 0 {
		return nil
	}
	return &MismatchError{
		Count:     count,
		Total:     len(got),
		WorstIdx:  worst,
		WorstGot:  got[worst],
		WorstWant: want[worst],
		MaxAbs:    stats.MaxAbs,
		MaxRel:    stats.MaxRel,
		Tol:       tol,
	}
}
