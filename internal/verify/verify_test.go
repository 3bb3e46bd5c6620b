package verify

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestAllClose(t *testing.T) {
	t.Parallel()

	inf := float32(math.Inf(1))
	nan := float32(math.NaN())

	cases := []struct {
		name      string
		got, want []float32
		ok        bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, true},
		{"within abs", []float32{0, 1e-6}, []float32{5e-6, 0}, true},
		{"within rel", []float32{1000.005}, []float32{1000}, true},
		{"outside", []float32{1, 2.1}, []float32{1, 2}, false},
		{"matching inf", []float32{inf}, []float32{inf}, true},
		{"finite vs inf", []float32{1e30}, []float32{inf}, false},
		{"nan", []float32{nan}, []float32{nan}, false},
		{"nan vs value", []float32{nan}, []float32{1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := AllClose(tc.got, tc.want, Default)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrNumericMismatch) {
				t.Fatalf("expected mismatch, got %v", err)
			}
		})
	}
}

func TestMismatchErrorDetails(t *testing.T) {
	t.Parallel()

	got := []float32{1, 2, 30, 4.5}
	want := []float32{1, 2, 3, 4}
	err := AllClose(got, want, Default)

	var me *MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MismatchError, got %T", err)
	}
	if me.Count != 2 || me.Total != 4 {
		t.Fatalf("count %d/%d", me.Count, me.Total)
	}
	if me.WorstIdx != 2 || me.WorstGot != 30 || me.WorstWant != 3 {
		t.Fatalf("unexpected worst element %+v", me)
	}
	if me.MaxAbs != 27 {
		t.Fatalf("max abs %v", me.MaxAbs)
	}
	if !strings.Contains(err.Error(), "2/4 elements") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestLengthMismatch(t *testing.T) {
	t.Parallel()

	if err := AllClose([]float32{1}, []float32{1, 2}, Default); err == nil || errors.Is(err, ErrNumericMismatch) {
		t.Fatalf("expected plain length error, got %v", err)
	}
	if _, err := Compare([]float32{1}, nil); err == nil {
		t.Fatal("expected length error")
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	s, err := Compare([]float32{1, 3, 0}, []float32{1, 2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if s.MaxAbs != 1 || s.MaxRel != 0.5 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestStatsJSONNonFinite(t *testing.T) {
	t.Parallel()

	b, err := Stats{MaxAbs: 2, MaxRel: math.Inf(1)}.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(b); got != `{"max_abs":2,"max_rel":null}` {
		t.Fatalf("unexpected json %s", got)
	}
}
