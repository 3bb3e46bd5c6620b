package tensor

import (
	"math"
	"testing"
)

func TestNewMatFromData(t *testing.T) {
	t.Parallel()

	m, err := NewMatFromData(2, 3, []float32{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("NewMatFromData: %v", err)
	}
	if m.At(1, 2) != 6 || m.Stride != 3 {
		t.Fatalf("unexpected mat %+v", m)
	}
	if _, err := NewMatFromData(2, 2, []float32{1}); err != errDataSizeMismatch {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if _, err := NewMatFromData(-1, 2, nil); err != errNegativeDim {
		t.Fatalf("expected negative dim, got %v", err)
	}
}

func TestPackedStrided(t *testing.T) {
	t.Parallel()

	m := Mat{R: 2, C: 2, Stride: 3, Data: []float32{1, 2, -1, 3, 4, -1}}
	got := m.Packed()
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("packed[%d] = %v want %v", i, got[i], want[i])
		}
	}
	if len(got) != 4 {
		t.Fatalf("packed length %d", len(got))
	}
}

func TestHasNonFiniteIgnoresPadding(t *testing.T) {
	t.Parallel()

	m := Mat{R: 1, C: 2, Stride: 3, Data: []float32{1, 2, float32(math.NaN())}}
	if m.HasNonFinite() {
		t.Fatal("padding should not be inspected")
	}
	m.Set(0, 1, float32(math.Inf(-1)))
	if !m.HasNonFinite() {
		t.Fatal("expected non-finite")
	}
}

func TestFillAndRow(t *testing.T) {
	t.Parallel()

	m := NewMat(3, 2)
	m.Fill(7)
	row := m.Row(2)
	row[0] = 1
	if m.At(2, 0) != 1 || m.At(2, 1) != 7 {
		t.Fatalf("row view not shared: %v", m.Data)
	}
}
