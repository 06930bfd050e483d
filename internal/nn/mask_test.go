package nn

import (
	"testing"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

// TestPaddingMask_Values tests the suppressed key positions per batch element.
func TestPaddingMask_Values(t *testing.T) {
	backend := cpu.New()

	lq, lk := 3, 4
	mask := PaddingMask([]int{2, 4}, lq, lk, backend)

	if !shapeEqual(mask.Shape(), tensor.Shape{2, lq, lk}) {
		t.Fatalf("Mask shape = %v, expected [2, %d, %d]", mask.Shape(), lq, lk)
	}

	for i := 0; i < lq; i++ {
		for j := 0; j < lk; j++ {
			// Batch 0 has length 2: keys 2 and 3 are padding.
			if got, want := mask.At(0, i, j), j >= 2; got != want {
				t.Errorf("mask[0,%d,%d] = %v, want %v", i, j, got, want)
			}
			// Batch 1 has full length: nothing suppressed.
			if mask.At(1, i, j) {
				t.Errorf("mask[1,%d,%d] = true, want false", i, j)
			}
		}
	}
}

// TestPaddingMask_ZeroLength tests that a zero-length sequence masks all keys.
func TestPaddingMask_ZeroLength(t *testing.T) {
	backend := cpu.New()

	mask := PaddingMask([]int{0}, 2, 3, backend)

	for _, v := range mask.Data() {
		if !v {
			t.Fatal("Zero-length sequence should suppress every key")
		}
	}
}

// TestPaddingMask_Validation tests panics on malformed arguments.
func TestPaddingMask_Validation(t *testing.T) {
	backend := cpu.New()

	cases := []struct {
		name    string
		lengths []int
		lq, lk  int
	}{
		{"empty lengths", []int{}, 3, 4},
		{"zero query length", []int{2}, 0, 4},
		{"zero key length", []int{2}, 3, 0},
		{"length beyond keys", []int{5}, 3, 4},
		{"negative length", []int{-1}, 3, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Expected panic for %s, got none", tc.name)
				}
			}()
			PaddingMask(tc.lengths, tc.lq, tc.lk, backend)
		})
	}
}

// TestSubsequentMask_Values tests the strict upper-triangular layout.
func TestSubsequentMask_Values(t *testing.T) {
	backend := cpu.New()

	l := 4
	mask := SubsequentMask(l, backend)

	if !shapeEqual(mask.Shape(), tensor.Shape{1, l, l}) {
		t.Fatalf("Mask shape = %v, expected [1, %d, %d]", mask.Shape(), l, l)
	}

	for i := 0; i < l; i++ {
		for j := 0; j < l; j++ {
			if got, want := mask.At(0, i, j), j > i; got != want {
				t.Errorf("mask[0,%d,%d] = %v, want %v", i, j, got, want)
			}
		}
	}
}

// TestSubsequentMask_ExpandsAcrossBatch tests broadcasting the single mask
// slice over a batch.
func TestSubsequentMask_ExpandsAcrossBatch(t *testing.T) {
	backend := cpu.New()

	l, batch := 3, 4
	mask := SubsequentMask(l, backend).Expand(tensor.Shape{batch, l, l})

	if !shapeEqual(mask.Shape(), tensor.Shape{batch, l, l}) {
		t.Fatalf("Mask shape = %v, expected [%d, %d, %d]", mask.Shape(), batch, l, l)
	}

	for b := 0; b < batch; b++ {
		for i := 0; i < l; i++ {
			for j := 0; j < l; j++ {
				if got, want := mask.At(b, i, j), j > i; got != want {
					t.Errorf("mask[%d,%d,%d] = %v, want %v", b, i, j, got, want)
				}
			}
		}
	}
}

// TestSubsequentMask_InvalidLength tests length validation.
func TestSubsequentMask_InvalidLength(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for zero length, got none")
		}
	}()

	SubsequentMask(0, backend)
}
