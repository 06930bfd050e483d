package cpu

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/tensor"
)

func TestSoftmax_LastDim(t *testing.T) {
	backend := New()

	x := newFloat32(t, tensor.Shape{2, 3}, []float32{
		1, 2, 3,
		1, 1, 1,
	})

	result := backend.Softmax(x, -1)
	got := result.AsFloat32()

	// Row 0: softmax(1,2,3).
	d := float32(math.Exp(1) + math.Exp(2) + math.Exp(3))
	expected0 := []float32{
		float32(math.Exp(1)) / d,
		float32(math.Exp(2)) / d,
		float32(math.Exp(3)) / d,
	}
	if !float32SliceEqual(got[:3], expected0) {
		t.Errorf("row 0 wrong: got %v, expected %v", got[:3], expected0)
	}

	// Row 1: uniform.
	third := float32(1.0 / 3.0)
	if !float32SliceEqual(got[3:], []float32{third, third, third}) {
		t.Errorf("row 1 wrong: got %v", got[3:])
	}
}

func TestSoftmax_RowsSumToOne(t *testing.T) {
	backend := New()

	values := make([]float32, 2*3*4)
	for i := range values {
		values[i] = float32(i%7) - 3
	}
	x := newFloat32(t, tensor.Shape{2, 3, 4}, values)

	result := backend.Softmax(x, 2)
	got := result.AsFloat32()

	for row := 0; row < 6; row++ {
		var sum float32
		for i := 0; i < 4; i++ {
			v := got[row*4+i]
			if v < 0 || v > 1 {
				t.Fatalf("softmax value out of range: %v", v)
			}
			sum += v
		}
		if math.Abs(float64(sum)-1) > 1e-5 {
			t.Errorf("row %d sums to %v, expected 1", row, sum)
		}
	}
}

func TestSoftmax_MiddleDim(t *testing.T) {
	backend := New()

	x := newFloat32(t, tensor.Shape{2, 2, 2}, []float32{
		0, 0,
		0, 0,
		1, 2,
		3, 4,
	})

	result := backend.Softmax(x, 1)
	got := result.AsFloat32()

	// Columns of batch 0 are uniform over the two middle positions.
	if !float32SliceEqual(got[:4], []float32{0.5, 0.5, 0.5, 0.5}) {
		t.Errorf("batch 0 wrong: got %v", got[:4])
	}

	// Batch 1, column 0: softmax(1, 3).
	d := float32(math.Exp(1) + math.Exp(3))
	if math.Abs(float64(got[4]-float32(math.Exp(1))/d)) > 1e-5 {
		t.Errorf("batch 1 column 0 wrong: got %v", got[4])
	}
	if math.Abs(float64(got[6]-float32(math.Exp(3))/d)) > 1e-5 {
		t.Errorf("batch 1 column 0 wrong: got %v", got[6])
	}
}

func TestSoftmax_NumericalStability(t *testing.T) {
	backend := New()

	// Large magnitudes must not overflow thanks to max subtraction.
	x := newFloat32(t, tensor.Shape{1, 3}, []float32{1000, 1001, 1002})

	result := backend.Softmax(x, -1)
	got := result.AsFloat32()

	var sum float32
	for _, v := range got {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("softmax produced non-finite value: %v", got)
		}
		sum += v
	}
	if math.Abs(float64(sum)-1) > 1e-5 {
		t.Errorf("sum is %v, expected 1", sum)
	}
}

func TestSoftmax_MaskedScoresVanish(t *testing.T) {
	backend := New()

	// The masked-fill value used by attention drives weights to zero.
	x := newFloat32(t, tensor.Shape{1, 4}, []float32{0.5, -1e9, 0.5, -1e9})

	result := backend.Softmax(x, -1)
	got := result.AsFloat32()

	if got[1] != 0 || got[3] != 0 {
		t.Errorf("masked positions should be 0, got %v", got)
	}
	if !float32SliceEqual([]float32{got[0], got[2]}, []float32{0.5, 0.5}) {
		t.Errorf("unmasked positions should split evenly, got %v", got)
	}
}
