package nn

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

// TestScaledDotProductAttention_Basic tests attention against hand-computed values.
func TestScaledDotProductAttention_Basic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	// batch=1, len=2, d_k=2, temperature=1
	// Q = [[1, 0], [0, 1]]
	// K = [[1, 0], [0, 1]]
	// V = [[2, 0], [0, 2]]
	q, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("Failed to create query: %v", err)
	}
	k, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	v, err := tensor.FromSlice([]float32{2, 0, 0, 2}, tensor.Shape{1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("Failed to create value: %v", err)
	}

	attn := NewScaledDotProductAttention(1.0, 0.1, backend)
	attn.SetTraining(false)

	output, weights := attn.Forward(q, k, v, nil)

	if !shapeEqual(output.Shape(), tensor.Shape{1, 2, 2}) {
		t.Errorf("Output shape = %v, expected [1, 2, 2]", output.Shape())
	}
	if !shapeEqual(weights.Shape(), tensor.Shape{1, 2, 2}) {
		t.Errorf("Weights shape = %v, expected [1, 2, 2]", weights.Shape())
	}

	// Scores row 0 = [1, 0]: softmax gives [e/(e+1), 1/(e+1)].
	high := float32(math.E / (math.E + 1))
	low := float32(1 / (math.E + 1))
	expectedWeights := []float32{high, low, low, high}
	for i, exp := range expectedWeights {
		if math.Abs(float64(weights.Data()[i]-exp)) > 1e-5 {
			t.Errorf("Weights[%d] = %v, expected %v", i, weights.Data()[i], exp)
		}
	}

	// Output row 0 = high*[2,0] + low*[0,2].
	expectedOutput := []float32{2 * high, 2 * low, 2 * low, 2 * high}
	for i, exp := range expectedOutput {
		if math.Abs(float64(output.Data()[i]-exp)) > 1e-5 {
			t.Errorf("Output[%d] = %v, expected %v", i, output.Data()[i], exp)
		}
	}
}

// TestScaledDotProductAttention_Shapes tests cross-attention shapes (len_q != len_k, d_k != d_v).
func TestScaledDotProductAttention_Shapes(t *testing.T) {
	backend := autodiff.New(cpu.New())

	q := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{2, 5, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{2, 5, 6}, backend)

	attn := NewScaledDotProductAttention(2.0, 0.1, backend)
	attn.SetTraining(false)

	output, weights := attn.Forward(q, k, v, nil)

	if !shapeEqual(output.Shape(), tensor.Shape{2, 3, 6}) {
		t.Errorf("Output shape = %v, expected [2, 3, 6]", output.Shape())
	}
	if !shapeEqual(weights.Shape(), tensor.Shape{2, 3, 5}) {
		t.Errorf("Weights shape = %v, expected [2, 3, 5]", weights.Shape())
	}
}

// TestScaledDotProductAttention_RowsSumToOne tests that every query row of the
// weights is a probability distribution over the keys.
func TestScaledDotProductAttention_RowsSumToOne(t *testing.T) {
	backend := autodiff.New(cpu.New())

	batch, lenQ, lenK, dim := 3, 4, 6, 8
	q := tensor.Randn[float32](tensor.Shape{batch, lenQ, dim}, backend)
	k := tensor.Randn[float32](tensor.Shape{batch, lenK, dim}, backend)
	v := tensor.Randn[float32](tensor.Shape{batch, lenK, dim}, backend)

	attn := NewScaledDotProductAttention(float32(math.Sqrt(float64(dim))), 0.1, backend)
	attn.SetTraining(false)

	_, weights := attn.Forward(q, k, v, nil)

	weightsData := weights.Data()
	for b := 0; b < batch; b++ {
		for i := 0; i < lenQ; i++ {
			sum := float32(0)
			for j := 0; j < lenK; j++ {
				sum += weightsData[b*lenQ*lenK+i*lenK+j]
			}
			if math.Abs(float64(sum-1.0)) > 0.001 {
				t.Errorf("Batch %d, query %d: weights sum = %v, expected 1.0", b, i, sum)
			}
		}
	}
}

// TestScaledDotProductAttention_UniformWhenZeroQuery tests that all-zero
// scores produce a uniform distribution over the keys.
func TestScaledDotProductAttention_UniformWhenZeroQuery(t *testing.T) {
	backend := autodiff.New(cpu.New())

	lenK := 4
	q := tensor.Zeros[float32](tensor.Shape{1, 2, 8}, backend)
	k := tensor.Zeros[float32](tensor.Shape{1, lenK, 8}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, lenK, 8}, backend)

	attn := NewScaledDotProductAttention(1.0, 0.1, backend)
	attn.SetTraining(false)

	_, weights := attn.Forward(q, k, v, nil)

	expected := float32(1.0 / float64(lenK))
	for i, w := range weights.Data() {
		if math.Abs(float64(w-expected)) > 1e-6 {
			t.Errorf("Weights[%d] = %v, expected uniform %v", i, w, expected)
		}
	}
}

// TestScaledDotProductAttention_MaskSuppresses tests that masked key positions
// receive zero weight and the remaining weights renormalize.
func TestScaledDotProductAttention_MaskSuppresses(t *testing.T) {
	backend := autodiff.New(cpu.New())

	lenQ, lenK := 2, 3
	q := tensor.Randn[float32](tensor.Shape{1, lenQ, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, lenK, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, lenK, 4}, backend)

	// Suppress key 2 for every query.
	maskData := []bool{
		false, false, true,
		false, false, true,
	}
	mask, err := tensor.FromSlice(maskData, tensor.Shape{1, lenQ, lenK}, backend)
	if err != nil {
		t.Fatalf("Failed to create mask: %v", err)
	}

	attn := NewScaledDotProductAttention(2.0, 0.1, backend)
	attn.SetTraining(false)

	_, weights := attn.Forward(q, k, v, mask)

	weightsData := weights.Data()
	for i := 0; i < lenQ; i++ {
		masked := weightsData[i*lenK+2]
		if math.Abs(float64(masked)) > 1e-6 {
			t.Errorf("Query %d: masked weight = %v, expected ~0", i, masked)
		}

		sum := float32(0)
		for j := 0; j < lenK; j++ {
			sum += weightsData[i*lenK+j]
		}
		if math.Abs(float64(sum-1.0)) > 0.001 {
			t.Errorf("Query %d: weights sum = %v, expected 1.0", i, sum)
		}
	}
}

// TestScaledDotProductAttention_FullyMaskedRow tests that a row with every key
// suppressed degrades to a uniform distribution instead of NaN.
func TestScaledDotProductAttention_FullyMaskedRow(t *testing.T) {
	backend := autodiff.New(cpu.New())

	lenK := 3
	q := tensor.Randn[float32](tensor.Shape{1, 1, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, lenK, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, lenK, 4}, backend)

	mask := tensor.Full[bool](tensor.Shape{1, 1, lenK}, true, backend)

	attn := NewScaledDotProductAttention(1.0, 0.1, backend)
	attn.SetTraining(false)

	_, weights := attn.Forward(q, k, v, mask)

	expected := float32(1.0 / float64(lenK))
	for i, w := range weights.Data() {
		if math.IsNaN(float64(w)) {
			t.Fatalf("Weights[%d] is NaN", i)
		}
		if math.Abs(float64(w-expected)) > 1e-6 {
			t.Errorf("Weights[%d] = %v, expected uniform %v", i, w, expected)
		}
	}
}

// TestScaledDotProductAttention_DropoutScalesWeights tests that training-mode
// dropout zeroes weights and rescales the survivors by 1/(1-p).
func TestScaledDotProductAttention_DropoutScalesWeights(t *testing.T) {
	backend := autodiff.New(cpu.New())

	// Zero queries and keys make the pre-dropout weights exactly uniform,
	// so post-dropout entries can only be 0 or (1/len_k) * 1/(1-p).
	lenK := 4
	q := tensor.Zeros[float32](tensor.Shape{1, 8, 8}, backend)
	k := tensor.Zeros[float32](tensor.Shape{1, lenK, 8}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, lenK, 8}, backend)

	attn := NewScaledDotProductAttention(1.0, 0.5, backend)
	SetDropoutSeed(123)

	_, weights := attn.Forward(q, k, v, nil)

	kept := float32(0.5) // (1/4) * 2
	zeros, survivors := 0, 0
	for i, w := range weights.Data() {
		switch {
		case w == 0:
			zeros++
		case math.Abs(float64(w-kept)) < 1e-6:
			survivors++
		default:
			t.Errorf("Weights[%d] = %v, expected 0 or %v", i, w, kept)
		}
	}
	if zeros == 0 || survivors == 0 {
		t.Errorf("Dropout produced %d zeros and %d survivors, expected both", zeros, survivors)
	}
}

// TestScaledDotProductAttention_TemperaturePanic tests constructor validation.
func TestScaledDotProductAttention_TemperaturePanic(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for zero temperature, got none")
		}
	}()

	NewScaledDotProductAttention(0, 0.1, backend)
}

// TestScaledDotProductAttention_Invalid2D tests rank validation.
func TestScaledDotProductAttention_Invalid2D(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for 2D query, got none")
		}
	}()

	q := tensor.Randn[float32](tensor.Shape{3, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 3, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 3, 4}, backend)

	attn := NewScaledDotProductAttention(2.0, 0, backend)
	attn.Forward(q, k, v, nil)
}

// TestScaledDotProductAttention_KeyDimMismatch tests d_k validation.
func TestScaledDotProductAttention_KeyDimMismatch(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for d_k mismatch, got none")
		}
	}()

	q := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 3, 16}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 3, 16}, backend)

	attn := NewScaledDotProductAttention(2.0, 0, backend)
	attn.Forward(q, k, v, nil)
}

// TestScaledDotProductAttention_KVLenMismatch tests key/value length validation.
func TestScaledDotProductAttention_KVLenMismatch(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for K/V length mismatch, got none")
		}
	}()

	q := tensor.Randn[float32](tensor.Shape{1, 5, 8}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 7, 8}, backend)

	attn := NewScaledDotProductAttention(2.0, 0, backend)
	attn.Forward(q, k, v, nil)
}

// TestScaledDotProductAttention_BatchMismatch tests batch validation.
func TestScaledDotProductAttention_BatchMismatch(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for batch mismatch, got none")
		}
	}()

	q := tensor.Randn[float32](tensor.Shape{2, 3, 8}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)

	attn := NewScaledDotProductAttention(2.0, 0, backend)
	attn.Forward(q, k, v, nil)
}

// BenchmarkScaledDotProductAttention benchmarks folded-head attention:
// 8 heads over batch 2, seq 64, d_k 64.
func BenchmarkScaledDotProductAttention(b *testing.B) {
	backend := cpu.New()

	q := tensor.Randn[float32](tensor.Shape{16, 64, 64}, backend)
	k := tensor.Randn[float32](tensor.Shape{16, 64, 64}, backend)
	v := tensor.Randn[float32](tensor.Shape{16, 64, 64}, backend)

	attn := NewScaledDotProductAttention(8.0, 0, backend)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		attn.Forward(q, k, v, nil)
	}
}

// BenchmarkScaledDotProductAttention_WithMask benchmarks masked attention.
func BenchmarkScaledDotProductAttention_WithMask(b *testing.B) {
	backend := cpu.New()

	seqLen := 64
	q := tensor.Randn[float32](tensor.Shape{16, seqLen, 64}, backend)
	k := tensor.Randn[float32](tensor.Shape{16, seqLen, 64}, backend)
	v := tensor.Randn[float32](tensor.Shape{16, seqLen, 64}, backend)
	mask := SubsequentMask(seqLen, backend).Expand(tensor.Shape{16, seqLen, seqLen})

	attn := NewScaledDotProductAttention(8.0, 0, backend)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		attn.Forward(q, k, v, mask)
	}
}

// Helper function to check if two shapes are equal.
func shapeEqual(a, b tensor.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
