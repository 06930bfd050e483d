package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// maskFillValue replaces suppressed attention scores before softmax. Large
// and negative rather than -Inf so a fully masked row degrades to a
// uniform distribution instead of NaN.
const maskFillValue float32 = -1e9

// ScaledDotProductAttention computes attention with scaled dot products:
//
//	Attention(Q, K, V) = softmax(QK^T / temperature) * V
//
// The temperature is a fixed divisor chosen at construction; callers pass
// sqrt(d_k) so the dot products keep unit variance regardless of the key
// width. Dropout is applied to the attention weights after softmax.
//
// Inputs are 3D with the batch dimension first. MultiHeadAttention folds
// its heads into that dimension before delegating here, so "batch" may be
// n_head * batch.
//
// Example:
//
//	attn := nn.NewScaledDotProductAttention(float32(math.Sqrt(64)), 0.1, backend)
//	q := tensor.Randn[float32](tensor.Shape{16, 10, 64}, backend)
//	k := tensor.Randn[float32](tensor.Shape{16, 12, 64}, backend)
//	v := tensor.Randn[float32](tensor.Shape{16, 12, 64}, backend)
//	output, weights := attn.Forward(q, k, v, nil) // [16, 10, 64], [16, 10, 12]
type ScaledDotProductAttention[B tensor.Backend] struct {
	temperature float32
	dropout     *Dropout[B]
	backend     B
}

// NewScaledDotProductAttention creates the attention kernel.
//
// temperature must be positive; dropout is the drop probability applied to
// the attention weights.
func NewScaledDotProductAttention[B tensor.Backend](temperature, dropout float32, backend B) *ScaledDotProductAttention[B] {
	if temperature <= 0 {
		panic(fmt.Sprintf("ScaledDotProductAttention: temperature must be positive, got %v", temperature))
	}
	return &ScaledDotProductAttention[B]{
		temperature: temperature,
		dropout:     NewDropout(dropout, backend),
		backend:     backend,
	}
}

// Forward computes scaled dot-product attention.
//
// Shapes:
//   - q: [batch, len_q, d_k]
//   - k: [batch, len_k, d_k]
//   - v: [batch, len_k, d_v]
//   - mask: optional bool tensor broadcastable to [batch, len_q, len_k];
//     true marks positions to suppress
//
// Returns:
//   - output: [batch, len_q, d_v]
//   - attn: [batch, len_q, len_k], the attention weights after dropout
//
// Suppressed positions are filled with a large negative value before
// softmax, so their post-softmax weight is effectively zero. Softmax runs
// over the key dimension: every [batch, query] row of the weights sums
// to 1 before dropout.
func (a *ScaledDotProductAttention[B]) Forward(
	q, k, v *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	validateAttentionInputs(q, k, v)

	// Scores: Q @ K^T / temperature -> [batch, len_q, len_k].
	kT := k.Transpose(0, 2, 1)
	attn := q.BatchMatMul(kT).DivScalar(a.temperature)

	if mask != nil {
		fill := tensor.Full[float32](tensor.Shape{1}, maskFillValue, a.backend)
		attn = tensor.Where(mask, fill, attn)
	}

	// Softmax over the key dimension, then dropout on the weights.
	attn = attn.Softmax(2)
	attn = a.dropout.Forward(attn)

	output := attn.BatchMatMul(v)
	return output, attn
}

// SetTraining toggles training mode for the weight dropout.
func (a *ScaledDotProductAttention[B]) SetTraining(training bool) {
	a.dropout.SetTraining(training)
}

// Temperature returns the score divisor.
func (a *ScaledDotProductAttention[B]) Temperature() float32 {
	return a.temperature
}

// validateAttentionInputs panics when q, k, v cannot be attended over.
func validateAttentionInputs[B tensor.Backend](q, k, v *tensor.Tensor[float32, B]) {
	if len(q.Shape()) != 3 || len(k.Shape()) != 3 || len(v.Shape()) != 3 {
		panic(fmt.Sprintf("ScaledDotProductAttention: inputs must be 3D [batch, len, dim], got q=%v k=%v v=%v",
			q.Shape(), k.Shape(), v.Shape()))
	}
	if q.Shape()[0] != k.Shape()[0] || k.Shape()[0] != v.Shape()[0] {
		panic(fmt.Sprintf("ScaledDotProductAttention: batch mismatch: q=%d k=%d v=%d",
			q.Shape()[0], k.Shape()[0], v.Shape()[0]))
	}
	if q.Shape()[2] != k.Shape()[2] {
		panic(fmt.Sprintf("ScaledDotProductAttention: query and key must share d_k: got %d and %d",
			q.Shape()[2], k.Shape()[2]))
	}
	if k.Shape()[1] != v.Shape()[1] {
		panic(fmt.Sprintf("ScaledDotProductAttention: key and value must share sequence length: got %d and %d",
			k.Shape()[1], v.Shape()[1]))
	}
}
