package nn

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// MultiHeadAttention projects queries, keys and values into n_head
// subspaces, attends in each subspace independently, and recombines:
//
//	MHA(Q, K, V) = LayerNorm(Dropout(Concat(head_1..head_h) W_fc) + Q)
//	head_i = Attention(Q W_q_i, K W_k_i, V W_v_i)
//
// The per-head projections are stored as single wide Linear layers
// (d_model -> n_head*d_k for queries/keys, d_model -> n_head*d_v for
// values); Forward folds the head axis into the batch dimension so the
// scaled dot-product kernel runs over all heads at once. The residual
// connection adds the original query input, and the block output is
// layer-normalized with eps=1e-5.
//
// Example:
//
//	mha := nn.NewMultiHeadAttention(8, 512, 64, 64, 0.1, backend)
//	output, attn := mha.Forward(x, x, x, nil) // self-attention
//	output, attn = mha.Forward(q, kv, kv, mask) // cross-attention
type MultiHeadAttention[B tensor.Backend] struct {
	nHead  int
	dK     int
	dV     int
	dModel int

	wQs *Linear[B] // query projection [n_head*d_k, d_model]
	wKs *Linear[B] // key projection   [n_head*d_k, d_model]
	wVs *Linear[B] // value projection [n_head*d_v, d_model]
	fc  *Linear[B] // output projection [d_model, n_head*d_v]

	attention *ScaledDotProductAttention[B]
	layerNorm *LayerNorm[B]
	dropout   *Dropout[B]
	backend   B
}

// NewMultiHeadAttention creates a multi-head attention block.
//
// Initialization:
//   - w_qs, w_ks: N(0, 2/(d_model+d_k))
//   - w_vs: N(0, 2/(d_model+d_v))
//   - fc: Xavier normal
//   - all biases: zeros
//
// The attention kernel uses temperature sqrt(d_k).
func NewMultiHeadAttention[B tensor.Backend](
	nHead, dModel, dK, dV int,
	dropout float32,
	backend B,
) *MultiHeadAttention[B] {
	if nHead <= 0 || dModel <= 0 || dK <= 0 || dV <= 0 {
		panic(fmt.Sprintf("MultiHeadAttention: dimensions must be positive, got n_head=%d d_model=%d d_k=%d d_v=%d",
			nHead, dModel, dK, dV))
	}

	stdQK := math.Sqrt(2.0 / float64(dModel+dK))
	stdV := math.Sqrt(2.0 / float64(dModel+dV))
	temperature := float32(math.Sqrt(float64(dK)))

	return &MultiHeadAttention[B]{
		nHead:  nHead,
		dK:     dK,
		dV:     dV,
		dModel: dModel,

		wQs: NewLinearFromWeight(NormalInit(stdQK, tensor.Shape{nHead * dK, dModel}, backend), true, backend),
		wKs: NewLinearFromWeight(NormalInit(stdQK, tensor.Shape{nHead * dK, dModel}, backend), true, backend),
		wVs: NewLinearFromWeight(NormalInit(stdV, tensor.Shape{nHead * dV, dModel}, backend), true, backend),
		fc:  NewLinearFromWeight(XavierNormal(nHead*dV, dModel, tensor.Shape{dModel, nHead * dV}, backend), true, backend),

		attention: NewScaledDotProductAttention(temperature, dropout, backend),
		layerNorm: NewLayerNorm(dModel, 1e-5, backend),
		dropout:   NewDropout(dropout, backend),
		backend:   backend,
	}
}

// Forward computes multi-head attention.
//
// Shapes:
//   - q: [batch, len_q, d_model]
//   - k: [batch, len_k, d_model]
//   - v: [batch, len_k, d_model]
//   - mask: optional bool tensor [batch, len_q, len_k] (or with len_q=1,
//     or batch=1, both broadcast); true marks suppressed positions
//
// Returns:
//   - output: [batch, len_q, d_model]
//   - attn: [n_head*batch, len_q, len_k], head-major attention weights
//
// For self-attention pass the same tensor as q, k and v. The residual
// added before the final LayerNorm is the original q input.
func (m *MultiHeadAttention[B]) Forward(
	q, k, v *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	m.validateInputs(q, k, v)

	batch := q.Shape()[0]
	lenQ := q.Shape()[1]
	lenK := k.Shape()[1]
	residual := q

	// Project and fold heads into the batch dimension: every head
	// becomes an independent attention problem of width d_k / d_v.
	qh := foldHeads(m.wQs.Forward(q), batch, lenQ, m.nHead, m.dK)
	kh := foldHeads(m.wKs.Forward(k), batch, lenK, m.nHead, m.dK)
	vh := foldHeads(m.wVs.Forward(v), batch, lenK, m.nHead, m.dV)

	output, attn := m.attention.Forward(qh, kh, vh, m.expandMaskHeads(mask, batch))

	// Recombine heads and project back to d_model.
	output = unfoldHeads(output, m.nHead, batch, lenQ, m.dV)
	output = m.fc.Forward(output)
	output = m.dropout.Forward(output)
	output = output.Add(residual)
	return m.layerNorm.Forward(output), attn
}

// expandMaskHeads repeats the mask once per head along the batch
// dimension, matching the head-major fold of q, k and v: the attention
// row for head h and batch element b sits at index h*batch + b.
func (m *MultiHeadAttention[B]) expandMaskHeads(mask *tensor.Tensor[bool, B], batch int) *tensor.Tensor[bool, B] {
	if mask == nil {
		return nil
	}
	shape := mask.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("MultiHeadAttention: mask must be 3D [batch, len_q, len_k], got shape %v", shape))
	}
	if shape[0] != batch && shape[0] != 1 {
		panic(fmt.Sprintf("MultiHeadAttention: mask batch %d does not match input batch %d", shape[0], batch))
	}
	if shape[0] == 1 && batch > 1 {
		mask = mask.Expand(tensor.Shape{batch, shape[1], shape[2]})
	}

	copies := make([]*tensor.Tensor[bool, B], m.nHead)
	for i := range copies {
		copies[i] = mask
	}
	return tensor.Cat(copies, 0)
}

func (m *MultiHeadAttention[B]) validateInputs(q, k, v *tensor.Tensor[float32, B]) {
	names := []string{"q", "k", "v"}
	for i, t := range []*tensor.Tensor[float32, B]{q, k, v} {
		if len(t.Shape()) != 3 {
			panic(fmt.Sprintf("MultiHeadAttention: %s must be 3D [batch, len, d_model], got shape %v", names[i], t.Shape()))
		}
		if t.Shape()[2] != m.dModel {
			panic(fmt.Sprintf("MultiHeadAttention: %s feature width %d does not match d_model %d", names[i], t.Shape()[2], m.dModel))
		}
	}
	if q.Shape()[0] != k.Shape()[0] || k.Shape()[0] != v.Shape()[0] {
		panic(fmt.Sprintf("MultiHeadAttention: batch mismatch: q=%d k=%d v=%d",
			q.Shape()[0], k.Shape()[0], v.Shape()[0]))
	}
	if k.Shape()[1] != v.Shape()[1] {
		panic(fmt.Sprintf("MultiHeadAttention: key and value must share sequence length: got %d and %d",
			k.Shape()[1], v.Shape()[1]))
	}
}

// foldHeads reshapes a projected tensor from [batch, len, n_head*dim] to
// [n_head*batch, len, dim] with the head index major in the merged batch.
func foldHeads[B tensor.Backend](x *tensor.Tensor[float32, B], batch, seqLen, nHead, dim int) *tensor.Tensor[float32, B] {
	x = x.Reshape(batch, seqLen, nHead, dim)
	x = x.Transpose(2, 0, 1, 3) // [n_head, batch, len, dim]
	return x.Reshape(nHead*batch, seqLen, dim)
}

// unfoldHeads is the inverse of foldHeads: [n_head*batch, len, dim] back
// to [batch, len, n_head*dim].
func unfoldHeads[B tensor.Backend](x *tensor.Tensor[float32, B], nHead, batch, seqLen, dim int) *tensor.Tensor[float32, B] {
	x = x.Reshape(nHead, batch, seqLen, dim)
	x = x.Transpose(1, 2, 0, 3) // [batch, len, n_head, dim]
	return x.Reshape(batch, seqLen, nHead*dim)
}

// SetTraining toggles training mode for the block's dropout layers.
func (m *MultiHeadAttention[B]) SetTraining(training bool) {
	m.attention.SetTraining(training)
	m.dropout.SetTraining(training)
}

// NHead returns the number of attention heads.
func (m *MultiHeadAttention[B]) NHead() int { return m.nHead }

// DModel returns the model feature width.
func (m *MultiHeadAttention[B]) DModel() int { return m.dModel }

// Parameters returns all trainable parameters: the four projections'
// weights and biases plus the LayerNorm gain and shift.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 10)
	params = append(params, m.wQs.Parameters()...)
	params = append(params, m.wKs.Parameters()...)
	params = append(params, m.wVs.Parameters()...)
	params = append(params, m.fc.Parameters()...)
	params = append(params, m.layerNorm.Parameters()...)
	return params
}

// StateDict returns all parameters keyed by projection name.
func (m *MultiHeadAttention[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	CollectStateDict(stateDict, "w_qs.", m.wQs)
	CollectStateDict(stateDict, "w_ks.", m.wKs)
	CollectStateDict(stateDict, "w_vs.", m.wVs)
	CollectStateDict(stateDict, "fc.", m.fc)
	CollectStateDict(stateDict, "layer_norm.", m.layerNorm)
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (m *MultiHeadAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := LoadModuleStateDict(stateDict, "w_qs.", m.wQs); err != nil {
		return err
	}
	if err := LoadModuleStateDict(stateDict, "w_ks.", m.wKs); err != nil {
		return err
	}
	if err := LoadModuleStateDict(stateDict, "w_vs.", m.wVs); err != nil {
		return err
	}
	if err := LoadModuleStateDict(stateDict, "fc.", m.fc); err != nil {
		return err
	}
	return LoadModuleStateDict(stateDict, "layer_norm.", m.layerNorm)
}
