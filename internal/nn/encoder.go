package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// EncoderLayer composes one multi-head self-attention block with one
// position-wise feed-forward block. It holds no state of its own beyond
// the two sub-blocks.
//
// Example:
//
//	layer := nn.NewEncoderLayer(512, 2048, 8, 64, 64, 0.1, backend)
//	output, attn := layer.Forward(x, x, x, mask)
type EncoderLayer[B tensor.Backend] struct {
	selfAttn    *MultiHeadAttention[B]
	feedForward *PositionwiseFeedForward[B]
}

// NewEncoderLayer creates an encoder layer. The argument order mirrors
// the block widths: model width, inner feed-forward width, heads, then
// per-head key and value widths.
func NewEncoderLayer[B tensor.Backend](
	dModel, dInner, nHead, dK, dV int,
	dropout float32,
	backend B,
) *EncoderLayer[B] {
	return &EncoderLayer[B]{
		selfAttn:    NewMultiHeadAttention(nHead, dModel, dK, dV, dropout, backend),
		feedForward: NewPositionwiseFeedForward(dModel, dInner, dropout, backend),
	}
}

// Forward runs attention over (q, k, v) and feeds the attended output
// through the feed-forward block.
//
// Shapes:
//   - q: [batch, len_q, d_model]
//   - k, v: [batch, len_k, d_model]
//   - mask: optional bool tensor [batch, len_q, len_k]; true suppresses
//
// Returns the layer output [batch, len_q, d_model] and the attention
// weights [n_head*batch, len_q, len_k].
func (e *EncoderLayer[B]) Forward(
	q, k, v *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	output, attn := e.selfAttn.Forward(q, k, v, mask)
	output = e.feedForward.Forward(output)
	return output, attn
}

// SelfAttention returns the attention sub-block.
func (e *EncoderLayer[B]) SelfAttention() *MultiHeadAttention[B] {
	return e.selfAttn
}

// FeedForward returns the feed-forward sub-block.
func (e *EncoderLayer[B]) FeedForward() *PositionwiseFeedForward[B] {
	return e.feedForward
}

// SetTraining toggles training mode for both sub-blocks.
func (e *EncoderLayer[B]) SetTraining(training bool) {
	e.selfAttn.SetTraining(training)
	e.feedForward.SetTraining(training)
}

// Parameters returns the parameters of both sub-blocks.
func (e *EncoderLayer[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 16)
	params = append(params, e.selfAttn.Parameters()...)
	params = append(params, e.feedForward.Parameters()...)
	return params
}

// StateDict returns all parameters keyed by sub-block name.
func (e *EncoderLayer[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	CollectStateDict(stateDict, "slf_attn.", e.selfAttn)
	CollectStateDict(stateDict, "pos_ffn.", e.feedForward)
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (e *EncoderLayer[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := LoadModuleStateDict(stateDict, "slf_attn.", e.selfAttn); err != nil {
		return err
	}
	return LoadModuleStateDict(stateDict, "pos_ffn.", e.feedForward)
}
