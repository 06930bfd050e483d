// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/tensor"
)

// ScaledDotProductAttention computes attention with scaled dot products:
//
//	Attention(Q, K, V) = softmax(QK^T / temperature) * V
//
// The temperature is a fixed divisor chosen at construction; callers pass
// sqrt(d_k) so the dot products keep unit variance regardless of the key
// width. Dropout is applied to the attention weights after softmax.
type ScaledDotProductAttention[B tensor.Backend] = nn.ScaledDotProductAttention[B]

// NewScaledDotProductAttention creates the attention kernel.
//
// temperature must be positive; dropout is the drop probability applied to
// the attention weights.
//
// Example:
//
//	attn := nn.NewScaledDotProductAttention(float32(math.Sqrt(64)), 0.1, backend)
//	q := tensor.Randn[float32](tensor.Shape{16, 10, 64}, backend)
//	k := tensor.Randn[float32](tensor.Shape{16, 12, 64}, backend)
//	v := tensor.Randn[float32](tensor.Shape{16, 12, 64}, backend)
//	output, weights := attn.Forward(q, k, v, nil) // [16, 10, 64], [16, 10, 12]
func NewScaledDotProductAttention[B tensor.Backend](temperature, dropout float32, backend B) *ScaledDotProductAttention[B] {
	return nn.NewScaledDotProductAttention(temperature, dropout, backend)
}

// MultiHeadAttention represents the multi-head attention mechanism with
// residual connection and LayerNorm.
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// NewMultiHeadAttention creates a new multi-head attention module.
//
// Parameters:
//   - nHead: Number of attention heads
//   - dModel: Model feature width
//   - dK: Per-head key/query width
//   - dV: Per-head value width
//   - dropout: Drop probability for attention weights and output
//
// Example:
//
//	backend := cpu.New()
//	mha := nn.NewMultiHeadAttention(8, 512, 64, 64, 0.1, backend)
//	output, attn := mha.Forward(x, x, x, nil)  // Self-attention
func NewMultiHeadAttention[B tensor.Backend](
	nHead, dModel, dK, dV int,
	dropout float32,
	backend B,
) *MultiHeadAttention[B] {
	return nn.NewMultiHeadAttention(nHead, dModel, dK, dV, dropout, backend)
}

// PositionwiseFeedForward applies the same two-layer MLP to every
// position independently, with residual connection and LayerNorm.
type PositionwiseFeedForward[B tensor.Backend] = nn.PositionwiseFeedForward[B]

// NewPositionwiseFeedForward creates a feed-forward block with input
// width dIn and hidden width dHid.
//
// Example:
//
//	ffn := nn.NewPositionwiseFeedForward(512, 2048, 0.1, backend)
//	output := ffn.Forward(x) // [batch, len, 512] -> [batch, len, 512]
func NewPositionwiseFeedForward[B tensor.Backend](dIn, dHid int, dropout float32, backend B) *PositionwiseFeedForward[B] {
	return nn.NewPositionwiseFeedForward(dIn, dHid, dropout, backend)
}

// EncoderLayer composes self-attention and the position-wise
// feed-forward block into one transformer encoder layer.
type EncoderLayer[B tensor.Backend] = nn.EncoderLayer[B]

// NewEncoderLayer creates an encoder layer. The argument order mirrors
// the block widths: model width, inner feed-forward width, heads, then
// per-head key and value widths.
//
// Example:
//
//	layer := nn.NewEncoderLayer(512, 2048, 8, 64, 64, 0.1, backend)
//	output, attn := layer.Forward(x, x, x, nil)
func NewEncoderLayer[B tensor.Backend](
	dModel, dInner, nHead, dK, dV int,
	dropout float32,
	backend B,
) *EncoderLayer[B] {
	return nn.NewEncoderLayer(dModel, dInner, nHead, dK, dV, dropout, backend)
}

// Masks

// PaddingMask builds an attention mask that suppresses padded key
// positions.
//
// lengths holds the true (unpadded) length of every sequence in the
// batch. The result has shape [batch, lq, lk] with true at every key
// position j >= lengths[b], marking it for suppression before softmax.
//
// Example:
//
//	// Two sequences padded to length 5, with true lengths 3 and 5.
//	mask := nn.PaddingMask([]int{3, 5}, 5, 5, backend) // [2, 5, 5]
func PaddingMask[B tensor.Backend](lengths []int, lq, lk int, backend B) *tensor.Tensor[bool, B] {
	return nn.PaddingMask(lengths, lq, lk, backend)
}

// SubsequentMask builds a causal attention mask of shape [1, l, l] with
// true strictly above the diagonal, so each position can only attend to
// itself and earlier positions.
//
// Example:
//
//	mask := nn.SubsequentMask(10, backend) // [1, 10, 10]
//	output, attn := mha.Forward(q, k, v, mask)
func SubsequentMask[B tensor.Backend](l int, backend B) *tensor.Tensor[bool, B] {
	return nn.SubsequentMask(l, backend)
}

// Positional encoding

// PositionalEncoding adds the classic sinusoidal position table to its
// input and applies dropout. The table is a fixed function of
// (maxLen, dim), not a learned parameter.
type PositionalEncoding[B tensor.Backend] = nn.PositionalEncoding[B]

// NewPositionalEncoding creates a PositionalEncoding layer with encodings
// precomputed for positions [0, maxLen).
//
// Example:
//
//	pe := nn.NewPositionalEncoding(200, 512, 0.1, backend)
//	features = pe.Forward(features) // (batch, seq, 512), seq <= 200
func NewPositionalEncoding[B tensor.Backend](maxLen, dim int, dropout float32, backend B) *PositionalEncoding[B] {
	return nn.NewPositionalEncoding(maxLen, dim, dropout, backend)
}
