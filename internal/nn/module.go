// Package nn implements the neural network modules of the Strand framework.
//
// This package provides the building blocks for attention-based sequence
// encoders:
//   - Module interface: base interface for single-input NN components
//   - Parameter: trainable parameters with gradient slots
//   - Linear, Conv1D, LayerNorm, Dropout, ReLU: core layers
//   - ScaledDotProductAttention, MultiHeadAttention: attention blocks
//   - PositionwiseFeedForward, EncoderLayer, TransformerUnit: encoder stack
//   - Sequential: container for stacking single-input layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// Module is the base interface for single-input neural network components.
//
// Every module must implement:
//   - Forward: compute the output from one input tensor
//   - Parameters: return all trainable parameters
//
// Modules can be composed to build networks:
//
//	model := nn.NewSequential[B](
//	    nn.NewLinear(784, 128, true, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, true, backend),
//	)
//
// The attention blocks in this package consume several tensors per call
// (query, key, value, mask) and therefore expose their own Forward
// signatures instead of implementing Module; they still provide
// Parameters for optimizers and StateDict for checkpoints.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without trainable
	// state (e.g. activations) return an empty slice.
	Parameters() []*Parameter[B]
}
