// Package ops defines the differentiable operations recorded on the gradient
// tape.
//
// Each operation captures its inputs and output during the forward pass and
// knows how to turn the output gradient into input gradients during the
// backward pass. One operation type exists per differentiable backend method:
// arithmetic (Add, Sub, Mul, Div and their scalar forms), matrix products
// (MatMul, BatchMatMul), convolution (Conv1D), shape movement (Reshape,
// Transpose, Unsqueeze, Squeeze, Cat, Expand), element-wise math (Exp, Sqrt,
// Rsqrt, ReLU, Softmax), reductions (Sum, SumDim, MeanDim) and masked
// selection (Where).
package ops

import "github.com/strand-ml/strand/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)] (gradient flows equally to both inputs)
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
