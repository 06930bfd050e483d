package ops

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// SumDimOp records a sum along one dimension.
//
// Forward: output = SumDim(input, dim, keepDim)
//
// Backward broadcasts the gradient back along the reduced dimension. If the
// dimension was dropped (keepDim=false) it is first reinserted with size 1 so
// the expand aligns correctly.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDim operation. dim must already be normalized
// to a non-negative axis.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{
		input:   input,
		output:  output,
		dim:     dim,
		keepDim: keepDim,
	}
}

// Inputs returns the input tensors.
func (op *SumDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SumDimOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward broadcasts the gradient along the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		grad = backend.Unsqueeze(grad, op.dim)
	}
	return []*tensor.RawTensor{expandTo(grad, op.input.Shape(), backend)}
}
