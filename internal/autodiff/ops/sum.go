package ops

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// SumOp records a full reduction to a scalar.
//
// Forward: output = Sum(input) with a rank-0 result.
//
// Backward broadcasts the scalar gradient back over the input shape: every
// element contributed equally, so every element receives d_output.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new Sum operation.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{
		input:  input,
		output: output,
	}
}

// Inputs returns the input tensors.
func (op *SumOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SumOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward broadcasts the scalar gradient over the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandTo(outputGrad, op.input.Shape(), backend)}
}
