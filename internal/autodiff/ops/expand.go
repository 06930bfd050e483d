package ops

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// ExpandOp records a broadcast of a tensor to a larger shape.
//
// Forward: output = Expand(input, newShape)
//
// Backward sums the gradient over every broadcast dimension, reducing it back
// to the input shape.
type ExpandOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewExpandOp creates a new Expand operation.
func NewExpandOp(input, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{
		input:  input,
		output: output,
	}
}

// Inputs returns the input tensors.
func (op *ExpandOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ExpandOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward reduces the gradient back to the input shape.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{reduceBroadcast(outputGrad, op.input.Shape(), backend)}
}
