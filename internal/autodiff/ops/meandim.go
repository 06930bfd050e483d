package ops

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// MeanDimOp records a mean along one dimension.
//
// Forward: output = MeanDim(input, dim, keepDim)
//
// Backward is the SumDim gradient scaled by 1/dimSize: each input element
// contributed 1/dimSize of its value to the mean.
type MeanDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewMeanDimOp creates a new MeanDim operation. dim must already be
// normalized to a non-negative axis.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	return &MeanDimOp{
		input:   input,
		output:  output,
		dim:     dim,
		keepDim: keepDim,
	}
}

// Inputs returns the input tensors.
func (op *MeanDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MeanDimOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward broadcasts the scaled gradient along the reduced dimension.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dimSize := op.input.Shape()[op.dim]

	// Scale before expanding: the gradient is smaller by a factor of dimSize.
	grad := backend.DivScalar(outputGrad, scalarOf(outputGrad.DType(), float64(dimSize)))
	if !op.keepDim {
		grad = backend.Unsqueeze(grad, op.dim)
	}
	return []*tensor.RawTensor{expandTo(grad, op.input.Shape(), backend)}
}
