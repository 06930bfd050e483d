package ops

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// SoftmaxOp records a softmax along a dimension.
//
// Backward uses the saved output instead of re-running the forward pass:
// for each row along dim,
//
//	d_input_i = softmax_i * (d_output_i - dot(d_output, softmax))
//
// which is the Jacobian-vector product of softmax without materializing the
// Jacobian.
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewSoftmaxOp creates a new softmax operation. dim must already be
// normalized to a non-negative axis.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{
		input:  input,
		output: output,
		dim:    dim,
	}
}

// Inputs returns the input tensors.
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SoftmaxOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the softmax gradient from the saved output.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad, err := tensor.NewRaw(op.output.Shape(), op.output.DType(), op.output.Device())
	if err != nil {
		panic(fmt.Sprintf("softmax backward: failed to create gradient tensor: %v", err))
	}

	switch op.output.DType() {
	case tensor.Float32:
		softmaxGradKernel(grad.AsFloat32(), outputGrad.AsFloat32(), op.output.AsFloat32(), op.output.Shape(), op.dim)
	case tensor.Float64:
		softmaxGradKernel(grad.AsFloat64(), outputGrad.AsFloat64(), op.output.AsFloat64(), op.output.Shape(), op.dim)
	default:
		panic(fmt.Sprintf("softmax backward: unsupported dtype %s", op.output.DType()))
	}

	return []*tensor.RawTensor{grad}
}

func softmaxGradKernel[T float32 | float64](dst, grad, sm []T, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	numRows := 1
	for i := range shape {
		if i != dim {
			numRows *= shape[i]
		}
	}

	for row := 0; row < numRows; row++ {
		baseIdx := 0
		remaining := row
		for i := 0; i < len(shape); i++ {
			if i == dim {
				continue
			}
			coord := remaining % shape[i]
			remaining /= shape[i]
			baseIdx += coord * strides[i]
		}

		var dot T
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			dot += grad[idx] * sm[idx]
		}

		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			dst[idx] = sm[idx] * (grad[idx] - dot)
		}
	}
}
