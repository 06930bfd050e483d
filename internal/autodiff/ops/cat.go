package ops

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// CatOp records concatenation of tensors along a dimension.
//
// Backward splits the output gradient back into one slab per input along the
// concatenation dimension. The split is a pure memory operation, so it copies
// bytes directly instead of going through the backend.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a new concatenation operation. dim must already be
// normalized to a non-negative axis.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{
		inputs: inputs,
		output: output,
		dim:    dim,
	}
}

// Inputs returns the concatenated input tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward slices the output gradient into per-input gradients.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	outShape := outputGrad.Shape()
	elemSize := outputGrad.DType().Size()

	outer := 1
	for d := 0; d < op.dim; d++ {
		outer *= outShape[d]
	}
	inner := elemSize
	for d := op.dim + 1; d < len(outShape); d++ {
		inner *= outShape[d]
	}
	srcRowBytes := outShape[op.dim] * inner

	grads := make([]*tensor.RawTensor, len(op.inputs))
	src := outputGrad.Data()

	offset := 0
	for i, in := range op.inputs {
		grad, err := tensor.NewRaw(in.Shape(), outputGrad.DType(), outputGrad.Device())
		if err != nil {
			panic(fmt.Sprintf("cat backward: failed to create gradient tensor: %v", err))
		}

		dst := grad.Data()
		dstRowBytes := in.Shape()[op.dim] * inner
		for row := 0; row < outer; row++ {
			srcOff := row*srcRowBytes + offset
			copy(dst[row*dstRowBytes:(row+1)*dstRowBytes], src[srcOff:srcOff+dstRowBytes])
		}

		offset += dstRowBytes
		grads[i] = grad
	}

	return grads
}
