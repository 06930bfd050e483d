package ops

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone when shapes already match so callers never hand out a tensor
	// that aliases a shared gradient.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// Broadcasting aligns shapes from the right: first collapse the extra
	// leading dimensions, then the dimensions the target holds at size 1.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	resultShape := result.Shape()
	for i := range targetShape {
		if targetShape[i] == 1 && resultShape[i] > 1 {
			result = backend.SumDim(result, i, true)
			resultShape = result.Shape()
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}

	return result
}

// expandTo broadcasts a gradient back up to the given shape, the inverse of
// what reduceBroadcast does. Reduced dimensions must already sit at size 1
// in the right position (unsqueeze first when the forward dropped them).
func expandTo(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad.Clone()
	}
	return backend.Expand(grad, targetShape)
}

// negateGradient returns -grad.
func negateGradient(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.MulScalar(grad, scalarOf(grad.DType(), -1))
}

// scalarOf converts a float64 constant into the dtype-matched value the
// backend scalar ops expect.
func scalarOf(dtype tensor.DataType, v float64) any {
	switch dtype {
	case tensor.Float32:
		return float32(v)
	case tensor.Float64:
		return v
	default:
		panic(fmt.Sprintf("ops: no scalar representation for dtype %s", dtype))
	}
}
