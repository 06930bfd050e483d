package cpu

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// Softmax computes softmax along the specified dimension:
// Softmax(x_i) = exp(x_i) / sum(exp(x_j)) for all j in that dimension.
//
// The maximum is subtracted before exponentiation for numerical stability.
// Rows are independent and run in parallel. Supports negative dim indexing.
func (c *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dimension %d out of range for tensor of rank %d", dim, ndim))
	}

	result, err := tensor.NewRaw(shape, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		softmaxKernel(view[float32](result), view[float32](x), shape, dim, c.heavyConf())
	case tensor.Float64:
		softmaxKernel(view[float64](result), view[float64](x), shape, dim, c.heavyConf())
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

func softmaxKernel[T floats](dst, src []T, shape tensor.Shape, dim int, conf parallel.Config) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	// Number of independent rows sharing one normalization.
	numRows := 1
	for i := range shape {
		if i != dim {
			numRows *= shape[i]
		}
	}

	parallel.For(numRows, func(row int) {
		// Base offset of this row in the flat buffer.
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

		maxVal := src[baseIdx]
		for i := 1; i < dimSize; i++ {
			if v := src[baseIdx+i*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		var sum T
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			e := T(math.Exp(float64(src[idx] - maxVal)))
			dst[idx] = e
			sum += e
		}

		for i := 0; i < dimSize; i++ {
			dst[baseIdx+i*dimStride] /= sum
		}
	}, conf)
}
