package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Cat concatenates tensors along the specified dimension.
//
// All tensors must share dtype and every dimension except the concatenation
// dimension. Supports negative dim indexing (-1 = last dimension).
func (c *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensor", dim, ndim))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := 0; d < ndim; d++ {
			if d == dim {
				totalDim += tShape[d]
			} else if tShape[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, d, tShape[d], shape[d]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[dim] = totalDim

	result, err := tensor.NewRaw(outShape, dtype, c.device)
	if err != nil {
		panic(fmt.Sprintf("cat: failed to create result tensor: %v", err))
	}

	switch dtype {
	case tensor.Float32:
		catKernel[float32](result, tensors, dim)
	case tensor.Float64:
		catKernel[float64](result, tensors, dim)
	case tensor.Int32:
		catKernel[int32](result, tensors, dim)
	case tensor.Int64:
		catKernel[int64](result, tensors, dim)
	case tensor.Uint8:
		catKernel[uint8](result, tensors, dim)
	case tensor.Bool:
		catKernel[bool](result, tensors, dim)
	default:
		panic(fmt.Sprintf("cat: unsupported dtype %s", dtype))
	}

	return result
}

func catKernel[T tensor.DType](result *tensor.RawTensor, tensors []*tensor.RawTensor, dim int) {
	out := view[T](result)
	outStrides := result.Shape().ComputeStrides()

	offset := 0
	for _, t := range tensors {
		src := view[T](t)
		shape := t.Shape()
		strides := shape.ComputeStrides()

		for i := range src {
			outIdx := 0
			temp := i
			for d := 0; d < len(shape); d++ {
				coord := temp / strides[d]
				temp %= strides[d]
				if d == dim {
					coord += offset
				}
				outIdx += coord * outStrides[d]
			}
			out[outIdx] = src[i]
		}

		offset += shape[dim]
	}
}
