package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Sum computes the total sum of all elements (scalar result).
func (c *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("sum: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumKernel(view[float32](result), view[float32](x))
	case tensor.Float64:
		sumKernel(view[float64](result), view[float64](x))
	case tensor.Int32:
		sumKernel(view[int32](result), view[int32](x))
	case tensor.Int64:
		sumKernel(view[int64](result), view[int64](x))
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

func sumKernel[T numeric](dst, src []T) {
	var sum T
	for _, v := range src {
		sum += v
	}
	dst[0] = sum
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (c *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumDimKernel(view[float32](result), view[float32](x), shape, dim)
	case tensor.Float64:
		sumDimKernel(view[float64](result), view[float64](x), shape, dim)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// sumDimKernel accumulates into the output, whose layout matches the input
// with the reduced dimension pinned to size 1.
func sumDimKernel[T floats](result, data []T, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	for i := range data {
		outIdx := 0
		temp := i
		for d := 0; d < len(shape); d++ {
			coord := temp / strides[d]
			temp %= strides[d]
			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}
		result[outIdx] += data[i]
	}
}

// MeanDim computes the mean of tensor elements along the specified dimension.
// Same dim/keepDim semantics as SumDim.
func (c *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := c.SumDim(x, dim, keepDim)

	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}
	divisor := float64(shape[dim])

	switch result.DType() {
	case tensor.Float32:
		data := view[float32](result)
		d := float32(divisor)
		for i := range data {
			data[i] /= d
		}
	case tensor.Float64:
		data := view[float64](result)
		for i := range data {
			data[i] /= divisor
		}
	default:
		panic(fmt.Sprintf("meandim: unsupported dtype %s (only float32/float64 supported)", result.DType()))
	}

	return result
}
