package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Reshape returns a tensor with the same elements and a new shape.
// The element count must be preserved.
func (c *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("reshape: failed to create result tensor: %v", err))
	}
	copy(result.Data(), t.Data())
	return result
}

// Transpose permutes the tensor's dimensions. With no axes it reverses all
// dimensions; otherwise axes must be a permutation of [0, ndim).
func (c *Backend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: failed to create result tensor: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		transposeKernel(view[float32](result), view[float32](t), shape, axes)
	case tensor.Float64:
		transposeKernel(view[float64](result), view[float64](t), shape, axes)
	case tensor.Int32:
		transposeKernel(view[int32](result), view[int32](t), shape, axes)
	case tensor.Int64:
		transposeKernel(view[int64](result), view[int64](t), shape, axes)
	case tensor.Uint8:
		transposeKernel(view[uint8](result), view[uint8](t), shape, axes)
	case tensor.Bool:
		transposeKernel(view[bool](result), view[bool](t), shape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

func transposeKernel[T tensor.DType](dst, src []T, shape tensor.Shape, axes []int) {
	ndim := len(shape)
	srcStrides := shape.ComputeStrides()

	dstShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		dstShape[i] = shape[ax]
	}
	dstStrides := dstShape.ComputeStrides()

	coords := make([]int, ndim)
	for i := range src {
		idx := i
		for d := 0; d < ndim; d++ {
			coords[d] = idx / srcStrides[d]
			idx %= srcStrides[d]
		}

		dstIdx := 0
		for dstDim, srcDim := range axes {
			dstIdx += coords[srcDim] * dstStrides[dstDim]
		}
		dst[dstIdx] = src[i]
	}
}

// Unsqueeze inserts a dimension of size 1 at the specified position.
// Supports negative dim indexing over [0, ndim].
func (c *Backend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + 1 + dim
	}
	if dim < 0 || dim > ndim {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for %dD tensor (valid: [0, %d])", dim, ndim, ndim))
	}

	newShape := make(tensor.Shape, ndim+1)
	copy(newShape, shape[:dim])
	newShape[dim] = 1
	copy(newShape[dim+1:], shape[dim:])

	return c.Reshape(x, newShape)
}

// Squeeze removes a dimension of size 1 at the specified position.
// Panics if the dimension size is not 1. Supports negative dim indexing.
func (c *Backend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("squeeze: dimension %d out of range for %dD tensor", dim, ndim))
	}
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, must be 1", dim, shape[dim]))
	}

	newShape := make(tensor.Shape, 0, ndim-1)
	for i := 0; i < ndim; i++ {
		if i != dim {
			newShape = append(newShape, shape[i])
		}
	}

	return c.Reshape(x, newShape)
}

// Expand broadcasts the tensor to a larger shape. Every input dimension must
// either equal the target dimension or be 1; missing leading dimensions are
// treated as 1.
func (c *Backend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()

	if len(newShape) < len(xShape) {
		panic(fmt.Sprintf("expand: new shape %v has fewer dimensions than input shape %v", newShape, xShape))
	}

	offset := len(newShape) - len(xShape)
	for i := 0; i < len(xShape); i++ {
		if xShape[i] != 1 && xShape[i] != newShape[offset+i] {
			panic(fmt.Sprintf("expand: cannot expand dimension %d from %d to %d", i, xShape[i], newShape[offset+i]))
		}
	}

	result, err := tensor.NewRaw(newShape, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("expand: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		expandKernel(view[float32](result), view[float32](x), newShape, xShape)
	case tensor.Float64:
		expandKernel(view[float64](result), view[float64](x), newShape, xShape)
	case tensor.Int32:
		expandKernel(view[int32](result), view[int32](x), newShape, xShape)
	case tensor.Int64:
		expandKernel(view[int64](result), view[int64](x), newShape, xShape)
	case tensor.Uint8:
		expandKernel(view[uint8](result), view[uint8](x), newShape, xShape)
	case tensor.Bool:
		expandKernel(view[bool](result), view[bool](x), newShape, xShape)
	default:
		panic(fmt.Sprintf("expand: unsupported dtype %s", x.DType()))
	}

	return result
}

func expandKernel[T tensor.DType](dst, src []T, outShape, inShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	inStrides := broadcastStrides(inShape, outShape)

	for i := range dst {
		dst[i] = src[broadcastFlatIndex(i, outStrides, inStrides)]
	}
}
