package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// AddScalar adds a scalar value to each element of the tensor.
// The scalar's Go type must match the tensor dtype.
func (c *Backend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return c.scalarOp(opAdd, "addscalar", x, scalar)
}

// MulScalar multiplies each element of the tensor by a scalar value.
func (c *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return c.scalarOp(opMul, "mulscalar", x, scalar)
}

// DivScalar divides each element of the tensor by a scalar value.
func (c *Backend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return c.scalarOp(opDiv, "divscalar", x, scalar)
}

func (c *Backend) scalarOp(op binOp, name string, x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		scalarKernel(op, view[float32](result), view[float32](x), scalarAs[float32](name, scalar))
	case tensor.Float64:
		scalarKernel(op, view[float64](result), view[float64](x), scalarAs[float64](name, scalar))
	case tensor.Int32:
		scalarKernel(op, view[int32](result), view[int32](x), scalarAs[int32](name, scalar))
	case tensor.Int64:
		scalarKernel(op, view[int64](result), view[int64](x), scalarAs[int64](name, scalar))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

func scalarAs[T numeric](name string, scalar any) T {
	s, ok := scalar.(T)
	if !ok {
		panic(fmt.Sprintf("%s: scalar type %T does not match tensor dtype", name, scalar))
	}
	return s
}

func scalarKernel[T numeric](op binOp, dst, src []T, s T) {
	for i := range dst {
		dst[i] = apply(op, src[i], s)
	}
}
