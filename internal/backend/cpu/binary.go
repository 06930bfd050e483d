package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// numeric covers the dtypes with arithmetic kernels.
type numeric interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// floats covers the dtypes with transcendental kernels.
type floats interface {
	~float32 | ~float64
}

type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
)

func (op binOp) String() string {
	switch op {
	case opAdd:
		return "add"
	case opSub:
		return "sub"
	case opMul:
		return "mul"
	case opDiv:
		return "div"
	default:
		return "unknown"
	}
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (c *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(opAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (c *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(opSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (c *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(opMul, a, b)
}

// Div performs element-wise division with broadcasting.
func (c *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(opDiv, a, b)
}

// binary runs one element-wise arithmetic kernel with the three-path
// dispatch shared by Add through Div: inplace when the left operand owns its
// buffer, flat vectorized when shapes match, strided otherwise.
func (c *Backend) binary(op binOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	sameShape := !needsBroadcast && a.Shape().Equal(b.Shape())
	if sameShape && a.IsUnique() {
		binaryInplace(op, a, b)
		return a
	}

	result, err := tensor.NewRaw(outShape, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	if sameShape {
		binaryVectorized(op, result, a, b)
	} else {
		binaryBroadcast(op, result, a, b, outShape)
	}

	return result
}

func binaryInplace(op binOp, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		inplaceKernel(op, view[float32](a), view[float32](b))
	case tensor.Float64:
		inplaceKernel(op, view[float64](a), view[float64](b))
	case tensor.Int32:
		inplaceKernel(op, view[int32](a), view[int32](b))
	case tensor.Int64:
		inplaceKernel(op, view[int64](a), view[int64](b))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
}

func binaryVectorized(op binOp, result, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		vectorizedKernel(op, view[float32](result), view[float32](a), view[float32](b))
	case tensor.Float64:
		vectorizedKernel(op, view[float64](result), view[float64](a), view[float64](b))
	case tensor.Int32:
		vectorizedKernel(op, view[int32](result), view[int32](a), view[int32](b))
	case tensor.Int64:
		vectorizedKernel(op, view[int64](result), view[int64](a), view[int64](b))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
}

func binaryBroadcast(op binOp, result, a, b *tensor.RawTensor, outShape tensor.Shape) {
	switch a.DType() {
	case tensor.Float32:
		broadcastKernel(op, view[float32](result), view[float32](a), view[float32](b), a.Shape(), b.Shape(), outShape)
	case tensor.Float64:
		broadcastKernel(op, view[float64](result), view[float64](a), view[float64](b), a.Shape(), b.Shape(), outShape)
	case tensor.Int32:
		broadcastKernel(op, view[int32](result), view[int32](a), view[int32](b), a.Shape(), b.Shape(), outShape)
	case tensor.Int64:
		broadcastKernel(op, view[int64](result), view[int64](a), view[int64](b), a.Shape(), b.Shape(), outShape)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
}

func apply[T numeric](op binOp, x, y T) T {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	default:
		return x / y
	}
}

// inplaceKernel computes a[i] = a[i] op b[i].
// Requires a.Shape().Equal(b.Shape()) and a.IsUnique().
func inplaceKernel[T numeric](op binOp, a, b []T) {
	for i := range a {
		a[i] = apply(op, a[i], b[i])
	}
}

// vectorizedKernel computes dst[i] = a[i] op b[i] over flat slices.
// Requires a.Shape().Equal(b.Shape()).
func vectorizedKernel[T numeric](op binOp, dst, a, b []T) {
	for i := range dst {
		dst[i] = apply(op, a[i], b[i])
	}
}

// broadcastKernel computes dst = a op b with stride-0 reads for broadcast
// dimensions.
func broadcastKernel[T numeric](op binOp, dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	for i := range dst {
		av := a[broadcastFlatIndex(i, outStrides, aStrides)]
		bv := b[broadcastFlatIndex(i, outStrides, bStrides)]
		dst[i] = apply(op, av, bv)
	}
}
