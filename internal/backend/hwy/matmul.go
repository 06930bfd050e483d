package hwy

import (
	"fmt"

	highway "github.com/ajroetker/go-highway/hwy"
	"github.com/ajroetker/go-highway/hwy/contrib/matmul"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/strand-ml/strand/internal/tensor"
)

// MatMul performs matrix multiplication: (M, K) @ (K, N) -> (M, N).
//
// Float tensors run on go-highway's size-dispatched kernels, which pick
// between streaming, blocked-parallel and packed algorithms based on the
// operand sizes. Integer tensors fall through to the cpu backend.
func (b *Backend) MatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !isFloat(a.DType()) || !isFloat(other.DType()) {
		return b.Backend.MatMul(a, other)
	}

	aShape := a.Shape()
	bShape := other.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	if a.DType() != other.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch %s vs %s", a.DType(), other.DType()))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), b.Device())
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		matmul.MatMulAuto(b.pool, view[float32](a), view[float32](other), view[float32](result), m, n, k)
	case tensor.Float64:
		matmul.MatMulAuto(b.pool, view[float64](a), view[float64](other), view[float64](result), m, n, k)
	}

	return result
}

// BatchMatMul performs batched matrix multiplication with the same shape
// rules as the cpu backend: leading dimensions are the batch, a 2D operand
// is broadcast across it. Batches are distributed over the worker pool and
// each per-batch product runs on the streaming SIMD kernel.
func (b *Backend) BatchMatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !isFloat(a.DType()) || !isFloat(other.DType()) {
		return b.Backend.BatchMatMul(a, other)
	}

	aShape := a.Shape()
	bShape := other.Shape()
	aNDim := len(aShape)
	bNDim := len(bShape)

	if a.DType() != other.DType() {
		panic(fmt.Sprintf("batchmatmul: dtype mismatch %s vs %s", a.DType(), other.DType()))
	}
	if aNDim < 2 || bNDim < 2 {
		panic(fmt.Sprintf("batchmatmul: inputs must be at least 2D, got %dD and %dD", aNDim, bNDim))
	}
	if aNDim == 2 && bNDim == 2 {
		panic("batchmatmul: both inputs are 2D, use MatMul")
	}
	if aNDim != bNDim && aNDim != 2 && bNDim != 2 {
		panic(fmt.Sprintf("batchmatmul: dimension mismatch, got %dD and %dD", aNDim, bNDim))
	}

	batchShape := aShape[:aNDim-2]
	if bNDim > aNDim {
		batchShape = bShape[:bNDim-2]
	}
	if aNDim == bNDim {
		for i := 0; i < aNDim-2; i++ {
			if aShape[i] != bShape[i] {
				panic(fmt.Sprintf("batchmatmul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
			}
		}
	}

	m := aShape[aNDim-2]
	k1 := aShape[aNDim-1]
	k2 := bShape[bNDim-2]
	n := bShape[bNDim-1]
	if k1 != k2 {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch: %d vs %d", k1, k2))
	}

	batchSize := 1
	for _, d := range batchShape {
		batchSize *= d
	}

	outShape := make(tensor.Shape, len(batchShape)+2)
	copy(outShape, batchShape)
	outShape[len(batchShape)] = m
	outShape[len(batchShape)+1] = n

	result, err := tensor.NewRaw(outShape, a.DType(), b.Device())
	if err != nil {
		panic(fmt.Sprintf("batchmatmul: failed to create result tensor: %v", err))
	}

	aStep := m * k1
	if aNDim == 2 {
		aStep = 0
	}
	bStep := k1 * n
	if bNDim == 2 {
		bStep = 0
	}

	switch a.DType() {
	case tensor.Float32:
		batchMatmul(b.pool, view[float32](result), view[float32](a), view[float32](other),
			batchSize, m, k1, n, aStep, bStep)
	case tensor.Float64:
		batchMatmul(b.pool, view[float64](result), view[float64](a), view[float64](other),
			batchSize, m, k1, n, aStep, bStep)
	}

	return result
}

// batchMatmul splits the batch across the pool; attention workloads have
// many small per-head products, so parallelism across batches beats
// parallelism within one product.
func batchMatmul[T highway.Floats](pool *workerpool.Pool, dst, a, b []T, batchSize, m, k, n, aStep, bStep int) {
	pool.ParallelFor(batchSize, func(start, end int) {
		for batch := start; batch < end; batch++ {
			aOff := batch * aStep
			bOff := batch * bStep
			cOff := batch * m * n
			matmul.MatMul(a[aOff:aOff+m*k], b[bOff:bOff+k*n], dst[cOff:cOff+m*n], m, n, k)
		}
	})
}

func isFloat(dt tensor.DataType) bool {
	return dt == tensor.Float32 || dt == tensor.Float64
}
