package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// BatchMatMul performs batched matrix multiplication.
//
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// The last two dimensions are the matrix dimensions; all leading dimensions
// must match. A 2D operand is broadcast across the batch, which is how
// rank-3 linear layers reuse a single weight matrix. Batches run in
// parallel.
func (c *Backend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()
	aNDim := len(aShape)
	bNDim := len(bShape)

	if a.DType() != b.DType() {
		panic(fmt.Sprintf("batchmatmul: dtype mismatch %s vs %s", a.DType(), b.DType()))
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

	// Batch dimensions come from the higher-rank operand; the 2D one is
	// read with a zero batch stride.
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

	result, err := tensor.NewRaw(outShape, a.DType(), c.device)
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
		batchMatmul(view[float32](result), view[float32](a), view[float32](b),
			batchSize, m, k1, n, aStep, bStep, c.heavyConf())
	case tensor.Float64:
		batchMatmul(view[float64](result), view[float64](a), view[float64](b),
			batchSize, m, k1, n, aStep, bStep, c.heavyConf())
	default:
		panic(fmt.Sprintf("batchmatmul: unsupported dtype %s", a.DType()))
	}

	return result
}

func batchMatmul[T floats](dst, a, b []T, batchSize, m, k, n, aStep, bStep int, conf parallel.Config) {
	parallel.For(batchSize, func(batch int) {
		aOff := batch * aStep
		bOff := batch * bStep
		cOff := batch * m * n
		bMat := b[bOff : bOff+k*n]
		for i := 0; i < m; i++ {
			matmulRow(dst[cOff+i*n:cOff+(i+1)*n], a[aOff+i*k:aOff+(i+1)*k], bMat, k, n)
		}
	}, conf)
}
