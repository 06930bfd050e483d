package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
// Output rows are computed in parallel when the backend configuration
// allows it.
func (c *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		matmul2D(view[float32](result), view[float32](a), view[float32](b), m, k, n, c.heavyConf())
	case tensor.Float64:
		matmul2D(view[float64](result), view[float64](a), view[float64](b), m, k, n, c.heavyConf())
	case tensor.Int32:
		matmul2D(view[int32](result), view[int32](a), view[int32](b), m, k, n, c.heavyConf())
	case tensor.Int64:
		matmul2D(view[int64](result), view[int64](a), view[int64](b), m, k, n, c.heavyConf())
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

// matmul2D computes C = A @ B with one goroutine-friendly task per output row.
func matmul2D[T numeric](dst, a, b []T, m, k, n int, conf parallel.Config) {
	parallel.For(m, func(i int) {
		matmulRow(dst[i*n:(i+1)*n], a[i*k:(i+1)*k], b, k, n)
	}, conf)
}

// matmulRow accumulates one output row in i-k-j order so the inner loop
// streams through a contiguous row of B.
func matmulRow[T numeric](out, aRow, b []T, k, n int) {
	for j := range out {
		out[j] = 0
	}
	for kk := 0; kk < k; kk++ {
		av := aRow[kk]
		bRow := b[kk*n : (kk+1)*n]
		for j, bv := range bRow {
			out[j] += av * bv
		}
	}
}
