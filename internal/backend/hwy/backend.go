// Package hwy implements a SIMD-accelerated compute backend built on the
// go-highway vector library.
//
// The backend embeds the portable cpu backend and overrides the hot paths
// of the attention stack: matrix products route through go-highway's
// size-dispatched matmul kernels, softmax and ReLU through its row-parallel
// activation kernels. Everything else (broadcasting, shape plumbing,
// reductions) is promoted from the embedded cpu backend.
package hwy

import (
	"unsafe"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

// Backend accelerates tensor operations with go-highway SIMD kernels.
//
// A persistent worker pool feeds the vectorized kernels. Operations without
// a vectorized path, and float kernels invoked on integer tensors, fall
// through to the embedded cpu backend.
type Backend struct {
	*cpu.Backend

	pool *workerpool.Pool
}

// New creates a SIMD backend with a worker pool sized to GOMAXPROCS.
// Call Release when done to stop the pool's workers.
func New() *Backend {
	return &Backend{
		Backend: cpu.New(),
		pool:    workerpool.New(0),
	}
}

// Release stops the worker pool. The backend must not be used afterwards.
func (b *Backend) Release() {
	b.pool.Close()
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "hwy"
}

// view reinterprets the tensor buffer as a typed slice. Callers dispatch on
// DType() before instantiating, so the element type always matches.
func view[T tensor.DType](t *tensor.RawTensor) []T {
	data := t.Data()
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), t.NumElements())
}
