// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package hwy

import (
	internalhwy "github.com/strand-ml/strand/internal/backend/hwy"
	"github.com/strand-ml/strand/tensor"
)

// Backend represents the SIMD-accelerated backend implementation.
//
// It embeds the portable CPU backend and routes matrix products, softmax
// and ReLU through go-highway's vectorized kernels. Operations without a
// vectorized path fall through to the portable implementation, so the two
// backends are interchangeable.
type Backend = internalhwy.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new SIMD backend with a worker pool sized to GOMAXPROCS.
// Call Release when the backend is no longer needed to stop the pool.
//
// Example:
//
//	import (
//	    "github.com/strand-ml/strand/backend/hwy"
//	    "github.com/strand-ml/strand/tensor"
//	)
//
//	func main() {
//	    backend := hwy.New()
//	    defer backend.Release()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
func New() *Backend {
	return internalhwy.New()
}
