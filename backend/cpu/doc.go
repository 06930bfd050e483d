// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements the portable CPU backend with:
//   - Pure Go implementation (no CGO)
//   - All six element types (float32/64, int32/64, uint8, bool)
//   - Batch processing
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	import (
//	    "github.com/strand-ml/strand/backend/cpu"
//	    "github.com/strand-ml/strand/tensor"
//	    "github.com/strand-ml/strand/nn"
//	)
//
//	func main() {
//	    // Create CPU backend
//	    backend := cpu.New()
//
//	    // Use with tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	    z := x.Add(y)
//
//	    // Use with neural networks
//	    model := nn.NewLinear(512, 64, true, backend)
//	}
//
// # Performance
//
// Batch and row loops fan out across cores via an internal worker pool.
// For SIMD-accelerated matrix products and softmax, see the hwy package,
// which embeds this backend and overrides its hot paths.
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu
