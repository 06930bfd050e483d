// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides type-safe tensor operations for the Strand ML framework.
//
// # Overview
//
// Tensors are the fundamental data structure in Strand. This package provides:
//   - Generic type-safe tensors (Tensor[T, B])
//   - NumPy-style broadcasting
//   - Zero-copy operations where possible
//   - Backend abstraction (portable CPU and SIMD)
//
// # Basic Usage
//
//	import (
//	    "github.com/strand-ml/strand/tensor"
//	    "github.com/strand-ml/strand/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Create tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//
//	    // Tensor operations
//	    z := x.Add(y)
//	    result := x.MatMul(y.T())
//	}
//
// # Supported Data Types
//
// The tensor package supports the following data types via the DType constraint:
//   - float32, float64 (floating-point)
//   - int32, int64 (signed integers)
//   - uint8 (unsigned integers, useful for images)
//   - bool (boolean masks)
//
// # Backend Selection
//
// Every tensor is bound to a backend at creation time:
//   - backend/cpu: portable pure-Go kernels, runs everywhere
//   - backend/hwy: SIMD-accelerated kernels via go-highway
//   - autodiff: gradient-recording decorator around either backend
//
// # Broadcasting
//
// Tensor operations follow NumPy broadcasting rules:
//
//	a := tensor.Zeros[float32](tensor.Shape{3, 1}, backend)     // (3, 1)
//	b := tensor.Ones[float32](tensor.Shape{3, 4}, backend)      // (3, 4)
//	c := a.Add(b)                                                // (3, 4)
//
// # Memory Management
//
// Tensors use zero-copy operations where possible. The underlying data is
// reference-counted with copy-on-write semantics: Clone is O(1) and a buffer
// is only copied when a shared tensor is mutated.
//
// # Available Operations
//
// Scalar operations:
//
//	y := x.MulScalar(2.0)    // Multiply by scalar
//	y := x.AddScalar(1.0)    // Add scalar
//	y := x.DivScalar(2.0)    // Divide by scalar
//
// Math operations:
//
//	y := x.Exp()             // Exponential
//	y := x.Sqrt()            // Square root
//	y := x.Rsqrt()           // Reciprocal square root
//	y := x.ReLU()            // Rectified linear unit
//	y := x.Softmax(dim)      // Softmax along dimension
//
// Shape operations:
//
//	y := x.Reshape(6, 4)     // New view with the same elements
//	y := x.Transpose(0, 2, 1)
//	y := x.Unsqueeze(1)      // Insert a size-1 dimension
//	y := x.Squeeze(1)        // Drop a size-1 dimension
//
// See method documentation for the full list of operations.
package tensor
