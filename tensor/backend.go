// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/strand-ml/strand/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: Portable pure-Go implementation
//   - backend/hwy: SIMD-accelerated implementation via go-highway
//
// Decorator backends for additional functionality:
//   - autodiff: Automatic differentiation (wraps any backend)
//
// Binary element-wise operations broadcast following NumPy rules.
// Operations panic on shape or dtype violations; those are programming
// errors, not recoverable conditions.
//
// Example:
//
//	import (
//	    "github.com/strand-ml/strand/tensor"
//	    "github.com/strand-ml/strand/backend/cpu"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Uses backend.Add under the hood
type Backend interface {
	// Element-wise binary operations.
	Add(a, b *RawTensor) *RawTensor // Element-wise addition.
	Sub(a, b *RawTensor) *RawTensor // Element-wise subtraction.
	Mul(a, b *RawTensor) *RawTensor // Element-wise multiplication.
	Div(a, b *RawTensor) *RawTensor // Element-wise division.

	// Scalar operations (element-wise with scalar).
	AddScalar(x *RawTensor, scalar any) *RawTensor // Add scalar.
	MulScalar(x *RawTensor, scalar any) *RawTensor // Multiply by scalar.
	DivScalar(x *RawTensor, scalar any) *RawTensor // Divide by scalar.

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor      // Matrix multiplication: (M,K) @ (K,N) -> (M,N).
	BatchMatMul(a, b *RawTensor) *RawTensor // Batched matrix multiplication for 3D tensors.

	// Convolutional operations.
	Conv1D(input, kernel *RawTensor, stride, padding int) *RawTensor // 1D convolution.

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor // Reshape tensor.
	Transpose(t *RawTensor, axes ...int) *RawTensor  // Transpose dimensions.
	Unsqueeze(x *RawTensor, dim int) *RawTensor      // Add dimension of size 1.
	Squeeze(x *RawTensor, dim int) *RawTensor        // Remove dimension of size 1.
	Cat(tensors []*RawTensor, dim int) *RawTensor    // Concatenate along dimension.
	Expand(x *RawTensor, shape Shape) *RawTensor     // Broadcast to shape.

	// Math operations (element-wise).
	Exp(x *RawTensor) *RawTensor   // Exponential.
	Sqrt(x *RawTensor) *RawTensor  // Square root.
	Rsqrt(x *RawTensor) *RawTensor // Reciprocal square root (1/sqrt(x)).

	// Activation functions.
	ReLU(x *RawTensor) *RawTensor             // Rectified linear unit.
	Softmax(x *RawTensor, dim int) *RawTensor // Softmax along dimension.

	// Reduction operations.
	Sum(x *RawTensor) *RawTensor                            // Total sum (scalar result).
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // Sum along dimension.
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // Mean along dimension.

	// Indexing operations.
	Where(condition, x, y *RawTensor) *RawTensor // Conditional element selection.

	// Metadata.
	Name() string   // Backend name (e.g., "cpu", "hwy").
	Device() Device // Device type.
}

// Compile-time check that internal Backend implements public Backend.
var _ Backend = tensor.Backend(nil)
