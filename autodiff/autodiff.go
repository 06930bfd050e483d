// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides automatic differentiation capabilities.
//
// This package implements reverse-mode automatic differentiation
// (backpropagation) using a gradient tape. It wraps any backend to add
// autodiff capabilities.
//
// Example:
//
//	import (
//	    "github.com/strand-ml/strand/autodiff"
//	    "github.com/strand-ml/strand/backend/cpu"
//	    "github.com/strand-ml/strand/tensor"
//	)
//
//	func main() {
//	    // Wrap CPU backend with autodiff
//	    base := cpu.New()
//	    backend := autodiff.New(base)
//
//	    // Use for training
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := x.Add(x)  // Operations recorded on tape
//
//	    // Compute gradients
//	    grads := autodiff.Backward(y, backend)
//	    _ = grads
//	}
package autodiff

import (
	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/tensor"
)

// Backend is the autodiff-enabled backend. It satisfies tensor.Backend, so
// modules never know whether gradients are being recorded.
type Backend[B tensor.Backend] = autodiff.Backend[B]

// New creates a new autodiff backend wrapping the given backend.
// The tape starts out not recording.
//
// Example:
//
//	base := cpu.New()
//	backend := autodiff.New(base)
//	backend.Tape().StartRecording()
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable is the interface for backends that support
// backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients of t with respect to every tensor on the
// tape, returning a map keyed by raw tensor identity.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
