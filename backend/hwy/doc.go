// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package hwy provides a SIMD-accelerated backend built on go-highway.
//
// # Overview
//
// The backend embeds the portable cpu backend and overrides the hot paths
// of the attention stack:
//   - MatMul and BatchMatMul route through go-highway's size-dispatched
//     matmul kernels
//   - Softmax and ReLU route through its row-parallel activation kernels
//
// Everything else (broadcasting, shape plumbing, reductions) is promoted
// from the embedded cpu backend, so results are numerically compatible and
// the two backends can be swapped without touching model code.
//
// # Basic Usage
//
//	import (
//	    "github.com/strand-ml/strand/backend/hwy"
//	    "github.com/strand-ml/strand/nn"
//	)
//
//	func main() {
//	    backend := hwy.New()
//	    defer backend.Release()
//
//	    model := nn.NewTransformerUnit(nn.TransformerConfig{
//	        NLayers: 3, NHead: 8, DK: 64, DV: 64,
//	        DModel: 512, DInner: 1024,
//	    }, backend)
//	    _ = model
//	}
//
// # Lifecycle
//
// New starts a persistent worker pool that feeds the vectorized kernels.
// Release stops it; the backend must not be used afterwards. The portable
// cpu backend has no such requirement.
package hwy
