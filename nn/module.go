// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/tensor"
)

// Module is the base interface for single-input neural network components.
//
// Every module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(512, 128, true, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, true, backend),
//	)
//
// The attention blocks in this package consume several tensors per call
// (query, key, value, mask) and therefore expose their own Forward
// signatures instead of implementing Module; they still provide
// Parameters for optimizers and StateDict for checkpoints.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] = nn.Module[B]

// StateDictModule is implemented by modules that can export and restore
// their parameters as a flat name -> raw tensor map. The checkpoint
// package persists these maps to disk.
type StateDictModule = nn.StateDictModule

// CollectStateDict merges a module's state dictionary into dst, with
// every key prefixed. Composite modules use it to build their own
// StateDict:
//
//	sd := make(map[string]*tensor.RawTensor)
//	nn.CollectStateDict(sd, "w_qs.", m.WQs()) // w_qs.weight, w_qs.bias
func CollectStateDict(dst map[string]*tensor.RawTensor, prefix string, m StateDictModule) {
	nn.CollectStateDict(dst, prefix, m)
}

// LoadModuleStateDict extracts the entries of src under prefix, strips
// the prefix, and loads them into the module. It is the inverse of
// CollectStateDict.
func LoadModuleStateDict(src map[string]*tensor.RawTensor, prefix string, m StateDictModule) error {
	return nn.LoadModuleStateDict(src, prefix, m)
}
