// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/tensor"
)

// Backend represents the portable CPU backend implementation.
//
// The CPU backend provides pure Go implementations of all tensor
// operations, with batch and row loops parallelized across cores.
type Backend = internalcpu.Backend

// Config controls how the backend parallelizes its kernels.
type Config = parallel.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/strand-ml/strand/backend/cpu"
//	    "github.com/strand-ml/strand/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit parallel
// configuration. Disable parallelism for deterministic single-threaded
// profiling:
//
//	backend := cpu.NewWithConfig(cpu.Config{Enabled: false})
func NewWithConfig(conf Config) *Backend {
	return internalcpu.NewWithConfig(conf)
}
