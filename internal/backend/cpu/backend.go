// Package cpu implements the portable pure-Go compute backend.
package cpu

import (
	"unsafe"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// Backend executes tensor operations with portable Go kernels. Batch and row
// loops fan out through internal/parallel; disable it in the config for
// deterministic single-threaded profiling.
type Backend struct {
	device tensor.Device
	conf   parallel.Config
}

// New creates a CPU backend with the default parallel configuration.
func New() *Backend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(conf parallel.Config) *Backend {
	return &Backend{
		device: tensor.CPU,
		conf:   conf,
	}
}

// Name returns the backend name.
func (c *Backend) Name() string {
	return "cpu"
}

// Device returns the compute device.
func (c *Backend) Device() tensor.Device {
	return c.device
}

// heavyConf relaxes the chunk floor for loops whose iterations are whole
// matrix rows or batch slices rather than scalar elements.
func (c *Backend) heavyConf() parallel.Config {
	conf := c.conf
	conf.MinChunkSize = 1
	return conf
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
