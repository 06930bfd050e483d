package hwy

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/activation"

	"github.com/strand-ml/strand/internal/tensor"
)

// ReLU clamps negative entries to zero. Float tensors run on go-highway's
// vectorized kernel, split into rows by the trailing dimension so large
// activations parallelize across the pool.
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	if !isFloat(x.DType()) {
		return b.Backend.ReLU(x)
	}

	shape := x.Shape()
	cols := 1
	if ndim := len(shape); ndim > 0 {
		cols = shape[ndim-1]
	}
	rows := x.NumElements() / cols

	result, err := tensor.NewRaw(shape, x.DType(), b.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		activation.ParallelReLU(b.pool, view[float32](x), view[float32](result), rows, cols)
	case tensor.Float64:
		activation.ParallelReLU(b.pool, view[float64](x), view[float64](result), rows, cols)
	}

	return result
}
