package hwy

import (
	"fmt"

	hwynn "github.com/ajroetker/go-highway/hwy/contrib/nn"

	"github.com/strand-ml/strand/internal/tensor"
)

// Softmax computes softmax along dim. The last-dimension case, which is the
// one attention scoring hits, runs on go-highway's row-parallel kernel;
// other dims fall through to the cpu backend's strided implementation.
func (b *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim = ndim + dim
	}
	if ndim == 0 || dim != ndim-1 || !isFloat(x.DType()) {
		return b.Backend.Softmax(x, dim)
	}

	cols := shape[ndim-1]
	rows := x.NumElements() / cols

	result, err := tensor.NewRaw(shape, x.DType(), b.Device())
	if err != nil {
		panic(fmt.Sprintf("softmax: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		hwynn.ParallelSoftmax(b.pool, view[float32](x), view[float32](result), rows, cols)
	case tensor.Float64:
		hwynn.ParallelSoftmax(b.pool, view[float64](x), view[float64](result), rows, cols)
	}

	return result
}
