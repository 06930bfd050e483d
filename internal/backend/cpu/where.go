package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Where performs conditional element selection: output[i] = condition[i] ?
// x[i] : y[i]. The condition must be Bool; all three tensors broadcast
// together.
//
// This is the primitive behind attention masking, where suppressed positions
// are replaced with a large negative score before softmax.
func (c *Backend) Where(condition, x, y *tensor.RawTensor) *tensor.RawTensor {
	if condition.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", condition.DType()))
	}
	if x.DType() != y.DType() {
		panic(fmt.Sprintf("where: x and y must have same dtype, got %s and %s", x.DType(), y.DType()))
	}

	partial, _, err := tensor.BroadcastShapes(condition.Shape(), x.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: failed to broadcast condition and x: %v", err))
	}
	outShape, _, err := tensor.BroadcastShapes(partial, y.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: failed to broadcast with y: %v", err))
	}

	result, err := tensor.NewRaw(outShape, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("where: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		whereKernel(view[float32](result), condition, view[float32](x), view[float32](y), outShape, x.Shape(), y.Shape())
	case tensor.Float64:
		whereKernel(view[float64](result), condition, view[float64](x), view[float64](y), outShape, x.Shape(), y.Shape())
	case tensor.Int32:
		whereKernel(view[int32](result), condition, view[int32](x), view[int32](y), outShape, x.Shape(), y.Shape())
	case tensor.Int64:
		whereKernel(view[int64](result), condition, view[int64](x), view[int64](y), outShape, x.Shape(), y.Shape())
	case tensor.Uint8:
		whereKernel(view[uint8](result), condition, view[uint8](x), view[uint8](y), outShape, x.Shape(), y.Shape())
	default:
		panic(fmt.Sprintf("where: unsupported dtype %s", x.DType()))
	}

	return result
}

func whereKernel[T tensor.DType](dst []T, condition *tensor.RawTensor, xData, yData []T,
	outShape, xShape, yShape tensor.Shape) {
	cond := view[bool](condition)
	condShape := condition.Shape()

	outStrides := outShape.ComputeStrides()
	condStrides := condShape.ComputeStrides()
	xStrides := xShape.ComputeStrides()
	yStrides := yShape.ComputeStrides()

	coords := make([]int, len(outShape))
	for i := range dst {
		temp := i
		for d := 0; d < len(outShape); d++ {
			coords[d] = temp / outStrides[d]
			temp %= outStrides[d]
		}

		if cond[broadcastIndex(coords, condShape, condStrides)] {
			dst[i] = xData[broadcastIndex(coords, xShape, xStrides)]
		} else {
			dst[i] = yData[broadcastIndex(coords, yShape, yStrides)]
		}
	}
}
