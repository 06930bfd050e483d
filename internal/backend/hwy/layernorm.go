package hwy

import (
	"fmt"

	hwynn "github.com/ajroetker/go-highway/hwy/contrib/nn"

	"github.com/strand-ml/strand/internal/tensor"
)

// NormalizeRows applies layer normalization over the trailing dimension of x:
//
//	out = (x - mean) / sqrt(variance + epsilon) * gamma + beta
//
// with mean and variance computed per row. gamma and beta must match the
// trailing dimension; either may be nil to skip the affine transform.
//
// This is not part of the tensor.Backend interface. Modules discover it
// through a capability check and use it as a fused inference path instead of
// composing the normalization from elementwise primitives.
func (b *Backend) NormalizeRows(x, gamma, beta *tensor.RawTensor, epsilon float64) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if ndim == 0 {
		panic("normalizerows: input must have at least 1 dimension")
	}
	if !isFloat(x.DType()) {
		panic(fmt.Sprintf("normalizerows: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	normSize := shape[ndim-1]
	for _, p := range []*tensor.RawTensor{gamma, beta} {
		if p == nil {
			continue
		}
		if p.DType() != x.DType() {
			panic(fmt.Sprintf("normalizerows: dtype mismatch %s vs %s", x.DType(), p.DType()))
		}
		if p.NumElements() != normSize {
			panic(fmt.Sprintf("normalizerows: affine parameter has %d elements, want %d", p.NumElements(), normSize))
		}
	}

	result, err := tensor.NewRaw(shape, x.DType(), b.Device())
	if err != nil {
		panic(fmt.Sprintf("normalizerows: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		hwynn.ParallelLayerNorm(b.pool, view[float32](x), view[float32](result), normSize,
			optional[float32](gamma), optional[float32](beta), float32(epsilon))
	case tensor.Float64:
		hwynn.ParallelLayerNorm(b.pool, view[float64](x), view[float64](result), normSize,
			optional[float64](gamma), optional[float64](beta), epsilon)
	}

	return result
}

func optional[T tensor.DType](t *tensor.RawTensor) []T {
	if t == nil {
		return nil
	}
	return view[T](t)
}
