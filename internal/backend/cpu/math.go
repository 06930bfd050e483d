package cpu

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// Exp computes element-wise exponential: exp(x).
func (c *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("exp", x, math.Exp)
}

// Sqrt computes element-wise square root: sqrt(x).
// Negative inputs panic rather than produce NaN.
func (c *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("sqrt", x, func(v float64) float64 {
		if v < 0 {
			panic(fmt.Sprintf("sqrt: negative value %f", v))
		}
		return math.Sqrt(v)
	})
}

// Rsqrt computes element-wise reciprocal square root: 1/sqrt(x).
// This is the hot path of layer normalization.
func (c *Backend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("rsqrt", x, func(v float64) float64 {
		if v <= 0 {
			panic(fmt.Sprintf("rsqrt: non-positive value %f", v))
		}
		return 1 / math.Sqrt(v)
	})
}

// ReLU computes element-wise max(x, 0).
func (c *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("relu", x, func(v float64) float64 {
		return math.Max(v, 0)
	})
}

func (c *Backend) unary(name string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := view[float32](x)
		dst := view[float32](result)
		for i, v := range src {
			dst[i] = float32(f(float64(v)))
		}
	case tensor.Float64:
		src := view[float64](x)
		dst := view[float64](result)
		for i, v := range src {
			dst[i] = f(v)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, x.DType()))
	}

	return result
}
