package nn

import (
	"math"
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// NormalInit fills a new tensor with values drawn from N(0, std²).
//
// The attention projections use this with std = sqrt(2/(d_model+d_k)),
// which keeps the variance of attention scores stable across widths.
func NormalInit[B tensor.Backend](std float64, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32(rand.NormFloat64() * std)
	}
	return t
}

// XavierNormal initializes a weight tensor from N(0, 2/(fanIn+fanOut)).
func XavierNormal[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return NormalInit[B](math.Sqrt(2.0/float64(fanIn+fanOut)), shape, backend)
}

// XavierUniform initializes a weight tensor from U(-a, a) with
// a = sqrt(6/(fanIn+fanOut)).
//
// This is the default weight initialization for Linear and Conv1D layers.
func XavierUniform[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// ZerosInit allocates a zero-filled parameter tensor. Biases use this.
func ZerosInit[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// OnesInit allocates a one-filled parameter tensor. LayerNorm gain uses this.
func OnesInit[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
