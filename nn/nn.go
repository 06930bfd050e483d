// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/internal/tensor"
)

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(512, 128, true, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, bias bool, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, bias, backend)
}

// NewLinearFromWeight creates a linear layer around an existing weight
// tensor of shape [out_features, in_features]. Useful for custom
// initialization schemes and for loading pre-trained weights.
func NewLinearFromWeight[B tensor.Backend](weight *tensor.Tensor[float32, B], bias bool, backend B) *Linear[B] {
	return nn.NewLinearFromWeight(weight, bias, backend)
}

// Conv1D represents a 1D convolutional layer.
type Conv1D[B tensor.Backend] = nn.Conv1D[B]

// NewConv1D creates a new 1D convolutional layer.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv1D(512, 1024, 1, 1, 0, true, backend)  // pointwise conv
func NewConv1D[B tensor.Backend](
	inChannels, outChannels, kernelSize int,
	stride, padding int,
	useBias bool,
	backend B,
) *Conv1D[B] {
	return nn.NewConv1D(inChannels, outChannels, kernelSize, stride, padding, useBias, backend)
}

// Normalization and regularization

// LayerNorm represents Layer Normalization.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a new LayerNorm layer.
//
// Example:
//
//	backend := cpu.New()
//	norm := nn.NewLayerNorm(512, 1e-5, backend)
//	output := norm.Forward(input)  // [..., 512] -> [..., 512]
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(normalizedShape, epsilon, backend)
}

// Dropout randomly zeroes elements during training and scales the
// survivors by 1/(1-p). In inference mode it is the identity.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a new dropout layer with drop probability p.
func NewDropout[B tensor.Backend](p float32, backend B) *Dropout[B] {
	return nn.NewDropout(p, backend)
}

// SetDropoutSeed seeds the shared dropout mask generator. Tests use it
// to make training-mode forward passes reproducible.
func SetDropoutSeed(seed int64) {
	nn.SetDropoutSeed(seed)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Loss Functions

// MSELoss represents the mean squared error loss for regression.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates a new MSE loss function.
//
// Example:
//
//	backend := cpu.New()
//	criterion := nn.NewMSELoss(backend)
//	loss := criterion.Forward(predictions, targets)
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// Sequential

// Sequential represents a sequential container of modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new sequential model.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(512, 128, true, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, true, backend),
//	)
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Initialization functions

// NormalInit initializes a tensor with values drawn from N(0, std^2).
func NormalInit[B tensor.Backend](std float64, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.NormalInit(std, shape, backend)
}

// XavierNormal initializes a tensor using Xavier/Glorot normal
// initialization: N(0, 2/(fan_in+fan_out)).
//
// Example:
//
//	backend := cpu.New()
//	weights := nn.XavierNormal(512, 128, tensor.Shape{128, 512}, backend)
func XavierNormal[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.XavierNormal(fanIn, fanOut, shape, backend)
}

// XavierUniform initializes a tensor using Xavier/Glorot uniform
// initialization: U(-a, a) with a = sqrt(6/(fan_in+fan_out)).
func XavierUniform[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.XavierUniform(fanIn, fanOut, shape, backend)
}

// ZerosInit initializes a tensor with zeros (for biases).
func ZerosInit[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.ZerosInit(shape, backend)
}

// OnesInit initializes a tensor with ones (for normalization gains).
func OnesInit[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.OnesInit(shape, backend)
}
