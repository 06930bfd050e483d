package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Conv1D is a 1D convolutional layer.
//
// Performs convolution: output = Conv1D(input, weight) + bias
//
// Input shape:  [batch, in_channels, length]
// Weight shape: [out_channels, in_channels, kernel_size]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_length]
//
// Where:
//
//	out_length = (length + 2*padding - kernel_size) / stride + 1
//
// The position-wise feed-forward block uses kernel_size=1, which makes the
// convolution an independent linear map at every sequence position.
//
// Example:
//
//	conv := nn.NewConv1D(512, 2048, 1, 1, 0, true, backend)
//	input := tensor.Randn[float32](tensor.Shape{2, 512, 25}, backend)
//	output := conv.Forward(input) // [2, 2048, 25]
type Conv1D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B] // [out_channels, in_channels, kernel_size]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv1D creates a new 1D convolutional layer with Xavier initialization.
//
// Initialization:
//   - Weights: Xavier/Glorot uniform with fan_in = in_channels*kernel_size
//     and fan_out = out_channels*kernel_size
//   - Bias: zeros
func NewConv1D[B tensor.Backend](
	inChannels, outChannels, kernelSize int,
	stride, padding int,
	useBias bool,
	backend B,
) *Conv1D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv1d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv1d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv1d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv1d: invalid padding %d", padding))
	}

	weightShape := tensor.Shape{outChannels, inChannels, kernelSize}
	fanIn := inChannels * kernelSize
	fanOut := outChannels * kernelSize
	weight := NewParameter("weight", XavierUniform(fanIn, fanOut, weightShape, backend))

	var bias *Parameter[B]
	if useBias {
		bias = NewParameter("bias", ZerosInit(tensor.Shape{outChannels}, backend))
	}

	return &Conv1D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      weight,
		bias:        bias,
		backend:     backend,
	}
}

// Forward computes the 1D convolution of the input.
//
// Input shape: [batch, in_channels, length].
// Output shape: [batch, out_channels, out_length].
func (c *Conv1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("Conv1D.Forward: expected 3D input [batch, channels, length], got shape %v", shape))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("Conv1D.Forward: expected %d input channels, got %d", c.inChannels, shape[1]))
	}

	output := input.Conv1D(c.weight.Tensor(), c.stride, c.padding)

	if c.bias != nil {
		// [out_channels] -> [out_channels, 1] so the bias broadcasts over
		// the length dimension of [batch, out_channels, out_length].
		output = output.Add(c.bias.Tensor().Reshape(c.outChannels, 1))
	}

	return output
}

// Parameters returns [weight, bias], or [weight] when bias is disabled.
func (c *Conv1D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the weight parameter.
func (c *Conv1D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil when bias is disabled.
func (c *Conv1D[B]) Bias() *Parameter[B] {
	return c.bias
}

// StateDict returns a map of parameter names to raw tensors.
func (c *Conv1D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
	}
	if c.bias != nil {
		stateDict["bias"] = c.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (c *Conv1D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	expectedWeight := tensor.Shape{c.outChannels, c.inChannels, c.kernelSize}
	if err := loadParam(stateDict, "weight", expectedWeight, c.weight); err != nil {
		return err
	}
	if c.bias != nil {
		if err := loadParam(stateDict, "bias", tensor.Shape{c.outChannels}, c.bias); err != nil {
			return err
		}
	}
	return nil
}
