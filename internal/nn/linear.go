package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [..., in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the optional bias vector with shape [out_features]
//   - y is the output tensor with shape [..., out_features]
//
// Inputs of rank greater than 2 are flattened over their leading
// dimensions for the matrix multiply and restored afterwards, so the
// attention blocks can project [batch, seq, d_model] tensors directly.
//
// Weights default to Xavier/Glorot uniform initialization and biases to
// zeros; use NewLinearFromWeight when a layer needs a different scheme.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, true, backend)
//
//	input := tensor.Randn[float32](tensor.Shape{32, 784}, backend)
//	output := layer.Forward(input) // shape: [32, 128]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features], nil when bias is disabled
	backend     B
}

// NewLinear creates a new Linear layer.
//
// The weight is initialized with Xavier/Glorot uniform values and the
// bias, when enabled, with zeros.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, bias bool, backend B) *Linear[B] {
	weightShape := tensor.Shape{outFeatures, inFeatures}
	weight := XavierUniform(inFeatures, outFeatures, weightShape, backend)
	return NewLinearFromWeight(weight, bias, backend)
}

// NewLinearFromWeight creates a Linear layer around an already initialized
// weight tensor of shape [out_features, in_features].
//
// The attention projections use this to apply their scaled normal
// initialization:
//
//	std := math.Sqrt(2.0 / float64(dModel+dK))
//	w := nn.NormalInit(std, tensor.Shape{nHead * dK, dModel}, backend)
//	proj := nn.NewLinearFromWeight(w, true, backend)
func NewLinearFromWeight[B tensor.Backend](weight *tensor.Tensor[float32, B], bias bool, backend B) *Linear[B] {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear: weight must be 2D [out_features, in_features], got shape %v", shape))
	}
	outFeatures, inFeatures := shape[0], shape[1]

	l := &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		backend:     backend,
	}
	if bias {
		l.bias = NewParameter("bias", ZerosInit(tensor.Shape{outFeatures}, backend))
	}
	return l
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [..., in_features] with rank >= 2.
// Output shape: [..., out_features] with the same leading dimensions.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("Linear.Forward: expected input of rank >= 2, got shape %v", shape))
	}
	if shape[len(shape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[len(shape)-1]))
	}

	// Flatten leading dimensions so the multiply is a plain 2D MatMul.
	x := input
	flattened := len(shape) > 2
	if flattened {
		rows := 1
		for _, d := range shape[:len(shape)-1] {
			rows *= d
		}
		x = x.Reshape(rows, l.inFeatures)
	}

	output := x.MatMul(l.weight.Tensor().T())

	if l.bias != nil {
		output = output.Add(l.bias.Tensor())
	}

	if flattened {
		outShape := append(tensor.Shape{}, shape[:len(shape)-1]...)
		outShape = append(outShape, l.outFeatures)
		output = output.Reshape(outShape...)
	}

	return output
}

// Parameters returns [weight, bias], or [weight] when bias is disabled.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter, or nil when bias is disabled.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
	}
	if l.bias != nil {
		stateDict["bias"] = l.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	expectedWeight := tensor.Shape{l.outFeatures, l.inFeatures}
	if err := loadParam(stateDict, "weight", expectedWeight, l.weight); err != nil {
		return err
	}
	if l.bias != nil {
		if err := loadParam(stateDict, "bias", tensor.Shape{l.outFeatures}, l.bias); err != nil {
			return err
		}
	} else if _, ok := stateDict["bias"]; ok {
		return fmt.Errorf("unexpected bias in state dict: layer has no bias")
	}
	return nil
}

// loadParam copies a named float32 entry from a state dictionary into an
// existing parameter, validating shape and dtype.
func loadParam[B tensor.Backend](stateDict map[string]*tensor.RawTensor, name string, shape tensor.Shape, p *Parameter[B]) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !raw.Shape().Equal(shape) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, shape, raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
	}
	copy(p.Tensor().Data(), raw.AsFloat32())
	return nil
}
