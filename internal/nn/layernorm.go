package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// rowNormalizer is implemented by backends with a fused layer
// normalization kernel over the trailing dimension.
type rowNormalizer interface {
	NormalizeRows(x, gamma, beta *tensor.RawTensor, epsilon float64) *tensor.RawTensor
}

// LayerNorm applies Layer Normalization over the last dimension.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Where:
//   - gamma is the learnable scale parameter [d_model]
//   - beta is the learnable shift parameter [d_model]
//   - mean and variance are computed along the last dimension
//   - eps is a small value to avoid division by zero
//
// The attention and feed-forward blocks normalize their residual sums with
// eps=1e-5; the final normalization of a TransformerUnit uses eps=1e-6.
//
// When the backend provides a fused row-normalization kernel (the hwy
// backend does), Forward uses it directly. Otherwise the normalization is
// composed from elementwise primitives, which keeps it differentiable
// through the autodiff tape.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	layernorm := nn.NewLayerNorm(512, 1e-5, backend)
//	output := layernorm.Forward(hiddenStates) // [..., 512] -> [..., 512]
type LayerNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B] // learnable scale [d_model]
	Beta    *Parameter[B] // learnable shift [d_model]
	Epsilon float32       // numerical stability constant
	backend B
}

// NewLayerNorm creates a new LayerNorm layer.
//
// normalizedShape is the size of the last (feature) dimension. Gamma is
// initialized to ones, beta to zeros.
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return &LayerNorm[B]{
		Gamma:   NewParameter("gamma", OnesInit(tensor.Shape{normalizedShape}, backend)),
		Beta:    NewParameter("beta", ZerosInit(tensor.Shape{normalizedShape}, backend)),
		Epsilon: epsilon,
		backend: backend,
	}
}

// Forward applies LayerNorm to the input tensor.
//
// Shapes:
//   - input: [..., d_model]
//   - output: [..., d_model]
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if nr, ok := any(l.backend).(rowNormalizer); ok {
		raw := nr.NormalizeRows(x.Raw(), l.Gamma.Tensor().Raw(), l.Beta.Tensor().Raw(), float64(l.Epsilon))
		return tensor.New[float32, B](raw, l.backend)
	}

	// Composed path:
	//  1. mean = mean(x) along the last dimension (keepdim)
	//  2. centered = x - mean
	//  3. variance = mean(centered²) along the last dimension (keepdim)
	//  4. normed = centered * rsqrt(variance + eps)
	//  5. output = gamma * normed + beta
	mean := x.MeanDim(-1, true)
	centered := x.Sub(mean)

	// Pin centered across the squaring: elementwise ops may reuse a
	// uniquely owned left operand's buffer, and centered is needed
	// again for the normalization below.
	release := centered.Raw().ForceNonUnique()
	variance := centered.Mul(centered).MeanDim(-1, true)
	release()

	inv := variance.AddScalar(l.Epsilon).Rsqrt()
	normed := centered.Mul(inv)

	// gamma/beta are [d_model]; broadcasting aligns them with the
	// trailing dimension of the input.
	return normed.Mul(l.Gamma.Tensor()).Add(l.Beta.Tensor())
}

// Parameters returns the learnable parameters (gamma and beta).
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Gamma, l.Beta}
}

// StateDict returns a map of parameter names to raw tensors.
func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma": l.Gamma.Tensor().Raw(),
		"beta":  l.Beta.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (l *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	shape := l.Gamma.Tensor().Shape()
	if err := loadParam(stateDict, "gamma", shape, l.Gamma); err != nil {
		return err
	}
	return loadParam(stateDict, "beta", shape, l.Beta)
}
