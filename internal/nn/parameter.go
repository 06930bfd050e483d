package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that are updated during training. They typically
// represent weights and biases of layers. The gradient slot starts out nil;
// training loops fill it via SetGrad after running the autodiff tape and
// optimizers consume it in Step.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // nil until a backward pass attaches one
type Parameter[B tensor.Backend] struct {
	name   string                     // parameter name (e.g. "weight", "gamma")
	tensor *tensor.Tensor[float32, B] // the parameter tensor
	grad   *tensor.Tensor[float32, B] // gradient, nil before the first backward pass
}

// NewParameter creates a new trainable parameter.
//
// The tensor should already be initialized (see the init helpers in this
// package). The gradient slot stays nil until SetGrad is called.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil if none has been attached yet.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad attaches a gradient tensor.
//
// Training loops call this with the entry the autodiff tape computed for
// this parameter's raw tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient slot.
//
// Call before each training iteration so stale gradients from a previous
// step are never applied twice.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}
