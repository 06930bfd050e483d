package optim

import (
	"fmt"

	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// With momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Velocity buffers are allocated lazily, on the first step that delivers a
// gradient for a parameter.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend    B
}

// SGDConfig holds configuration for the SGD optimizer.
//
// Zero values take defaults: LR 0.01, Momentum 0 (plain SGD).
type SGDConfig struct {
	LR       float32 // learning rate
	Momentum float32 // momentum factor in [0, 1)
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend:    backend,
	}
}

// Step performs a single optimization step.
//
// Parameters absent from the gradient map are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		gradTensor := tensor.New[float32](grad, s.backend)

		if s.momentum == 0 {
			s.updateParameter(param, gradTensor)
		} else {
			s.updateParameterWithMomentum(param, gradTensor)
		}
	}
}

// updateParameter applies param -= lr * grad.
func (s *SGD[B]) updateParameter(param *nn.Parameter[B], grad *tensor.Tensor[float32, B]) {
	update := grad.MulScalar(s.lr)
	updated := param.Tensor().Sub(update)

	// Sub may or may not have reused the parameter's buffer; the copy makes
	// the in-place contract unconditional.
	copy(param.Tensor().Data(), updated.Data())
}

// updateParameterWithMomentum applies the momentum update, refreshing the
// parameter's velocity buffer.
func (s *SGD[B]) updateParameterWithMomentum(param *nn.Parameter[B], grad *tensor.Tensor[float32, B]) {
	velocity, exists := s.velocities[param]
	if !exists {
		velocity = tensor.Zeros[float32](param.Tensor().Shape(), s.backend)
		s.velocities[param] = velocity
	}

	// velocity = momentum * velocity + grad
	newVelocity := velocity.MulScalar(s.momentum).Add(grad)
	copy(velocity.Data(), newVelocity.Data())

	// param -= lr * velocity
	update := velocity.MulScalar(s.lr)
	updated := param.Tensor().Sub(update)
	copy(param.Tensor().Data(), updated.Data())
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate, for scheduling.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns the optimizer state for checkpointing.
//
// With momentum enabled the velocity buffers are exported under
// "velocity.{param_index}"; without momentum there is no state and the map
// is empty.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	if s.momentum == 0 {
		return stateDict
	}

	for i, param := range s.params {
		velocity, exists := s.velocities[param]
		if !exists {
			// No step has delivered a gradient for this parameter yet.
			continue
		}
		stateDict[fmt.Sprintf("velocity.%d", i)] = velocity.Raw()
	}

	return stateDict
}

// LoadStateDict restores velocity buffers saved by StateDict, copying the
// data into buffers the optimizer owns.
//
// Missing entries leave the corresponding velocity to lazy initialization;
// a shape mismatch is an error. With momentum disabled the input is
// ignored.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	s.velocities = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])

	for i, param := range s.params {
		raw, exists := stateDict[fmt.Sprintf("velocity.%d", i)]
		if !exists {
			continue
		}

		if !raw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("velocity shape mismatch for parameter %d (%s): expected %v, got %v",
				i, param.Name(), param.Tensor().Shape(), raw.Shape())
		}

		velocity := tensor.Zeros[float32](param.Tensor().Shape(), s.backend)
		copy(velocity.Data(), raw.AsFloat32())
		s.velocities[param] = velocity
	}

	return nil
}
