// Package optim implements the optimizers used to train Strand models.
//
// This package provides:
//   - Optimizer interface: the contract training loops program against
//   - SGD: stochastic gradient descent with optional momentum
//   - Adam: adaptive moment estimation with bias correction
//
// Optimizers consume the gradient map produced by autodiff.Backward and
// update parameters in place. Updates are plain buffer arithmetic: nothing
// an optimizer does belongs on a gradient tape, so training loops on an
// autodiff backend wrap Step in NoGrad or clear the tape between
// iterations.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR: 0.001,
//	}, backend)
//
//	for step := 0; step < steps; step++ {
//	    backend.Tape().Clear()
//	    backend.Tape().StartRecording()
//	    output := model.Forward(input)
//	    loss := mse.Forward(output, targets)
//	    grads := autodiff.Backward(loss, backend)
//
//	    backend.NoGrad(func() {
//	        optimizer.Step(grads)
//	    })
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/internal/tensor"
)

// Optimizer is the interface shared by all optimization algorithms.
type Optimizer interface {
	// Step applies one gradient update to every managed parameter.
	//
	// The map comes from autodiff.Backward: RawTensor identity keys to
	// gradient values. Parameters without an entry are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradient slot of every managed parameter.
	ZeroGrad()

	// GetLR returns the current learning rate, for monitoring and
	// scheduling.
	GetLR() float32
}

// getGradient looks up the gradient recorded for a parameter's tensor.
//
// Returns nil when the parameter took no part in the taped computation.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
