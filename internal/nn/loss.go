package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// MSELoss computes mean squared error:
//
//	loss = mean((predictions - targets)²)
//
// The reduction is expressed with tensor ops (Sub, Mul, Sum, MulScalar)
// rather than a host-side loop, so on an autodiff backend the whole loss is
// recorded on the tape and Backward produces gradients for everything the
// predictions depend on.
//
// Example:
//
//	mse := nn.NewMSELoss(backend)
//	backend.Tape().StartRecording()
//	predictions := model.Forward(input)
//	loss := mse.Forward(predictions, targets) // scalar
//	grads := autodiff.Backward(loss, backend)
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{backend: backend}
}

// Forward computes the loss over all elements.
//
// Predictions and targets must have identical shapes; the result is a
// rank-0 scalar tensor. Panics on shape mismatch.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSELoss: predictions shape %v does not match targets shape %v",
			predictions.Shape(), targets.Shape()))
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)
	return squared.Sum().MulScalar(1.0 / float32(predictions.NumElements()))
}

// Parameters returns an empty slice (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
