package autodiff

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// BackwardCapable is satisfied by backends that carry a gradient tape.
// Backend implements it; training code in nn and optim accepts it so modules
// stay generic over the wrapped compute backend.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable).
func (b *Backend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t with respect to every recorded tensor,
// seeding the output gradient with ones.
//
// t must be the output of the last recorded operation, which is the natural
// case for a loss value computed at the end of a forward pass.
//
// Example:
//
//	ad := autodiff.New(cpu.New())
//	ad.Tape().StartRecording()
//	x := tensor.Ones[float32](tensor.Shape{2}, ad)
//	y := x.Mul(x) // y = x²
//	grads := autodiff.Backward(y, ad)
//	dx := grads[x.Raw()]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()

	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	outputGrad, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		data := outputGrad.AsFloat32()
		for i := range data {
			data[i] = 1.0
		}
	case tensor.Float64:
		data := outputGrad.AsFloat64()
		for i := range data {
			data[i] = 1.0
		}
	default:
		panic(fmt.Sprintf("backward: unsupported dtype %s (only float32/float64 supported)", t.DType()))
	}

	return tape.Backward(outputGrad, backend)
}
