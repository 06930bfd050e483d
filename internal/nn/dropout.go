package nn

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/strand-ml/strand/internal/tensor"
)

// dropoutRand is the package-level random number generator for dropout
// masks. Forward passes are synchronous, so no locking is needed.
var dropoutRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// SetDropoutSeed seeds the dropout random number generator, making mask
// draws reproducible. Useful for testing.
func SetDropoutSeed(seed int64) {
	dropoutRand = rand.New(rand.NewSource(seed))
}

// Dropout randomly zeroes elements of its input with probability p during
// training, scaling the survivors by 1/(1-p) (inverted dropout) so the
// expected activation stays unchanged and inference needs no rescaling.
//
// The mask is applied through a plain elementwise multiply, so when the
// layer runs on an autodiff backend the tape records a single Mul and the
// backward pass routes gradients only through the kept elements.
//
// During inference (training=false) or with p=0 the input passes through
// unchanged.
//
// Example:
//
//	dropout := nn.NewDropout(0.1, backend)
//	h := dropout.Forward(h)     // training: ~10% of elements zeroed
//	dropout.SetTraining(false)
//	h = dropout.Forward(h)      // identity
type Dropout[B tensor.Backend] struct {
	p        float32
	training bool
	backend  B
}

// NewDropout creates a Dropout layer with drop probability p.
//
// Panics if p is outside [0, 1]. The layer starts in training mode,
// matching the convention that models are constructed for training and
// switched to inference explicitly.
func NewDropout[B tensor.Backend](p float32, backend B) *Dropout[B] {
	if p < 0 || p > 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1], got %v", p))
	}
	return &Dropout[B]{
		p:        p,
		training: true,
		backend:  backend,
	}
}

// SetTraining toggles between training mode (dropout active) and
// inference mode (identity).
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Training reports whether the layer is in training mode.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// P returns the drop probability.
func (d *Dropout[B]) P() float32 {
	return d.p
}

// Forward applies dropout to the input.
//
// In training mode each element is kept with probability 1-p and scaled
// by 1/(1-p); dropped elements become zero. Otherwise the input is
// returned unchanged.
func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return x
	}

	scale := 1.0 / (1.0 - d.p)
	mask := tensor.Zeros[float32](x.Shape(), d.backend)
	data := mask.Data()
	for i := range data {
		if dropoutRand.Float32() >= d.p {
			data[i] = scale
		}
	}

	// mask on the left: elementwise ops may reuse a uniquely owned left
	// operand's buffer, and the mask is ours to consume while x belongs
	// to the caller.
	return mask.Mul(x)
}

// Parameters returns an empty slice (Dropout has no trainable parameters).
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
