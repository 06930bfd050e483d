// Package autodiff implements reverse-mode automatic differentiation as a
// backend decorator.
//
// Backend[B] wraps any tensor.Backend (cpu, hwy, ...) and records every
// operation it executes on a GradientTape. Calling Backward on the tape
// replays the recorded operations in reverse, applying each operation's
// chain-rule step and accumulating gradients per tensor.
//
// Architecture:
//   - Decorator: Backend[B] satisfies tensor.Backend by delegating every
//     forward computation to the wrapped backend.
//   - GradientTape: append-only log of operations from the forward pass.
//   - ops.Operation: one type per differentiable op, each knowing how to
//     turn an output gradient into input gradients.
//
// Usage:
//
//	ad := autodiff.New(cpu.New())
//	ad.Tape().StartRecording()
//
//	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, ad)
//	y := x.Mul(x) // y = x²
//
//	ad.Tape().StopRecording()
//	grads := ad.Tape().Backward(ones, ad) // dy/dx = 2x = 4
package autodiff

import (
	"github.com/strand-ml/strand/internal/autodiff/ops"
	"github.com/strand-ml/strand/internal/tensor"
)

// Backend wraps another backend and records operations for backpropagation.
//
// Every differentiable input is pinned with ForceNonUnique for the duration
// of the forward call. The wrapped backend reuses buffers for element-wise
// ops when an operand is uniquely owned; a tensor sitting on the tape is
// never uniquely owned in that sense, and pinning it forces the backend to
// allocate a fresh result instead of overwriting a value the backward pass
// still needs.
type Backend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates an autodiff backend wrapping the given backend.
// The tape starts out not recording.
func New[B tensor.Backend](backend B) *Backend[B] {
	return &Backend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for recording control and backward passes.
func (b *Backend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *Backend[B]) Inner() B {
	return b.inner
}

// NoGrad runs fn with recording suspended and restores the previous
// recording state afterwards. Nesting is safe. Use it for evaluation code
// that shares a backend with a training loop.
func (b *Backend[B]) NoGrad(fn func()) {
	wasRecording := b.tape.recording
	b.tape.recording = false
	defer func() {
		b.tape.recording = wasRecording
	}()
	fn()
}

// Name returns the backend name, e.g. "autodiff(cpu)".
func (b *Backend[B]) Name() string {
	return "autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device of the wrapped backend.
func (b *Backend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *Backend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Add(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(x, y, result))
	}

	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *Backend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Sub(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(x, y, result))
	}

	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *Backend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Mul(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(x, y, result))
	}

	return result
}

// Div performs element-wise division and records the operation.
func (b *Backend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Div(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivOp(x, y, result))
	}

	return result
}

// AddScalar adds a scalar to every element and records the operation.
func (b *Backend[B]) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.AddScalar(x, scalar)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddScalarOp(x, result))
	}

	return result
}

// MulScalar multiplies every element by a scalar and records the operation.
func (b *Backend[B]) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.MulScalar(x, scalar)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulScalarOp(x, result, scalar))
	}

	return result
}

// DivScalar divides every element by a scalar and records the operation.
func (b *Backend[B]) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.DivScalar(x, scalar)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivScalarOp(x, result, scalar))
	}

	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *Backend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.MatMul(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(x, y, result))
	}

	return result
}

// BatchMatMul performs batched matrix multiplication and records the
// operation, including the 2D-operand broadcast cases.
func (b *Backend[B]) BatchMatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.BatchMatMul(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewBatchMatMulOp(x, y, result))
	}

	return result
}

// Conv1D performs 1D convolution and records the operation.
func (b *Backend[B]) Conv1D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	defer input.ForceNonUnique()()
	defer kernel.ForceNonUnique()()

	result := b.inner.Conv1D(input, kernel, stride, padding)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConv1DOp(input, kernel, result, stride, padding))
	}

	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Recording matters even though reshape moves no values: a parameter reshaped
// for broadcasting gets its gradient computed for the reshaped tensor, and
// only the recorded op routes that gradient back to the original parameter.
func (b *Backend[B]) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Reshape(x, newShape)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(x, result))
	}

	return result
}

// Transpose permutes dimensions and records the operation.
//
// The backend materializes the transpose as a new tensor, so without a
// recorded op the gradient would stop at the transposed copy and never reach
// the original parameter. Default axes (full reversal) are resolved here so
// the recorded op always carries an explicit permutation.
func (b *Backend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	ndim := len(x.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	result := b.inner.Transpose(x, axes...)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTransposeOp(x, result, axes))
	}

	return result
}

// Unsqueeze inserts a size-1 dimension and records it as a reshape.
func (b *Backend[B]) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Unsqueeze(x, dim)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(x, result))
	}

	return result
}

// Squeeze removes a size-1 dimension and records it as a reshape.
func (b *Backend[B]) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Squeeze(x, dim)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(x, result))
	}

	return result
}

// Cat concatenates tensors along a dimension and records the operation.
func (b *Backend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	for _, t := range tensors {
		defer t.ForceNonUnique()()
	}

	result := b.inner.Cat(tensors, dim)

	if b.tape.IsRecording() {
		if len(tensors) > 0 && dim < 0 {
			dim = len(tensors[0].Shape()) + dim
		}
		inputs := make([]*tensor.RawTensor, len(tensors))
		copy(inputs, tensors)
		b.tape.Record(ops.NewCatOp(inputs, result, dim))
	}

	return result
}

// Expand broadcasts a tensor to a larger shape and records the operation.
func (b *Backend[B]) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Expand(x, newShape)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewExpandOp(x, result))
	}

	return result
}

// Exp computes the element-wise exponential and records the operation.
func (b *Backend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Exp(x)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewExpOp(x, result))
	}

	return result
}

// Sqrt computes the element-wise square root and records the operation.
func (b *Backend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Sqrt(x)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSqrtOp(x, result))
	}

	return result
}

// Rsqrt computes the element-wise reciprocal square root and records the
// operation.
func (b *Backend[B]) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Rsqrt(x)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewRsqrtOp(x, result))
	}

	return result
}

// ReLU applies the rectified linear unit and records the operation.
func (b *Backend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.ReLU(x)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReLUOp(x, result))
	}

	return result
}

// Softmax applies softmax along dim and records the operation. Negative dim
// is resolved here so the recorded op carries the concrete axis.
func (b *Backend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Softmax(x, dim)

	if b.tape.IsRecording() {
		if dim < 0 {
			dim = len(x.Shape()) + dim
		}
		b.tape.Record(ops.NewSoftmaxOp(x, result, dim))
	}

	return result
}

// Sum reduces all elements to a scalar and records the operation.
func (b *Backend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Sum(x)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSumOp(x, result))
	}

	return result
}

// SumDim sums along one dimension and records the operation.
func (b *Backend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.SumDim(x, dim, keepDim)

	if b.tape.IsRecording() {
		if dim < 0 {
			dim = len(x.Shape()) + dim
		}
		b.tape.Record(ops.NewSumDimOp(x, result, dim, keepDim))
	}

	return result
}

// MeanDim averages along one dimension and records the operation.
func (b *Backend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.MeanDim(x, dim, keepDim)

	if b.tape.IsRecording() {
		if dim < 0 {
			dim = len(x.Shape()) + dim
		}
		b.tape.Record(ops.NewMeanDimOp(x, result, dim, keepDim))
	}

	return result
}

// Where selects elements from x or y by condition and records the operation.
// The condition is not differentiated, so it is not pinned.
func (b *Backend[B]) Where(condition, x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Where(condition, x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewWhereOp(condition, x, y, result))
	}

	return result
}
