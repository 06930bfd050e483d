package ops

import "github.com/strand-ml/strand/internal/tensor"

// BatchMatMulOp represents a batched matrix multiplication: output = a @ b.
//
// Backward pass (per batch):
//   - d(A@B)/dA = outputGrad @ B^T
//   - d(A@B)/dB = A^T @ outputGrad
//
// A 2D operand was broadcast across the batch in the forward pass, so its
// gradient sums the per-batch contributions back into a single matrix.
type BatchMatMulOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor   // a @ b
}

// NewBatchMatMulOp creates a new BatchMatMulOp.
func NewBatchMatMulOp(a, b, output *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes gradients for batch matmul.
func (op *BatchMatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	var gradA, gradB *tensor.RawTensor

	// dL/dA = dL/dC @ B^T. If B is the broadcast 2D operand, BatchMatMul
	// broadcasts its transpose the same way.
	bT := swapLastTwo(b, backend)
	if len(a.Shape()) == 2 {
		// A was broadcast: sum the per-batch products down to A's shape.
		gradA = reduceLeading(backend.BatchMatMul(grad, bT), 2, backend)
	} else {
		gradA = backend.BatchMatMul(grad, bT)
	}

	// dL/dB = A^T @ dL/dC.
	if len(b.Shape()) == 2 {
		// B was broadcast across the batch. Flattening the batch into rows
		// turns the per-batch sum into one (k, batch*m) @ (batch*m, n)
		// product.
		aShape := a.Shape()
		k := aShape[len(aShape)-1]
		m := aShape[len(aShape)-2]
		n := b.Shape()[1]
		batch := a.NumElements() / (m * k)

		aFlat := backend.Reshape(a, tensor.Shape{batch * m, k})
		gradFlat := backend.Reshape(grad, tensor.Shape{batch * m, n})
		gradB = backend.MatMul(backend.Transpose(aFlat, 1, 0), gradFlat)
	} else {
		aT := swapLastTwo(a, backend)
		gradB = backend.BatchMatMul(aT, grad)
	}

	return []*tensor.RawTensor{gradA, gradB}
}

// Inputs returns the input tensors [a, b].
func (op *BatchMatMulOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor a @ b.
func (op *BatchMatMulOp) Output() *tensor.RawTensor {
	return op.output
}

// swapLastTwo transposes the matrix dimensions, leaving batch dimensions
// in place.
func swapLastTwo(t *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	ndim := len(t.Shape())
	axes := make([]int, ndim)
	for i := 0; i < ndim-2; i++ {
		axes[i] = i
	}
	axes[ndim-2] = ndim - 1
	axes[ndim-1] = ndim - 2
	return backend.Transpose(t, axes...)
}

// reduceLeading sums leading dimensions until only `keep` remain.
func reduceLeading(t *tensor.RawTensor, keep int, backend tensor.Backend) *tensor.RawTensor {
	result := t
	for len(result.Shape()) > keep {
		result = backend.SumDim(result, 0, false)
	}
	return result
}
