package ops

import "github.com/strand-ml/strand/internal/tensor"

// AddScalarOp represents addition of a constant: output = x + c.
//
// Backward pass:
//   - d(x+c)/dx = 1, so grad_x = outputGrad
type AddScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{input: x, output: output}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Clone()}
}

// Inputs returns the input tensor [x].
func (op *AddScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor x + c.
func (op *AddScalarOp) Output() *tensor.RawTensor {
	return op.output
}

// MulScalarOp represents multiplication by a constant: output = x * c.
//
// Backward pass:
//   - d(x*c)/dx = c, so grad_x = outputGrad * c
type MulScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar any
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar any) *MulScalarOp {
	return &MulScalarOp{input: x, output: output, scalar: scalar}
}

// Backward scales the gradient by the recorded constant.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// Inputs returns the input tensor [x].
func (op *MulScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor x * c.
func (op *MulScalarOp) Output() *tensor.RawTensor {
	return op.output
}

// DivScalarOp represents division by a constant: output = x / c.
//
// Backward pass:
//   - d(x/c)/dx = 1/c, so grad_x = outputGrad / c
type DivScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar any
}

// NewDivScalarOp creates a new DivScalarOp.
func NewDivScalarOp(x, output *tensor.RawTensor, scalar any) *DivScalarOp {
	return &DivScalarOp{input: x, output: output, scalar: scalar}
}

// Backward divides the gradient by the recorded constant.
func (op *DivScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.DivScalar(outputGrad, op.scalar)}
}

// Inputs returns the input tensor [x].
func (op *DivScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor x / c.
func (op *DivScalarOp) Output() *tensor.RawTensor {
	return op.output
}
