package ops

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// WhereOp represents a conditional selection: output = where(cond, x, y).
//
// Forward: output[i] = x[i] if cond[i] else y[i]
//
// Backward:
//
//	grad_x = where(cond, grad_out, 0)
//	grad_y = where(cond, 0, grad_out)
//
// The condition tensor has no gradient (it's boolean).
type WhereOp struct {
	condition *tensor.RawTensor // bool tensor
	x         *tensor.RawTensor // "true" branch values
	y         *tensor.RawTensor // "false" branch values
	output    *tensor.RawTensor // result tensor
}

// NewWhereOp creates a new where operation.
func NewWhereOp(condition, x, y, output *tensor.RawTensor) *WhereOp {
	return &WhereOp{
		condition: condition,
		x:         x,
		y:         y,
		output:    output,
	}
}

// Inputs returns the input tensors (x and y).
// Note: condition is not included as it has no gradient (boolean).
func (op *WhereOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.x, op.y}
}

// Output returns the output tensor.
func (op *WhereOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for x and y.
//
//	grad_x = where(cond, grad_out, 0)  -- gradient flows only where cond is true
//	grad_y = where(cond, 0, grad_out)  -- gradient flows only where cond is false
//
// When x or y was broadcast in the forward pass (a masked fill uses a
// single-element y), the gated gradient is reduced back to that input's
// shape.
func (op *WhereOp) Backward(gradOutput *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// NewRaw zero-initializes, so this is the "blocked branch" value.
	zeros, err := tensor.NewRaw(gradOutput.Shape(), gradOutput.DType(), backend.Device())
	if err != nil {
		panic("WhereOp.Backward: failed to create zeros tensor: " + err.Error())
	}

	// Gradient flows to x only where the condition held, to y elsewhere.
	gradX := backend.Where(op.condition, gradOutput, zeros)
	gradY := backend.Where(op.condition, zeros, gradOutput)

	gradX = reduceBroadcast(gradX, op.x.Shape(), backend)
	gradY = reduceBroadcast(gradY, op.y.Shape(), backend)

	return []*tensor.RawTensor{gradX, gradY}
}
