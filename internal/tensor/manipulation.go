package tensor

// Reshape returns a tensor with the same elements and a new shape.
// Element counts must match.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Transpose permutes dimensions. With no axes it reverses them all, so for
// 2D tensors it is the ordinary transpose.
//
// Example:
//
//	x := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)
//	y := x.Transpose(2, 0, 1) // shape [4, 2, 3]
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// T transposes a 2D tensor. Panics on other ranks.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// Unsqueeze inserts a size-1 dimension at dim. Negative dims count from the
// end of the new shape.
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Unsqueeze(t.raw, dim), t.backend)
}

// Squeeze removes the size-1 dimension at dim. Panics if that dimension is
// larger than 1.
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Squeeze(t.raw, dim), t.backend)
}

// Expand broadcasts size-1 dimensions up to the target shape without
// changing the element type or rank compatibility rules.
func (t *Tensor[T, B]) Expand(shape Shape) *Tensor[T, B] {
	return New[T, B](t.backend.Expand(t.raw, shape), t.backend)
}

// Cat concatenates tensors along dim. All inputs must agree on every other
// dimension.
//
// Example:
//
//	heads := tensor.Cat([]*Tensor[float32, B]{m, m}, 0) // stack two copies
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}
	if len(tensors) == 1 {
		return tensors[0].Clone()
	}

	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	b := tensors[0].backend
	return New[T, B](b.Cat(raws, dim), b)
}

// Where builds a tensor taking elements from x where cond is true and from
// y elsewhere. The three shapes broadcast together.
func Where[T DType, B Backend](cond *Tensor[bool, B], x, y *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](x.backend.Where(cond.raw, x.raw, y.raw), x.backend)
}
