package tensor

import "fmt"

// Shape holds the extent of each tensor dimension. A zero-length shape is a
// scalar.
type Shape []int

// NumElements returns the total element count. Scalars count as one.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate reports an error if any dimension is non-positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal reports whether two shapes have identical rank and extents.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// ComputeStrides returns row-major strides: stride[i] is the linear distance
// between consecutive indices of dimension i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes resolves two shapes under NumPy broadcasting rules:
// dimensions are compared right-to-left and are compatible when equal or
// when either is 1; missing leading dimensions count as 1.
//
// Returns the broadcast result shape, whether any stretching is required,
// and an error when the shapes are incompatible.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	stretched := false

	for i := 0; i < n; i++ {
		ai, bi := len(a)-1-i, len(b)-1-i

		aDim, bDim := 1, 1
		if ai >= 0 {
			aDim = a[ai]
		}
		if bi >= 0 {
			bDim = b[bi]
		}

		switch {
		case aDim == bDim:
			out[n-1-i] = aDim
		case aDim == 1:
			out[n-1-i] = bDim
			stretched = true
		case bDim == 1:
			out[n-1-i] = aDim
			stretched = true
		default:
			return nil, false, fmt.Errorf("shapes not broadcastable: %v vs %v (dimension %d: %d vs %d)",
				a, b, n-1-i, aDim, bDim)
		}
	}

	return out, stretched, nil
}
