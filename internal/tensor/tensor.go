package tensor

import "fmt"

// Tensor pairs a RawTensor with the backend that computes on it.
// The element type T is enforced at compile time; the backend type B
// travels in the type so mixed-backend expressions do not compile.
//
// Example:
//
//	backend := cpu.New()
//	q := tensor.Randn[float32](tensor.Shape{2, 5, 64}, backend)
//	scores := q.BatchMatMul(q.Transpose(0, 2, 1))
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps an existing RawTensor. The caller asserts that the raw dtype
// matches T; backends uphold this for their own results.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a freshly allocated tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}

	var zero T
	raw, err := NewRaw(shape, inferDataType(zero), b.Device())
	if err != nil {
		return nil, err
	}

	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape { return t.raw.Shape() }

// DType returns the runtime element type.
func (t *Tensor[T, B]) DType() DataType { return t.raw.DType() }

// Device returns the tensor's device.
func (t *Tensor[T, B]) Device() Device { return t.raw.Device() }

// NumElements returns the total element count.
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }

// Raw returns the underlying RawTensor for backend-level code.
func (t *Tensor[T, B]) Raw() *RawTensor { return t.raw }

// Backend returns the compute backend this tensor is bound to.
func (t *Tensor[T, B]) Backend() B { return t.backend }

// Data returns a typed view of the underlying storage. Writes through the
// slice modify the tensor.
func (t *Tensor[T, B]) Data() []T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case float64:
		return any(t.raw.AsFloat64()).([]T)
	case int32:
		return any(t.raw.AsInt32()).([]T)
	case int64:
		return any(t.raw.AsInt64()).([]T)
	case uint8:
		return any(t.raw.AsUint8()).([]T)
	case bool:
		return any(t.raw.AsBool()).([]T)
	default:
		panic("unsupported element type")
	}
}

// Item returns the value of a single-element tensor.
func (t *Tensor[T, B]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item: tensor has %d elements, want 1 (shape %v)", t.NumElements(), t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given multi-dimensional index.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.flatIndex(indices)]
}

// Set stores value at the given multi-dimensional index.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.flatIndex(indices)] = value
}

func (t *Tensor[T, B]) flatIndex(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// Clone returns a tensor with an independent logical identity. The data
// buffer is shared copy-on-write, so this is cheap.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return &Tensor[T, B]{raw: t.raw.Clone(), backend: t.backend}
}

// String renders a short description, not the data.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}
