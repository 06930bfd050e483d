package tensor

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// buffer is a reference-counted byte store shared between RawTensor headers.
// Sharing makes Clone O(1); the count tells backends when an in-place update
// is safe (sole owner) and lets the autodiff layer forbid it.
type buffer struct {
	data     []byte
	refCount atomic.Int32
}

func newBuffer(size int) *buffer {
	b := &buffer{data: make([]byte, size)}
	b.refCount.Store(1)
	return b
}

func (b *buffer) addRef() { b.refCount.Add(1) }

func (b *buffer) release() {
	if b.refCount.Add(-1) == 0 {
		b.data = nil
	}
}

func (b *buffer) isUnique() bool { return b.refCount.Load() == 1 }

// RawTensor is the untyped tensor representation every backend operates on:
// a shape, runtime element type, device tag, and a shared data buffer.
// The typed Tensor[T, B] wrapper layers compile-time safety on top.
type RawTensor struct {
	buf    *buffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw allocates a zero-initialized RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		buf:    newBuffer(shape.NumElements() * dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape. Callers must not mutate it.
func (r *RawTensor) Shape() Shape { return r.shape }

// Strides returns the row-major memory strides.
func (r *RawTensor) Strides() []int { return r.stride }

// DType returns the runtime element type.
func (r *RawTensor) DType() DataType { return r.dtype }

// Device returns where the tensor lives.
func (r *RawTensor) Device() Device { return r.device }

// NumElements returns the total element count.
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }

// ByteSize returns the buffer size in bytes.
func (r *RawTensor) ByteSize() int { return r.NumElements() * r.dtype.Size() }

// Data exposes the raw backing bytes. Mutations are visible to
// every header sharing the buffer.
func (r *RawTensor) Data() []byte { return r.buf.data }

// AsFloat32 views the data as []float32. Panics on dtype mismatch.
func (r *RawTensor) AsFloat32() []float32 {
	r.checkDType(Float32)
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsFloat64 views the data as []float64. Panics on dtype mismatch.
func (r *RawTensor) AsFloat64() []float64 {
	r.checkDType(Float64)
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsInt32 views the data as []int32. Panics on dtype mismatch.
func (r *RawTensor) AsInt32() []int32 {
	r.checkDType(Int32)
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsInt64 views the data as []int64. Panics on dtype mismatch.
func (r *RawTensor) AsInt64() []int64 {
	r.checkDType(Int64)
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsUint8 views the data as []uint8. Panics on dtype mismatch.
func (r *RawTensor) AsUint8() []uint8 {
	r.checkDType(Uint8)
	return r.buf.data
}

// AsBool views the data as []bool. Panics on dtype mismatch.
func (r *RawTensor) AsBool() []bool {
	r.checkDType(Bool)
	return unsafe.Slice((*bool)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

func (r *RawTensor) checkDType(want DataType) {
	if r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
}

// Clone returns a new header sharing the same buffer (copy-on-write:
// backends allocate fresh storage before writing unless they are the sole
// owner).
func (r *RawTensor) Clone() *RawTensor {
	r.buf.addRef()
	return &RawTensor{
		buf:    r.buf,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Release drops this header's reference; the buffer is freed when the last
// reference goes away.
func (r *RawTensor) Release() { r.buf.release() }

// IsUnique reports whether this header is the buffer's only owner, in which
// case a backend may overwrite it in place.
func (r *RawTensor) IsUnique() bool { return r.buf.isUnique() }

// ForceNonUnique pins the buffer so in-place fast paths are disabled until
// the returned func is called (use defer). The autodiff layer relies on this
// to keep recorded inputs intact.
func (r *RawTensor) ForceNonUnique() func() {
	r.buf.addRef()
	return func() { r.buf.release() }
}
