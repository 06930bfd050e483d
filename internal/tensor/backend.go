package tensor

// Backend is the full operation surface a compute engine must provide.
// The framework ships two implementations (portable CPU and SIMD) plus the
// autodiff decorator, which wraps either of them and satisfies the same
// interface so modules never know whether gradients are being recorded.
//
// Binary element-wise operations broadcast with NumPy rules. Operations
// panic on shape or dtype violations; they are programming errors, not
// recoverable conditions.
type Backend interface {
	// Element-wise arithmetic.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar arithmetic. The scalar must match the tensor's dtype
	// (float32 for Float32 tensors, and so on).
	AddScalar(x *RawTensor, scalar any) *RawTensor
	MulScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Linear algebra.
	// MatMul: (M,K) @ (K,N) -> (M,N).
	// BatchMatMul: (B,M,K) @ (B,K,N) -> (B,M,N); a 2D operand is
	// broadcast across the batch.
	// Conv1D: input (B,Cin,L), kernel (Cout,Cin,K) -> (B,Cout,Lout).
	MatMul(a, b *RawTensor) *RawTensor
	BatchMatMul(a, b *RawTensor) *RawTensor
	Conv1D(input, kernel *RawTensor, stride, padding int) *RawTensor

	// Shape manipulation.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor
	Squeeze(x *RawTensor, dim int) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor

	// Element-wise math and activations.
	Exp(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Where selects from x where condition is true, else from y.
	// condition must be Bool; all three broadcast together.
	Where(condition, x, y *RawTensor) *RawTensor

	// Name identifies the backend ("cpu", "hwy", "autodiff(...)").
	Name() string

	// Device reports where this backend allocates tensors.
	Device() Device
}
