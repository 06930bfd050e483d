package ops

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Conv1DOp records a 1D convolution for autodiff.
//
// Forward: output = Conv1D(input, kernel, stride, padding)
//   - input  (B, C_in, L)
//   - kernel (C_out, C_in, K)
//   - output (B, C_out, L_out)
//
// Backward (stride=1, padding=0):
//   - d_input:  full correlation of d_output with the kernel flipped along
//     its taps and swapped in its channel dims, itself a Conv1D with
//     padding K-1.
//   - d_kernel: correlation of input with d_output, computed as a Conv1D
//     with batch and channel axes exchanged.
//
// Strided or padded convolutions are not differentiable here; recording one
// and calling Backward panics. The feed-forward blocks that train through
// this op use kernel size 1 with stride 1 and no padding.
type Conv1DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv1DOp creates a new Conv1D operation.
func NewConv1DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv1DOp {
	return &Conv1DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Inputs returns the input tensors [input, kernel].
func (op *Conv1DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *Conv1DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for the convolution input and kernel.
func (op *Conv1DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	if op.stride != 1 || op.padding != 0 {
		panic(fmt.Sprintf("conv1d backward: only stride=1, padding=0 supported, got stride=%d padding=%d", op.stride, op.padding))
	}

	k := op.kernel.Shape()[2]

	// d_input = Conv1D(d_output, flip(kernel)^(channel swap), 1, K-1).
	// Shapes: (B, C_out, L_out) conv (C_in, C_out, K) -> (B, C_in, L).
	swapped := backend.Transpose(op.kernel, 1, 0, 2)
	flipped := flipTaps(swapped)
	inputGrad := backend.Conv1D(outputGrad, flipped, 1, k-1)

	// d_kernel = Conv1D(input^(batch<->channel), d_output^(batch<->channel)).
	// Shapes: (C_in, B, L) conv (C_out, B, L_out) -> (C_in, C_out, K),
	// transposed back to (C_out, C_in, K).
	inputSwapped := backend.Transpose(op.input, 1, 0, 2)
	gradSwapped := backend.Transpose(outputGrad, 1, 0, 2)
	kernelGrad := backend.Conv1D(inputSwapped, gradSwapped, 1, 0)
	kernelGrad = backend.Transpose(kernelGrad, 1, 0, 2)

	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

// flipTaps reverses a kernel tensor along its last (tap) dimension.
func flipTaps(kernel *tensor.RawTensor) *tensor.RawTensor {
	shape := kernel.Shape()
	k := shape[len(shape)-1]
	if k == 1 {
		return kernel
	}

	flipped, err := tensor.NewRaw(shape, kernel.DType(), kernel.Device())
	if err != nil {
		panic(fmt.Sprintf("conv1d backward: failed to create flipped kernel: %v", err))
	}

	switch kernel.DType() {
	case tensor.Float32:
		flipRows(flipped.AsFloat32(), kernel.AsFloat32(), k)
	case tensor.Float64:
		flipRows(flipped.AsFloat64(), kernel.AsFloat64(), k)
	default:
		panic(fmt.Sprintf("conv1d backward: unsupported dtype %s", kernel.DType()))
	}

	return flipped
}

func flipRows[T float32 | float64](dst, src []T, k int) {
	for row := 0; row < len(src); row += k {
		for i := 0; i < k; i++ {
			dst[row+i] = src[row+k-1-i]
		}
	}
}
