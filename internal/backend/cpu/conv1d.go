package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// Conv1D performs 1D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, length]
// Kernel shape: [out_channels, in_channels, kernel_size]
// Output shape: [batch, out_channels, out_length]
//
// out_length = (length + 2*padding - kernel_size)/stride + 1
//
// Each batch element is lowered to a column matrix so the convolution becomes
// one matrix product per batch:
//
//	[C_out, C_in*K] @ [C_in*K, L_out] -> [C_out, L_out]
//
// Batches run in parallel.
func (c *Backend) Conv1D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inShape := input.Shape()
	kShape := kernel.Shape()

	if len(inShape) != 3 {
		panic(fmt.Sprintf("conv1d: input must be 3D [N,C,L], got %dD", len(inShape)))
	}
	if len(kShape) != 3 {
		panic(fmt.Sprintf("conv1d: kernel must be 3D [C_out,C_in,K], got %dD", len(kShape)))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv1d: stride must be positive, got %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv1d: padding must be non-negative, got %d", padding))
	}
	if input.DType() != kernel.DType() {
		panic(fmt.Sprintf("conv1d: dtype mismatch %s vs %s", input.DType(), kernel.DType()))
	}

	n, cin, l := inShape[0], inShape[1], inShape[2]
	cout, cinK, k := kShape[0], kShape[1], kShape[2]

	if cin != cinK {
		panic(fmt.Sprintf("conv1d: input channels %d != kernel channels %d", cin, cinK))
	}

	lout := (l+2*padding-k)/stride + 1
	if lout <= 0 {
		panic(fmt.Sprintf("conv1d: invalid output length %d (check stride/padding)", lout))
	}

	output, err := tensor.NewRaw(tensor.Shape{n, cout, lout}, input.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("conv1d: failed to create output tensor: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		conv1d(view[float32](output), view[float32](input), view[float32](kernel),
			n, cin, l, cout, k, lout, stride, padding, c.heavyConf())
	case tensor.Float64:
		conv1d(view[float64](output), view[float64](input), view[float64](kernel),
			n, cin, l, cout, k, lout, stride, padding, c.heavyConf())
	default:
		panic(fmt.Sprintf("conv1d: unsupported dtype %s", input.DType()))
	}

	return output
}

func conv1d[T floats](dst, input, kernel []T, n, cin, l, cout, k, lout, stride, padding int, conf parallel.Config) {
	colWidth := cin * k

	parallel.For(n, func(batch int) {
		// Per-batch column buffer keeps the loop goroutine-safe.
		colBuf := make([]T, lout*colWidth)
		im2col1D(colBuf, input[batch*cin*l:(batch+1)*cin*l], cin, l, k, lout, stride, padding)

		// colBuf rows hold one receptive field each, so output[co, p] is a
		// plain dot product between a kernel row and a column-buffer row.
		out := dst[batch*cout*lout : (batch+1)*cout*lout]
		for co := 0; co < cout; co++ {
			kRow := kernel[co*colWidth : (co+1)*colWidth]
			for p := 0; p < lout; p++ {
				col := colBuf[p*colWidth : (p+1)*colWidth]
				var sum T
				for i, kv := range kRow {
					sum += kv * col[i]
				}
				out[co*lout+p] = sum
			}
		}
	}, conf)
}

// im2col1D expands input windows into rows of the column buffer. Positions
// outside [0, L) read as zero (padding).
func im2col1D[T floats](colBuf, input []T, cin, l, k, lout, stride, padding int) {
	colWidth := cin * k

	for p := 0; p < lout; p++ {
		start := p*stride - padding
		bufIdx := p * colWidth

		for ci := 0; ci < cin; ci++ {
			base := ci * l
			for kk := 0; kk < k; kk++ {
				pos := start + kk
				if pos >= 0 && pos < l {
					colBuf[bufIdx] = input[base+pos]
				} else {
					colBuf[bufIdx] = 0
				}
				bufIdx++
			}
		}
	}
}
