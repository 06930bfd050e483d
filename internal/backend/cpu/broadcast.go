package cpu

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// broadcastStrides returns strides for reading a tensor of shape inShape as
// if it had outShape. Dimensions of size 1, and dimensions padded on the
// left, get stride 0 so every output coordinate maps to the single stored
// element.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// broadcastFlatIndex maps a flat output index to the flat input index using
// broadcast-adjusted strides.
func broadcastFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}

// broadcastIndex maps output coordinates to the flat index of a possibly
// lower-rank operand, aligning shapes from the right.
func broadcastIndex(coords []int, shape tensor.Shape, strides []int) int {
	idx := 0
	offset := len(coords) - len(shape)
	for i, size := range shape {
		dimIdx := coords[offset+i]
		if size == 1 {
			dimIdx = 0
		}
		idx += dimIdx * strides[i]
	}
	return idx
}
