package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// PaddingMask builds an attention mask that suppresses padded key
// positions.
//
// lengths holds the true (unpadded) length of every sequence in the
// batch. The result has shape [batch, lq, lk] with true at every key
// position j >= lengths[b], marking it for suppression before softmax.
//
// Example:
//
//	// Two sequences padded to length 5, with true lengths 3 and 5.
//	mask := nn.PaddingMask([]int{3, 5}, 5, 5, backend) // [2, 5, 5]
func PaddingMask[B tensor.Backend](lengths []int, lq, lk int, backend B) *tensor.Tensor[bool, B] {
	if len(lengths) == 0 {
		panic("PaddingMask: lengths must not be empty")
	}
	if lq <= 0 || lk <= 0 {
		panic(fmt.Sprintf("PaddingMask: invalid mask size lq=%d, lk=%d", lq, lk))
	}

	mask := tensor.Zeros[bool](tensor.Shape{len(lengths), lq, lk}, backend)
	data := mask.Data()
	for b, n := range lengths {
		if n < 0 || n > lk {
			panic(fmt.Sprintf("PaddingMask: length %d out of range [0, %d]", n, lk))
		}
		for q := 0; q < lq; q++ {
			row := (b*lq + q) * lk
			for j := n; j < lk; j++ {
				data[row+j] = true
			}
		}
	}
	return mask
}

// SubsequentMask builds a causal attention mask of shape [1, l, l] with
// true above the diagonal, so each position can only attend to itself and
// earlier positions.
//
// The leading dimension is 1; expand it across the batch before handing
// the mask to a block that folds heads into the batch dimension:
//
//	mask := nn.SubsequentMask(seqLen, backend).Expand(tensor.Shape{batch, seqLen, seqLen})
func SubsequentMask[B tensor.Backend](l int, backend B) *tensor.Tensor[bool, B] {
	if l <= 0 {
		panic(fmt.Sprintf("SubsequentMask: invalid length %d", l))
	}

	mask := tensor.Zeros[bool](tensor.Shape{1, l, l}, backend)
	data := mask.Data()
	for i := 0; i < l; i++ {
		for j := i + 1; j < l; j++ {
			data[i*l+j] = true
		}
	}
	return mask
}
