package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// PositionwiseFeedForward applies the same two-layer network to every
// sequence position independently:
//
//	FFN(x) = LayerNorm(Dropout(W2(ReLU(W1(x)))) + x)
//
// W1 and W2 are 1D convolutions with kernel size 1 (d_in -> d_hid and
// d_hid -> d_in), which is exactly a per-position linear map. Convolutions
// expect channels before length, so the input is transposed from
// [batch, len, d_in] to [batch, d_in, len] around them. The residual and
// the final LayerNorm (eps=1e-5) keep the block shape-preserving.
//
// Example:
//
//	ffn := nn.NewPositionwiseFeedForward(512, 2048, 0.1, backend)
//	output := ffn.Forward(x) // [batch, len, 512] -> [batch, len, 512]
type PositionwiseFeedForward[B tensor.Backend] struct {
	w1        *Conv1D[B] // position-wise expansion [d_hid, d_in, 1]
	w2        *Conv1D[B] // position-wise projection [d_in, d_hid, 1]
	layerNorm *LayerNorm[B]
	dropout   *Dropout[B]
	backend   B
}

// NewPositionwiseFeedForward creates a feed-forward block with input
// width dIn and hidden width dHid.
func NewPositionwiseFeedForward[B tensor.Backend](dIn, dHid int, dropout float32, backend B) *PositionwiseFeedForward[B] {
	if dIn <= 0 || dHid <= 0 {
		panic(fmt.Sprintf("PositionwiseFeedForward: widths must be positive, got d_in=%d d_hid=%d", dIn, dHid))
	}
	return &PositionwiseFeedForward[B]{
		w1:        NewConv1D(dIn, dHid, 1, 1, 0, true, backend),
		w2:        NewConv1D(dHid, dIn, 1, 1, 0, true, backend),
		layerNorm: NewLayerNorm(dIn, 1e-5, backend),
		dropout:   NewDropout(dropout, backend),
		backend:   backend,
	}
}

// Forward applies the feed-forward block.
//
// Input and output shape: [batch, len, d_in].
func (f *PositionwiseFeedForward[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(x.Shape()) != 3 {
		panic(fmt.Sprintf("PositionwiseFeedForward.Forward: expected 3D input [batch, len, d_in], got shape %v", x.Shape()))
	}
	residual := x

	output := x.Transpose(0, 2, 1) // [batch, d_in, len]
	output = f.w1.Forward(output)  // [batch, d_hid, len]
	output = output.ReLU()
	output = f.w2.Forward(output)       // [batch, d_in, len]
	output = output.Transpose(0, 2, 1)  // [batch, len, d_in]
	output = f.dropout.Forward(output)
	output = output.Add(residual)
	return f.layerNorm.Forward(output)
}

// SetTraining toggles training mode for the block's dropout.
func (f *PositionwiseFeedForward[B]) SetTraining(training bool) {
	f.dropout.SetTraining(training)
}

// Parameters returns the convolution weights and biases plus the
// LayerNorm gain and shift.
func (f *PositionwiseFeedForward[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 6)
	params = append(params, f.w1.Parameters()...)
	params = append(params, f.w2.Parameters()...)
	params = append(params, f.layerNorm.Parameters()...)
	return params
}

// StateDict returns all parameters keyed by layer name.
func (f *PositionwiseFeedForward[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	CollectStateDict(stateDict, "w_1.", f.w1)
	CollectStateDict(stateDict, "w_2.", f.w2)
	CollectStateDict(stateDict, "layer_norm.", f.layerNorm)
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (f *PositionwiseFeedForward[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := LoadModuleStateDict(stateDict, "w_1.", f.w1); err != nil {
		return err
	}
	if err := LoadModuleStateDict(stateDict, "w_2.", f.w2); err != nil {
		return err
	}
	return LoadModuleStateDict(stateDict, "layer_norm.", f.layerNorm)
}
