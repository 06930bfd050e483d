package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// NoDropout requests a dropout probability of exactly zero in a
// TransformerConfig, where the zero value would take the 0.1 default.
const NoDropout float32 = -1

// TransformerConfig defines the configuration for a TransformerUnit.
//
// Zero values take the defaults noted on each field, so
// TransformerConfig{} describes the full-size stack. Pass NoDropout to
// construct a unit whose dropout probability is zero even in training
// mode; SetTraining(false) disables dropout per phase instead.
type TransformerConfig struct {
	NLayers int     // number of encoder layers (default 2)
	NHead   int     // number of attention heads (default 8)
	DK      int     // per-head key/query width (default 64)
	DV      int     // per-head value width (default 64)
	DModel  int     // model feature width (default 512)
	DInner  int     // feed-forward hidden width (default 2048)
	Dropout float32 // dropout probability (default 0.1, NoDropout for 0)

	// ChainOutputs threads each layer's output into the next layer's
	// (q, k, v). Off by default: see the TransformerUnit documentation
	// for the default stacking behavior.
	ChainOutputs bool
}

// withDefaults returns a copy with zero-valued fields replaced by the
// documented defaults.
func (c TransformerConfig) withDefaults() TransformerConfig {
	if c.NLayers == 0 {
		c.NLayers = 2
	}
	if c.NHead == 0 {
		c.NHead = 8
	}
	if c.DK == 0 {
		c.DK = 64
	}
	if c.DV == 0 {
		c.DV = 64
	}
	if c.DModel == 0 {
		c.DModel = 512
	}
	if c.DInner == 0 {
		c.DInner = 2048
	}
	if c.Dropout == 0 {
		c.Dropout = 0.1
	}
	if c.Dropout < 0 {
		c.Dropout = 0
	}
	return c
}

// validate panics on negative or out-of-range configuration values.
func (c TransformerConfig) validate() {
	if c.NLayers < 0 || c.NHead < 0 || c.DK < 0 || c.DV < 0 || c.DModel < 0 || c.DInner < 0 {
		panic(fmt.Sprintf("TransformerUnit: config dimensions must not be negative, got %+v", c))
	}
	if c.Dropout < 0 || c.Dropout > 1 {
		panic(fmt.Sprintf("TransformerUnit: dropout must be in [0, 1], got %v", c.Dropout))
	}
}

// TransformerUnit stacks NLayers independently parameterized
// EncoderLayers and applies a shared final LayerNorm (eps=1e-6) to the
// last layer's output.
//
// Stacking semantics: by default every layer is invoked with the
// original (q, k, v) and mask, so the layers are independent re-readings
// of the same input rather than a pipeline, and only the last layer's
// output survives into the final normalization. Intermediate outputs are
// discarded. With Config.ChainOutputs set, each layer's output is
// instead threaded into the next layer as its query, key and value
// (self-attention chaining, which requires len_q == len_k for the mask
// to stay valid past the first layer).
//
// Example:
//
//	unit := nn.NewTransformerUnit(nn.TransformerConfig{}, backend) // full-size defaults
//	unit.SetTraining(false)
//	output := unit.Forward(q, k, v, nil) // [batch, len_q, 512]
type TransformerUnit[B tensor.Backend] struct {
	config     TransformerConfig
	layerStack []*EncoderLayer[B]
	layerNorm  *LayerNorm[B]
	backend    B
}

// NewTransformerUnit creates a TransformerUnit from the config, applying
// defaults to zero-valued fields and panicking on invalid values.
func NewTransformerUnit[B tensor.Backend](config TransformerConfig, backend B) *TransformerUnit[B] {
	config = config.withDefaults()
	config.validate()

	layers := make([]*EncoderLayer[B], config.NLayers)
	for i := range layers {
		layers[i] = NewEncoderLayer(config.DModel, config.DInner, config.NHead, config.DK, config.DV, config.Dropout, backend)
	}

	return &TransformerUnit[B]{
		config:     config,
		layerStack: layers,
		layerNorm:  NewLayerNorm(config.DModel, 1e-6, backend),
		backend:    backend,
	}
}

// Forward runs the encoder stack and returns the normalized output of
// the last layer, shape [batch, len_q, d_model].
//
// Shapes:
//   - q: [batch, len_q, d_model]
//   - k, v: [batch, len_k, d_model]
//   - mask: optional bool tensor [batch, len_q, len_k]; true suppresses
func (t *TransformerUnit[B]) Forward(
	q, k, v *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	output, _ := t.run(q, k, v, mask)
	return output
}

// ForwardWithWeights is Forward plus the attention weights of the last
// layer, shape [n_head*batch, len_q, len_k]. Weights of earlier layers
// are not retained.
func (t *TransformerUnit[B]) ForwardWithWeights(
	q, k, v *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return t.run(q, k, v, mask)
}

func (t *TransformerUnit[B]) run(
	q, k, v *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	var output, attn *tensor.Tensor[float32, B]
	for _, layer := range t.layerStack {
		if t.config.ChainOutputs && output != nil {
			output, attn = layer.Forward(output, output, output, mask)
		} else {
			output, attn = layer.Forward(q, k, v, mask)
		}
	}
	return t.layerNorm.Forward(output), attn
}

// Config returns the effective configuration, with defaults applied.
func (t *TransformerUnit[B]) Config() TransformerConfig {
	return t.config
}

// Layer returns the encoder layer at the given index.
func (t *TransformerUnit[B]) Layer(index int) *EncoderLayer[B] {
	if index < 0 || index >= len(t.layerStack) {
		panic(fmt.Sprintf("TransformerUnit.Layer: index %d out of range [0, %d)", index, len(t.layerStack)))
	}
	return t.layerStack[index]
}

// NumLayers returns the number of stacked encoder layers.
func (t *TransformerUnit[B]) NumLayers() int {
	return len(t.layerStack)
}

// SetTraining toggles training mode for every layer's dropout.
func (t *TransformerUnit[B]) SetTraining(training bool) {
	for _, layer := range t.layerStack {
		layer.SetTraining(training)
	}
}

// Parameters returns the parameters of every layer plus the final
// LayerNorm.
func (t *TransformerUnit[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 16*len(t.layerStack)+2)
	for _, layer := range t.layerStack {
		params = append(params, layer.Parameters()...)
	}
	params = append(params, t.layerNorm.Parameters()...)
	return params
}

// StateDict returns all parameters keyed "layer_stack.{i}.{name}" plus
// the final "layer_norm.{name}".
func (t *TransformerUnit[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, layer := range t.layerStack {
		CollectStateDict(stateDict, fmt.Sprintf("layer_stack.%d.", i), layer)
	}
	CollectStateDict(stateDict, "layer_norm.", t.layerNorm)
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (t *TransformerUnit[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, layer := range t.layerStack {
		if err := LoadModuleStateDict(stateDict, fmt.Sprintf("layer_stack.%d.", i), layer); err != nil {
			return err
		}
	}
	return LoadModuleStateDict(stateDict, "layer_norm.", t.layerNorm)
}
