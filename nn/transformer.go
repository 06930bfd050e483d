// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/tensor"
)

// NoDropout requests a dropout probability of exactly zero in a
// TransformerConfig, where the zero value would take the 0.1 default.
const NoDropout = nn.NoDropout

// TransformerConfig configures a TransformerUnit.
//
// Zero values take the defaults noted on each field, so
// TransformerConfig{} describes the full-size stack: 2 layers, 8 heads,
// d_k = d_v = 64, d_model = 512, d_inner = 2048, dropout 0.1. Pass
// NoDropout to fix the probability at zero.
type TransformerConfig = nn.TransformerConfig

// TransformerUnit stacks independently parameterized EncoderLayers and
// applies a shared final LayerNorm to the last layer's output.
//
// Stacking semantics: by default every layer is invoked with the
// original (q, k, v) and mask, so the layers are independent re-readings
// of the same input rather than a pipeline, and only the last layer's
// output survives into the final normalization. With Config.ChainOutputs set,
// each layer's output is instead threaded into the next layer as its
// query, key and value.
type TransformerUnit[B tensor.Backend] = nn.TransformerUnit[B]

// NewTransformerUnit creates a TransformerUnit from the config, applying
// defaults to zero-valued fields and panicking on invalid values.
//
// Example:
//
//	backend := cpu.New()
//	unit := nn.NewTransformerUnit(nn.TransformerConfig{
//	    NLayers: 3, NHead: 8, DK: 64, DV: 64,
//	    DModel: 512, DInner: 1024, Dropout: 0.1,
//	}, backend)
//	unit.SetTraining(false)
//	output := unit.Forward(q, k, v, nil) // [batch, len_q, 512]
func NewTransformerUnit[B tensor.Backend](config TransformerConfig, backend B) *TransformerUnit[B] {
	return nn.NewTransformerUnit(config, backend)
}
