// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Attention: ScaledDotProductAttention, MultiHeadAttention
//   - Transformer blocks: PositionwiseFeedForward, EncoderLayer, TransformerUnit
//   - Layers: Linear, Conv1D, LayerNorm, Dropout, PositionalEncoding
//   - Activations: ReLU
//   - Loss functions: MSELoss
//   - Masks: PaddingMask, SubsequentMask
//   - Utilities: Sequential, Module interface, Parameter
//   - Initialization: NormalInit, XavierNormal, XavierUniform, ZerosInit, OnesInit
//
// # Basic Usage
//
//	import (
//	    "github.com/strand-ml/strand/nn"
//	    "github.com/strand-ml/strand/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Build an encoder stack
//	    unit := nn.NewTransformerUnit(nn.TransformerConfig{
//	        NLayers: 2, NHead: 8, DK: 64, DV: 64,
//	        DModel: 512, DInner: 2048, Dropout: 0.1,
//	    }, backend)
//	    unit.SetTraining(false)
//
//	    // Forward pass (self-attention)
//	    output := unit.Forward(x, x, x, nil)
//	}
//
// # Attention
//
// The attention blocks take query, key and value tensors plus an optional
// boolean mask where true marks positions to suppress:
//
//	mha := nn.NewMultiHeadAttention(8, 512, 64, 64, 0.1, backend)
//	mask := nn.SubsequentMask(seqLen, backend)
//	output, weights := mha.Forward(q, k, v, mask)
//
// # Layers
//
// Linear: Fully connected layer with Xavier initialization
//
//	layer := nn.NewLinear(inFeatures, outFeatures, true, backend)
//
// Conv1D: 1D convolutional layer; with kernel size 1 it acts as a
// per-position linear map, which is how PositionwiseFeedForward uses it
//
//	conv := nn.NewConv1D(inChannels, outChannels, kernelSize, stride, padding, true, backend)
//
// LayerNorm: per-feature normalization with learned gain and shift
//
//	norm := nn.NewLayerNorm(512, 1e-5, backend)
//
// # Loss Functions
//
// MSELoss: For regression tasks
//
//	criterion := nn.NewMSELoss(backend)
//	loss := criterion.Forward(predictions, targets)
//
// # Sequential Models
//
// Build models by composing single-input layers:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(512, 256, true, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(256, 10, true, backend),
//	)
//
// # Parameter Management
//
// Access model parameters for optimization:
//
//	params := model.Parameters()
//	for _, param := range params {
//	    fmt.Println(param.Name(), param.Tensor().Shape())
//	}
//
// # Persistence
//
// Modules implementing StateDictModule can be saved and restored through
// the checkpoint package, which also persists optimizer state for
// resumable training.
package nn
