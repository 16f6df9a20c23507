// Copyright 2026 Gradient Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/gradientlab-ml/gradient/internal/nn"
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// Module is the common interface of anything holding parameters.
type Module = nn.Module

// Parameter is a trainable parameter: a value tensor and its pending
// gradient.
type Parameter = nn.Parameter

// NamedParameter pairs a parameter with its fully qualified name.
type NamedParameter = nn.NamedParameter

// NewParameter creates a parameter with the given name and value.
func NewParameter(name string, value *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, value)
}

// Layers

// Linear holds a fully connected layer's parameters.
type Linear = nn.Linear

// NewLinear creates a linear layer with weights of shape
// [outFeatures, inFeatures].
func NewLinear(inFeatures, outFeatures int, bias bool) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, bias)
}

// Embedding holds a lookup table's parameters.
type Embedding = nn.Embedding

// NewEmbedding creates an embedding table of shape [vocabSize, embedDim].
func NewEmbedding(vocabSize, embedDim int) *Embedding {
	return nn.NewEmbedding(vocabSize, embedDim)
}

// LayerNorm holds a layer normalization's gain and bias.
type LayerNorm = nn.LayerNorm

// NewLayerNorm creates layer-norm parameters over dim features.
func NewLayerNorm(dim int) *LayerNorm {
	return nn.NewLayerNorm(dim)
}

// Model

// ModelConfig sizes a model's parameter tree.
type ModelConfig = nn.ModelConfig

// Model is a sequence-to-sequence model's parameter tree.
type Model = nn.Model

// TransformerEncoder holds an encoder stack's parameters.
type TransformerEncoder = nn.TransformerEncoder

// TransformerDecoder holds a decoder stack's parameters.
type TransformerDecoder = nn.TransformerDecoder

// Generator is the output projection head.
type Generator = nn.Generator

// NewModel creates a model parameter tree, applying the configured
// weight tying.
func NewModel(cfg ModelConfig) *Model {
	return nn.NewModel(cfg)
}
