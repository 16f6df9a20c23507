package nn

import (
	"fmt"

	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// Linear holds the parameters of a fully connected layer.
type Linear struct {
	Weight *Parameter
	Bias   *Parameter // nil when the layer has no bias
}

// NewLinear creates a linear layer's parameters with zero-initialized
// weights of shape [outFeatures, inFeatures].
func NewLinear(inFeatures, outFeatures int, bias bool) *Linear {
	l := &Linear{
		Weight: NewParameter("weight", tensor.Zeros(tensor.Shape{outFeatures, inFeatures}, tensor.CPU)),
	}
	if bias {
		l.Bias = NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures}, tensor.CPU))
	}
	return l
}

func (l *Linear) NamedParameters() []NamedParameter {
	out := []NamedParameter{{Name: "weight", Param: l.Weight}}
	if l.Bias != nil {
		out = append(out, NamedParameter{Name: "bias", Param: l.Bias})
	}
	return out
}

func (l *Linear) Parameters() []*Parameter { return flatten(l.NamedParameters()) }

// Embedding holds a lookup table of shape [vocabSize, embedDim].
type Embedding struct {
	Weight *Parameter
}

// NewEmbedding creates an embedding table's parameters.
func NewEmbedding(vocabSize, embedDim int) *Embedding {
	return &Embedding{
		Weight: NewParameter("weight", tensor.Zeros(tensor.Shape{vocabSize, embedDim}, tensor.CPU)),
	}
}

func (e *Embedding) NamedParameters() []NamedParameter {
	return []NamedParameter{{Name: "weight", Param: e.Weight}}
}

func (e *Embedding) Parameters() []*Parameter { return flatten(e.NamedParameters()) }

// LayerNorm holds the gain and bias of a layer normalization.
type LayerNorm struct {
	Weight *Parameter
	Bias   *Parameter
}

// NewLayerNorm creates layer-norm parameters over dim features.
func NewLayerNorm(dim int) *LayerNorm {
	return &LayerNorm{
		Weight: NewParameter("weight", tensor.Full(tensor.Shape{dim}, 1, tensor.CPU)),
		Bias:   NewParameter("bias", tensor.Zeros(tensor.Shape{dim}, tensor.CPU)),
	}
}

func (n *LayerNorm) NamedParameters() []NamedParameter {
	return []NamedParameter{
		{Name: "weight", Param: n.Weight},
		{Name: "bias", Param: n.Bias},
	}
}

func (n *LayerNorm) Parameters() []*Parameter { return flatten(n.NamedParameters()) }

// AttentionParams holds the four projections of a multi-head attention
// sublayer.
type AttentionParams struct {
	Query *Linear
	Key   *Linear
	Value *Linear
	Final *Linear
}

// NewAttentionParams creates attention projections over dim features.
func NewAttentionParams(dim int) *AttentionParams {
	return &AttentionParams{
		Query: NewLinear(dim, dim, true),
		Key:   NewLinear(dim, dim, true),
		Value: NewLinear(dim, dim, true),
		Final: NewLinear(dim, dim, true),
	}
}

func (a *AttentionParams) NamedParameters() []NamedParameter {
	var out []NamedParameter
	out = append(out, prefixed("linear_query", a.Query.NamedParameters())...)
	out = append(out, prefixed("linear_keys", a.Key.NamedParameters())...)
	out = append(out, prefixed("linear_values", a.Value.NamedParameters())...)
	out = append(out, prefixed("final_linear", a.Final.NamedParameters())...)
	return out
}

func (a *AttentionParams) Parameters() []*Parameter { return flatten(a.NamedParameters()) }

// FFNParams holds the two projections of a position-wise feed-forward
// sublayer.
type FFNParams struct {
	W1 *Linear
	W2 *Linear
}

// NewFFNParams creates feed-forward projections dim -> hidden -> dim.
func NewFFNParams(dim, hidden int) *FFNParams {
	return &FFNParams{W1: NewLinear(dim, hidden, true), W2: NewLinear(hidden, dim, true)}
}

func (f *FFNParams) NamedParameters() []NamedParameter {
	var out []NamedParameter
	out = append(out, prefixed("w_1", f.W1.NamedParameters())...)
	out = append(out, prefixed("w_2", f.W2.NamedParameters())...)
	return out
}

func (f *FFNParams) Parameters() []*Parameter { return flatten(f.NamedParameters()) }

// DecoderLayer holds one transformer decoder layer: self attention,
// encoder-decoder (context) attention, and feed-forward, each with its
// layer norm.
type DecoderLayer struct {
	SelfAttn    *AttentionParams
	ContextAttn *AttentionParams
	FeedForward *FFNParams
	NormSelf    *LayerNorm
	NormContext *LayerNorm
	NormFFN     *LayerNorm
}

// NewDecoderLayer creates one decoder layer's parameters.
func NewDecoderLayer(dim, ffnHidden int) *DecoderLayer {
	return &DecoderLayer{
		SelfAttn:    NewAttentionParams(dim),
		ContextAttn: NewAttentionParams(dim),
		FeedForward: NewFFNParams(dim, ffnHidden),
		NormSelf:    NewLayerNorm(dim),
		NormContext: NewLayerNorm(dim),
		NormFFN:     NewLayerNorm(dim),
	}
}

func (l *DecoderLayer) NamedParameters() []NamedParameter {
	var out []NamedParameter
	out = append(out, prefixed("self_attn", l.SelfAttn.NamedParameters())...)
	out = append(out, prefixed("context_attn", l.ContextAttn.NamedParameters())...)
	out = append(out, prefixed("feed_forward", l.FeedForward.NamedParameters())...)
	out = append(out, prefixed("layer_norm_1", l.NormSelf.NamedParameters())...)
	out = append(out, prefixed("layer_norm_2", l.NormContext.NamedParameters())...)
	out = append(out, prefixed("layer_norm_3", l.NormFFN.NamedParameters())...)
	return out
}

func (l *DecoderLayer) Parameters() []*Parameter { return flatten(l.NamedParameters()) }

// EncoderLayer holds one transformer encoder layer.
type EncoderLayer struct {
	SelfAttn    *AttentionParams
	FeedForward *FFNParams
	NormSelf    *LayerNorm
	NormFFN     *LayerNorm
}

// NewEncoderLayer creates one encoder layer's parameters.
func NewEncoderLayer(dim, ffnHidden int) *EncoderLayer {
	return &EncoderLayer{
		SelfAttn:    NewAttentionParams(dim),
		FeedForward: NewFFNParams(dim, ffnHidden),
		NormSelf:    NewLayerNorm(dim),
		NormFFN:     NewLayerNorm(dim),
	}
}

func (l *EncoderLayer) NamedParameters() []NamedParameter {
	var out []NamedParameter
	out = append(out, prefixed("self_attn", l.SelfAttn.NamedParameters())...)
	out = append(out, prefixed("feed_forward", l.FeedForward.NamedParameters())...)
	out = append(out, prefixed("layer_norm_1", l.NormSelf.NamedParameters())...)
	out = append(out, prefixed("layer_norm_2", l.NormFFN.NamedParameters())...)
	return out
}

func (l *EncoderLayer) Parameters() []*Parameter { return flatten(l.NamedParameters()) }

// TransformerDecoder holds embeddings, a stack of decoder layers and
// the final layer norm.
type TransformerDecoder struct {
	Embeddings *Embedding
	Layers     []*DecoderLayer
	LayerNorm  *LayerNorm
}

// NewTransformerDecoder creates a decoder's parameters.
func NewTransformerDecoder(numLayers, dim, ffnHidden, vocabSize int) *TransformerDecoder {
	d := &TransformerDecoder{
		Embeddings: NewEmbedding(vocabSize, dim),
		LayerNorm:  NewLayerNorm(dim),
	}
	for i := 0; i < numLayers; i++ {
		d.Layers = append(d.Layers, NewDecoderLayer(dim, ffnHidden))
	}
	return d
}

func (d *TransformerDecoder) NamedParameters() []NamedParameter {
	var out []NamedParameter
	out = append(out, prefixed("embeddings", d.Embeddings.NamedParameters())...)
	for i, layer := range d.Layers {
		out = append(out, prefixed(fmt.Sprintf("transformer_layers.%d", i), layer.NamedParameters())...)
	}
	out = append(out, prefixed("layer_norm", d.LayerNorm.NamedParameters())...)
	return out
}

func (d *TransformerDecoder) Parameters() []*Parameter { return flatten(d.NamedParameters()) }

// TransformerEncoder holds embeddings and a stack of encoder layers.
type TransformerEncoder struct {
	Embeddings *Embedding
	Layers     []*EncoderLayer
	LayerNorm  *LayerNorm
}

// NewTransformerEncoder creates an encoder's parameters.
func NewTransformerEncoder(numLayers, dim, ffnHidden, vocabSize int) *TransformerEncoder {
	e := &TransformerEncoder{
		Embeddings: NewEmbedding(vocabSize, dim),
		LayerNorm:  NewLayerNorm(dim),
	}
	for i := 0; i < numLayers; i++ {
		e.Layers = append(e.Layers, NewEncoderLayer(dim, ffnHidden))
	}
	return e
}

func (e *TransformerEncoder) NamedParameters() []NamedParameter {
	var out []NamedParameter
	out = append(out, prefixed("embeddings", e.Embeddings.NamedParameters())...)
	for i, layer := range e.Layers {
		out = append(out, prefixed(fmt.Sprintf("transformer_layers.%d", i), layer.NamedParameters())...)
	}
	out = append(out, prefixed("layer_norm", e.LayerNorm.NamedParameters())...)
	return out
}

func (e *TransformerEncoder) Parameters() []*Parameter { return flatten(e.NamedParameters()) }

// Generator is the output head projecting decoder states to vocabulary
// logits, with an optional copy-mechanism gate.
type Generator struct {
	Linear *Linear
	// CopyLinear is the copy-mechanism gate, present only when copy
	// attention is enabled.
	CopyLinear *Linear
}

// NewGenerator creates the output head's parameters.
func NewGenerator(dim, vocabSize int, copyAttn bool) *Generator {
	g := &Generator{Linear: NewLinear(dim, vocabSize, true)}
	if copyAttn {
		g.CopyLinear = NewLinear(dim, 1, true)
	}
	return g
}

func (g *Generator) NamedParameters() []NamedParameter {
	out := prefixed("linear", g.Linear.NamedParameters())
	if g.CopyLinear != nil {
		out = append(out, prefixed("linear_copy", g.CopyLinear.NamedParameters())...)
	}
	return out
}

func (g *Generator) Parameters() []*Parameter { return flatten(g.NamedParameters()) }
