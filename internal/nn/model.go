package nn

// ModelConfig sizes a sequence-to-sequence transformer's parameter
// tree. Dimensions are deliberately small in tests; the optimizer
// subsystem only cares about shapes and names.
type ModelConfig struct {
	VocabSize  int
	ModelDim   int
	FFNHidden  int
	EncLayers  int // 0 means no encoder (decoder-only model)
	DecLayers  int
	CopyAttn   bool
	// ShareDecoderEmbeddings ties the generator's projection weight to
	// the decoder embedding table (same *Parameter).
	ShareDecoderEmbeddings bool
	// ShareEmbeddings ties encoder and decoder embedding tables.
	ShareEmbeddings bool
}

// Model is a sequence-to-sequence model's parameter tree: optional
// encoder, decoder, and output generator.
type Model struct {
	Encoder   *TransformerEncoder // nil for decoder-only models
	Decoder   *TransformerDecoder
	Generator *Generator
}

// NewModel creates a model parameter tree from the configuration,
// applying the requested weight tying.
func NewModel(cfg ModelConfig) *Model {
	if cfg.FFNHidden == 0 {
		cfg.FFNHidden = 4 * cfg.ModelDim
	}
	m := &Model{
		Decoder:   NewTransformerDecoder(cfg.DecLayers, cfg.ModelDim, cfg.FFNHidden, cfg.VocabSize),
		Generator: NewGenerator(cfg.ModelDim, cfg.VocabSize, cfg.CopyAttn),
	}
	if cfg.EncLayers > 0 {
		m.Encoder = NewTransformerEncoder(cfg.EncLayers, cfg.ModelDim, cfg.FFNHidden, cfg.VocabSize)
		if cfg.ShareEmbeddings {
			m.Encoder.Embeddings.Weight = m.Decoder.Embeddings.Weight
		}
	}
	if cfg.ShareDecoderEmbeddings {
		m.Generator.Linear.Weight = m.Decoder.Embeddings.Weight
	}
	return m
}

// NamedParameters returns the model's parameters with fully qualified
// names. Tied parameters appear once per site; Parameters dedupes.
func (m *Model) NamedParameters() []NamedParameter {
	var out []NamedParameter
	if m.Encoder != nil {
		out = append(out, prefixed("encoder", m.Encoder.NamedParameters())...)
	}
	out = append(out, prefixed("decoder", m.Decoder.NamedParameters())...)
	out = append(out, prefixed("generator", m.Generator.NamedParameters())...)
	return out
}

// Parameters returns the model's unique trainable parameters in a
// stable order. A parameter tied into several sites is listed once.
func (m *Model) Parameters() []*Parameter {
	seen := make(map[*Parameter]bool)
	var out []*Parameter
	for _, np := range m.NamedParameters() {
		if seen[np.Param] || !np.Param.RequiresGrad() {
			continue
		}
		seen[np.Param] = true
		out = append(out, np.Param)
	}
	return out
}
