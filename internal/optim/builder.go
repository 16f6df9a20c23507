package optim

import (
	"strings"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/gradientlab-ml/gradient/internal/nn"
)

// Build constructs the optimizer cfg describes over the model's
// trainable parameters. Under discriminative fine-tuning the
// parameters are split into factored groups from the output head down
// to the embeddings; otherwise they form a single group. When
// cfg.ModelDType is "fp16" the result is wrapped for mixed precision
// via wrapper (nil selects the built-in wrapper).
//
// Adam defaults follow the original paper (beta1 0.9, beta2 0.999);
// the "Attention is all you need" beta2 0.98 is left to configuration.
func Build(model *nn.Model, cfg *Config, wrapper PrecisionWrapper) (Optimizer, error) {
	if cfg.DiscFineTune > 0 {
		if cfg.Method != "adam" && cfg.Method != "fusedadam" {
			return nil, configErrorf("discriminative fine-tuning requires adam or fusedadam, got %q", cfg.Method)
		}
		if cfg.ShareDecoderEmbeddings && cfg.SimpleFusion {
			return nil, configErrorf("discriminative fine-tuning does not support shared decoder embeddings with simple fusion")
		}
		if cfg.ShareDecoderEmbeddings && cfg.CopyAttn && cfg.FullGenBias {
			return nil, configErrorf("discriminative fine-tuning does not support shared decoder embeddings with copy attention and a full generator bias")
		}
		if !strings.Contains(cfg.DecoderType, "transformer") {
			return nil, configErrorf("discriminative fine-tuning requires a transformer decoder, got %q", cfg.DecoderType)
		}
	}

	params := model.Parameters()
	betas := [2]float64{cfg.AdamBeta1, cfg.AdamBeta2}

	var opt Optimizer
	switch cfg.Method {
	case "sgd":
		opt = NewSGD(singleGroup(params, cfg.LearningRate), SGDConfig{LR: cfg.LearningRate})
	case "adagrad":
		opt = NewAdagrad(singleGroup(params, cfg.LearningRate), AdagradConfig{
			LR:        cfg.LearningRate,
			AccumInit: cfg.AdagradAccumInit,
		})
	case "adadelta":
		opt = NewAdadelta(singleGroup(params, cfg.LearningRate), AdadeltaConfig{LR: cfg.LearningRate})
	case "adafactor":
		opt = NewAdaFactor(singleGroup(params, cfg.LearningRate), AdaFactorConfig{
			LR:               cfg.LearningRate,
			NonConstantDecay: true,
			Factorization:    true,
		})
	case "adam":
		groups := adamGroups(model, cfg, params)
		opt = NewAdam(groups, AdamConfig{LR: cfg.LearningRate, Betas: betas, Eps: 1e-9})
	case "fusedadam":
		groups := adamGroups(model, cfg, params)
		opt = NewFusedAdam(groups, AdamConfig{LR: cfg.LearningRate, Betas: betas})
	case "sparseadam":
		var dense, sparse []*nn.Parameter
		seen := make(map[*nn.Parameter]bool)
		for _, np := range model.NamedParameters() {
			p := np.Param
			if !p.RequiresGrad() || seen[p] {
				continue
			}
			seen[p] = true
			if strings.Contains(np.Name, "embed") {
				sparse = append(sparse, p)
			} else {
				dense = append(dense, p)
			}
		}
		opt = NewMultiOptimizer(
			NewAdam(singleGroup(dense, cfg.LearningRate),
				AdamConfig{LR: cfg.LearningRate, Betas: betas, Eps: 1e-8}),
			NewSparseAdam(singleGroup(sparse, cfg.LearningRate),
				AdamConfig{LR: cfg.LearningRate, Betas: betas, Eps: 1e-8}),
		)
	default:
		return nil, configErrorf("invalid optimizer method %q", cfg.Method)
	}

	if cfg.ModelDType == "fp16" {
		if wrapper == nil {
			wrapper = DefaultPrecisionWrapper{}
		}
		wrapped, err := wrapper.Wrap(opt, cfg)
		if err != nil {
			return nil, err
		}
		opt = wrapped
	}
	return opt, nil
}

// adamGroups returns the parameter grouping for adam and fusedadam:
// factored fine-tuning groups when enabled, a single group otherwise.
func adamGroups(model *nn.Model, cfg *Config, params []*nn.Parameter) []*ParamGroup {
	if cfg.DiscFineTune <= 0 {
		return singleGroup(params, cfg.LearningRate)
	}
	groups := discriminativeGroups(model, cfg)
	total := 0
	for _, g := range groups {
		total += g.NumElements()
	}
	klog.V(1).Infof("fine-tuning optimizer over %s parameters in %d groups",
		humanize.Comma(int64(total)), len(groups))
	return groups
}

// discriminativeGroups builds the factored groups for discriminative
// fine-tuning. Groups are ordered from the least-decayed (encoder,
// factor 1) through the output head (1/DecLRFactor), then decoder
// layers from last to first, each a further DiscFineTune decay, down
// to the embeddings.
func discriminativeGroups(model *nn.Model, cfg *Config) []*ParamGroup {
	var groups []*ParamGroup

	encParams := encoderParams(model, cfg)
	if len(encParams) > 0 {
		groups = append(groups, &ParamGroup{Params: encParams, Factor: 1})
	}

	decoder := model.Decoder
	head := append(generatorParams(model, cfg), decoder.LayerNorm.Parameters()...)
	if cfg.FullContextLR {
		// Context attention learns a new dependency on the encoder, so
		// it trains at the head's rate rather than its layer's.
		for _, np := range decoder.NamedParameters() {
			if isContextName(np.Name) {
				head = append(head, np.Param)
			}
		}
	}
	dlf := cfg.DecLRFactor
	if dlf == 0 {
		dlf = 1
	}
	factor := 1 / dlf
	groups = append(groups, &ParamGroup{Params: head, Factor: factor})

	for layer := cfg.DecLayers - 1; layer >= 0; layer-- {
		factor /= cfg.DiscFineTune
		var layerParams []*nn.Parameter
		if cfg.FullContextLR {
			for _, np := range decoder.Layers[layer].NamedParameters() {
				if !isContextName(np.Name) {
					layerParams = append(layerParams, np.Param)
				}
			}
		} else {
			layerParams = decoder.Layers[layer].Parameters()
		}
		groups = append(groups, &ParamGroup{Params: layerParams, Factor: factor})
	}

	factor /= cfg.DiscFineTune
	embParams := decoder.Embeddings.Parameters()
	if cfg.ShareDecoderEmbeddings && !cfg.FullGenBias {
		// The projection weight is tied to the embedding table; its
		// bias decays with the embeddings rather than the head.
		if bias := model.Generator.Linear.Bias; bias != nil {
			embParams = append(embParams, bias)
		}
	}
	groups = append(groups, &ParamGroup{Params: embParams, Factor: factor})

	return groups
}

// encoderParams returns the encoder parameters that form the factor-1
// group, empty when the encoder shares parameters with the decoder or
// does not exist.
func encoderParams(model *nn.Model, cfg *Config) []*nn.Parameter {
	if cfg.EncDecShareParams || model.Encoder == nil {
		return nil
	}
	if !cfg.ShareEmbeddings {
		return model.Encoder.Parameters()
	}
	var out []*nn.Parameter
	for _, np := range model.Encoder.NamedParameters() {
		if !strings.Contains(np.Name, "embeddings") {
			out = append(out, np.Param)
		}
	}
	return out
}

// generatorParams returns the output head's contribution to the head
// group. With shared decoder embeddings the tied projection weight is
// excluded; only the bias (or the copy gate) trains at the head rate.
func generatorParams(model *nn.Model, cfg *Config) []*nn.Parameter {
	gen := model.Generator
	if !cfg.ShareDecoderEmbeddings {
		return gen.Parameters()
	}
	if cfg.FullGenBias {
		return []*nn.Parameter{gen.Linear.Bias}
	}
	if cfg.CopyAttn {
		return gen.CopyLinear.Parameters()
	}
	return nil
}

func isContextName(name string) bool {
	return strings.Contains(name, "context") || strings.Contains(name, "ctx")
}
