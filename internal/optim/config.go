// Package optim builds and drives gradient-based optimizers for
// training a neural sequence model: algorithm selection, per-group
// learning-rate factors for discriminative fine-tuning, step-indexed
// learning-rate decay, gradient clipping and mixed-precision
// bookkeeping around each optimizer step.
package optim

import (
	"github.com/pkg/errors"
)

// ErrConfig is the root of all configuration errors raised at build
// time, before any training step executes. Use errors.Is to detect it.
var ErrConfig = errors.New("optimizer configuration error")

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

// ResetPolicy selects what survives from a checkpoint when resuming
// training. Exactly one policy is active per resume.
type ResetPolicy string

const (
	// ResetNone reuses the checkpoint's configuration and full state.
	ResetNone ResetPolicy = "none"
	// ResetAll ignores the checkpoint and builds fresh from the
	// current configuration.
	ResetAll ResetPolicy = "all"
	// ResetStates reuses the checkpoint's configuration and step
	// counters but discards the optimizer's numeric state.
	ResetStates ResetPolicy = "states"
	// ResetKeepStates uses the current configuration but keeps the
	// checkpoint's full state.
	ResetKeepStates ResetPolicy = "keep-states"
)

// Config is the flat mapping of training options the optimizer
// subsystem consumes. Zero values mean "use the default" where a
// default exists.
type Config struct {
	// Method names the underlying algorithm: sgd, adagrad, adadelta,
	// adafactor, adam, fusedadam, sparseadam.
	Method       string
	LearningRate float64

	AdamBeta1        float64 // default 0.9
	AdamBeta2        float64 // default 0.999
	AdagradAccumInit float64

	// MaxGradNorm clips each group's gradients to this 2-norm before
	// the optimizer step; 0 disables clipping entirely.
	MaxGradNorm float64

	// DecayMethod selects the learning-rate schedule: noam, rsqrt,
	// stlr, invsq. Empty with StartDecaySteps > 0 selects exponential
	// decay; empty otherwise means a constant rate.
	DecayMethod       string
	WarmupSteps       int
	ModelDim          int // transformer model size, used by noam
	TrainSteps        int
	STLRRatio         float64
	WarmupInitFactor  float64
	LearningRateDecay float64 // exponential decay rate
	DecaySteps        int
	StartDecaySteps   int // <= 0 means no exponential decay configured

	// DiscFineTune > 0 enables discriminative fine-tuning: the decay
	// exponent applied between successive decoder layers.
	DiscFineTune  float64
	DecLRFactor   float64 // learning-rate divisor for the output head
	DecLayers     int
	DecoderType   string // must contain "transformer" for fine-tuning
	FullContextLR bool   // give context attention the head's rate

	ShareEmbeddings        bool
	ShareDecoderEmbeddings bool
	EncDecShareParams      bool
	CopyAttn               bool
	FullGenBias            bool
	SimpleFusion           bool

	// ModelDType is the numeric precision mode: "fp32" (default) or
	// "fp16". LossScale 0 selects dynamic loss scaling under fp16.
	ModelDType string
	LossScale  float64

	// TrainFrom indicates training resumes from a checkpoint;
	// ResetOptim selects the resume policy.
	TrainFrom  bool
	ResetOptim ResetPolicy
}
