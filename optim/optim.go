// Copyright 2026 Gradient Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/gradientlab-ml/gradient/internal/nn"
	"github.com/gradientlab-ml/gradient/internal/optim"
)

// Optimizer is the interface all optimization algorithms implement.
type Optimizer = optim.Optimizer

// ParamGroup is an ordered set of parameters sharing hyperparameters.
type ParamGroup = optim.ParamGroup

// State is an optimizer's serializable state.
type State = optim.State

// Config is the flat mapping of training options the optimizer
// subsystem consumes.
type Config = optim.Config

// ErrConfig is the root of all build-time configuration errors.
var ErrConfig = optim.ErrConfig

// ResetPolicy selects what survives from a checkpoint when resuming.
type ResetPolicy = optim.ResetPolicy

const (
	ResetNone       = optim.ResetNone
	ResetAll        = optim.ResetAll
	ResetStates     = optim.ResetStates
	ResetKeepStates = optim.ResetKeepStates
)

// Build constructs the optimizer described by cfg over the model's
// trainable parameters.
func Build(model *nn.Model, cfg *Config, wrapper PrecisionWrapper) (Optimizer, error) {
	return optim.Build(model, cfg, wrapper)
}

// Algorithms

// SGD is stochastic gradient descent with optional momentum.
type SGD = optim.SGD

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
func NewSGD(groups []*ParamGroup, cfg SGDConfig) *SGD {
	return optim.NewSGD(groups, cfg)
}

// Adagrad is the Adagrad algorithm with a configurable accumulator
// initialization.
type Adagrad = optim.Adagrad

// AdagradConfig configures Adagrad.
type AdagradConfig = optim.AdagradConfig

// NewAdagrad creates an Adagrad optimizer.
func NewAdagrad(groups []*ParamGroup, cfg AdagradConfig) *Adagrad {
	return optim.NewAdagrad(groups, cfg)
}

// Adadelta is the Adadelta algorithm.
type Adadelta = optim.Adadelta

// AdadeltaConfig configures Adadelta.
type AdadeltaConfig = optim.AdadeltaConfig

// NewAdadelta creates an Adadelta optimizer.
func NewAdadelta(groups []*ParamGroup, cfg AdadeltaConfig) *Adadelta {
	return optim.NewAdadelta(groups, cfg)
}

// Adam is adaptive moment estimation with bias correction.
type Adam = optim.Adam

// AdamConfig configures Adam and its variants.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
func NewAdam(groups []*ParamGroup, cfg AdamConfig) *Adam {
	return optim.NewAdam(groups, cfg)
}

// FusedAdam is Adam with a fused, chunk-parallel update pass.
type FusedAdam = optim.FusedAdam

// NewFusedAdam creates a FusedAdam optimizer.
func NewFusedAdam(groups []*ParamGroup, cfg AdamConfig) *FusedAdam {
	return optim.NewFusedAdam(groups, cfg)
}

// SparseAdam is the sparse-gradient-capable Adam variant.
type SparseAdam = optim.SparseAdam

// NewSparseAdam creates a SparseAdam optimizer.
func NewSparseAdam(groups []*ParamGroup, cfg AdamConfig) *SparseAdam {
	return optim.NewSparseAdam(groups, cfg)
}

// AdaFactor implements the AdaFactor optimizer with a factored second
// moment for matrix parameters.
type AdaFactor = optim.AdaFactor

// AdaFactorConfig configures AdaFactor.
type AdaFactorConfig = optim.AdaFactorConfig

// NewAdaFactor creates an AdaFactor optimizer.
func NewAdaFactor(groups []*ParamGroup, cfg AdaFactorConfig) *AdaFactor {
	return optim.NewAdaFactor(groups, cfg)
}

// MultiOptimizer composes independent optimizers behind one interface.
type MultiOptimizer = optim.MultiOptimizer

// NewMultiOptimizer wraps the given optimizers; order is significant.
func NewMultiOptimizer(optimizers ...Optimizer) *MultiOptimizer {
	return optim.NewMultiOptimizer(optimizers...)
}

// Schedules

// DecayFunc maps the current decay step to a learning-rate scale.
type DecayFunc = optim.DecayFunc

// MakeDecayFn selects the decay function from configuration.
func MakeDecayFn(cfg *Config) (DecayFunc, error) {
	return optim.MakeDecayFn(cfg)
}

// Controller

// Controller drives an optimizer through training.
type Controller = optim.Controller

// ControllerState is the controller's checkpointable state.
type ControllerState = optim.ControllerState

// LegacyControllerState is the shape of pre-refactor checkpoints.
type LegacyControllerState = optim.LegacyControllerState

// Checkpoint carries the optimizer-relevant slice of a checkpoint.
type Checkpoint = optim.Checkpoint

// NewController wraps an already built optimizer.
func NewController(opt Optimizer, learningRate float64, decayFn DecayFunc, maxGradNorm float64) *Controller {
	return optim.NewController(opt, learningRate, decayFn, maxGradNorm)
}

// FromConfig builds a controller from options and an optional
// checkpoint.
func FromConfig(model *nn.Model, cfg *Config, ckpt *Checkpoint, wrapper PrecisionWrapper) (*Controller, error) {
	return optim.FromConfig(model, cfg, ckpt, wrapper)
}

// Mixed precision

// MixedPrecisionOptimizer is the capability interface of fp16-wrapped
// optimizers.
type MixedPrecisionOptimizer = optim.MixedPrecisionOptimizer

// PrecisionWrapper produces a mixed-precision wrapper around a built
// optimizer.
type PrecisionWrapper = optim.PrecisionWrapper

// MixedPrecision is the built-in fp16 wrapper.
type MixedPrecision = optim.MixedPrecision

// MixedPrecisionConfig configures the fp16 wrapper.
type MixedPrecisionConfig = optim.MixedPrecisionConfig

// NewMixedPrecision wraps opt with mixed-precision bookkeeping.
func NewMixedPrecision(opt Optimizer, cfg MixedPrecisionConfig) *MixedPrecision {
	return optim.NewMixedPrecision(opt, cfg)
}

// ClipGradNorm clips the parameters' gradients to maxNorm in 2-norm,
// returning the pre-clip norm.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	return optim.ClipGradNorm(params, maxNorm)
}
