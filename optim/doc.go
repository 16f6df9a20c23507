// Copyright 2026 Gradient Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim builds and drives optimizers for training sequence
// models.
//
// # Overview
//
// This package contains:
//   - Algorithm implementations: SGD, Adagrad, Adadelta, Adam,
//     FusedAdam, SparseAdam and AdaFactor
//   - A builder selecting and grouping parameters from a flat
//     configuration, including discriminative fine-tuning groups
//   - Learning-rate decay schedules (noam, rsqrt, stlr, invsq,
//     exponential)
//   - A training controller owning step counters, clipping, and
//     checkpoint resume policies
//   - A mixed-precision wrapper with loss scaling
//
// # Basic Usage
//
//	import (
//	    "github.com/gradientlab-ml/gradient/nn"
//	    "github.com/gradientlab-ml/gradient/optim"
//	)
//
//	model := nn.NewModel(nn.ModelConfig{VocabSize: 30000, ModelDim: 512, DecLayers: 6})
//	ctrl, err := optim.FromConfig(model, &optim.Config{
//	    Method:       "adam",
//	    LearningRate: 2,
//	    DecayMethod:  "noam",
//	    WarmupSteps:  8000,
//	    ModelDim:     512,
//	    MaxGradNorm:  5,
//	}, nil, nil)
//
//	// Training loop
//	for {
//	    ctrl.ZeroGrad()
//	    loss := engine.Forward(model, batch)
//	    if err := ctrl.Backward(loss); err != nil { ... }
//	    if err := ctrl.Step(); err != nil { ... }
//	}
//
// # Resuming
//
// FromConfig accepts a checkpoint and a reset policy deciding which of
// the checkpoint's configuration and state survive:
//
//	ctrl, err := optim.FromConfig(model, cfg, checkpoint, nil)
//
// with cfg.ResetOptim one of ResetNone, ResetAll, ResetStates or
// ResetKeepStates.
package optim
