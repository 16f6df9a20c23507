package optim

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gradientlab-ml/gradient/internal/nn"
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// Controller drives an optimizer through training: it owns the step
// counters, applies the learning-rate schedule and gradient clipping
// around each update, and routes the backward pass through the
// mixed-precision wrapper when one is present.
//
// The training step counts optimizer updates; the decay step indexes
// the schedule and is restored independently, so a resumed run can
// rewind the schedule without losing its position in training. Both
// start at 1.
type Controller struct {
	opt  Optimizer
	fp16 MixedPrecisionOptimizer // nil when not mixed precision

	learningRate float64
	decayFn      DecayFunc
	maxGradNorm  float64

	trainingStep int
	decayStep    int
}

// NewController wraps opt. decayFn may be nil for a constant rate;
// maxGradNorm 0 disables clipping. Mixed-precision capability is
// detected here, once.
func NewController(opt Optimizer, learningRate float64, decayFn DecayFunc, maxGradNorm float64) *Controller {
	c := &Controller{
		opt:          opt,
		learningRate: learningRate,
		decayFn:      decayFn,
		maxGradNorm:  maxGradNorm,
		trainingStep: 1,
		decayStep:    1,
	}
	if fp16, ok := opt.(MixedPrecisionOptimizer); ok {
		c.fp16 = fp16
	}
	return c
}

// ControllerState is the controller's checkpointable state. A state
// can be partial: DecayStep 0 and Optimizer nil mean "absent" and
// leave the corresponding piece untouched on load.
type ControllerState struct {
	TrainingStep int
	DecayStep    int
	Optimizer    *State
}

// LegacyControllerState is the shape of pre-refactor checkpoints,
// which carried a single step counter and the raw optimizer state.
type LegacyControllerState struct {
	Step      int
	Optimizer *State
}

// Checkpoint carries the optimizer-relevant slice of a training
// checkpoint. Exactly one of Optim and LegacyOptim is set.
type Checkpoint struct {
	Optim       *ControllerState
	LegacyOptim *LegacyControllerState
	Config      *Config
}

// FromConfig builds a controller from options and an optional
// checkpoint, applying cfg.ResetOptim to decide which of the
// checkpoint's configuration and state survive.
func FromConfig(model *nn.Model, cfg *Config, ckpt *Checkpoint, wrapper PrecisionWrapper) (*Controller, error) {
	buildCfg := cfg
	var state *ControllerState

	if cfg.TrainFrom && ckpt != nil {
		ckptState := ckpt.Optim
		if ckptState == nil && ckpt.LegacyOptim != nil {
			// Legacy checkpoints kept one counter for both roles.
			ckptState = &ControllerState{
				TrainingStep: ckpt.LegacyOptim.Step + 1,
				DecayStep:    ckpt.LegacyOptim.Step + 1,
				Optimizer:    ckpt.LegacyOptim.Optimizer,
			}
		}
		switch cfg.ResetOptim {
		case ResetNone, "":
			buildCfg = ckpt.Config
			state = ckptState
		case ResetAll:
			// Build fresh from the current configuration.
		case ResetStates:
			buildCfg = ckpt.Config
			if ckptState != nil {
				state = &ControllerState{
					TrainingStep: ckptState.TrainingStep,
					DecayStep:    ckptState.DecayStep,
				}
			}
		case ResetKeepStates:
			state = ckptState
		default:
			return nil, configErrorf("invalid reset_optim policy %q", cfg.ResetOptim)
		}
		if state != nil {
			klog.V(1).Infof("resuming optimizer from checkpoint at step %d (reset_optim=%s)",
				state.TrainingStep, cfg.ResetOptim)
		}
	}

	opt, err := Build(model, buildCfg, wrapper)
	if err != nil {
		return nil, err
	}
	decayFn, err := MakeDecayFn(buildCfg)
	if err != nil {
		return nil, err
	}
	c := NewController(opt, buildCfg.LearningRate, decayFn, buildCfg.MaxGradNorm)
	if state != nil {
		if err := c.LoadStateDict(state); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// TrainingStep returns the 1-based index of the next update.
func (c *Controller) TrainingStep() int { return c.trainingStep }

// DecayStep returns the 1-based step the schedule is evaluated at.
func (c *Controller) DecayStep() int { return c.decayStep }

// LearningRate returns the effective base rate for the current decay
// step, before per-group factors.
func (c *Controller) LearningRate() float64 {
	if c.decayFn == nil {
		return c.learningRate
	}
	return c.decayFn(c.decayStep) * c.learningRate
}

// ZeroGrad clears the gradients of all optimized parameters.
func (c *Controller) ZeroGrad() { c.opt.ZeroGrad() }

// Backward runs the backward pass. Under mixed precision the wrapper
// owns it, applying loss scaling and unscaling into master gradients.
func (c *Controller) Backward(loss tensor.Loss) error {
	if c.fp16 != nil {
		return c.fp16.BackwardLoss(loss, true)
	}
	return loss.Backward(1)
}

// Step applies one optimizer update: writes the scheduled rate into
// every group (scaled by the group's factor when set), clips
// gradients, and advances both counters. A failed inner step leaves
// the counters unchanged.
func (c *Controller) Step() error {
	rate := c.LearningRate()
	if c.fp16 != nil {
		c.fp16.UpdateMasterGrads()
		if c.maxGradNorm > 0 {
			c.fp16.ClipMasterGrads(c.maxGradNorm)
		}
	}
	for _, g := range c.opt.ParamGroups() {
		if g.Factor != 0 {
			g.LR = g.Factor * rate
		} else {
			g.LR = rate
		}
		if c.fp16 == nil && c.maxGradNorm > 0 {
			ClipGradNorm(g.Params, c.maxGradNorm)
		}
	}
	if err := c.opt.Step(); err != nil {
		return err
	}
	c.decayStep++
	c.trainingStep++
	return nil
}

// StateDict exports the controller's checkpointable state.
func (c *Controller) StateDict() *ControllerState {
	return &ControllerState{
		TrainingStep: c.trainingStep,
		DecayStep:    c.decayStep,
		Optimizer:    c.opt.StateDict(),
	}
}

// LoadStateDict restores a possibly partial state. The training step
// is mandatory; a missing decay step or optimizer state leaves the
// current value in place.
func (c *Controller) LoadStateDict(state *ControllerState) error {
	if state == nil {
		return nil
	}
	if state.TrainingStep < 1 {
		return errors.Errorf("invalid training step %d in optimizer state, steps are 1-based", state.TrainingStep)
	}
	c.trainingStep = state.TrainingStep
	if state.DecayStep != 0 {
		c.decayStep = state.DecayStep
	}
	if state.Optimizer != nil {
		return c.opt.LoadStateDict(state.Optimizer)
	}
	return nil
}
