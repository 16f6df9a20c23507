package optim

import (
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/gradientlab-ml/gradient/internal/nn"
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// MixedPrecisionOptimizer is the capability interface a precision
// wrapper adds on top of Optimizer. The controller detects wrapping by
// this interface at construction time, never by inspecting type names.
type MixedPrecisionOptimizer interface {
	Optimizer

	// BackwardLoss runs the backward pass with the current loss scale
	// applied, optionally unscaling into master gradients right away.
	BackwardLoss(loss tensor.Loss, updateMasterGrads bool) error

	// UpdateMasterGrads unscales the pending gradients into the fp32
	// master parameters, detecting overflow. Idempotent per step.
	UpdateMasterGrads()

	// ClipMasterGrads clips the master gradients to maxNorm globally
	// across all parameters, returning the pre-clip norm. A no-op when
	// the step already overflowed.
	ClipMasterGrads(maxNorm float64) float64

	// LossScale returns the current loss scale.
	LossScale() float64
}

// PrecisionWrapper produces a mixed-precision wrapper around a built
// optimizer. The builder resolves it once, at construction time.
type PrecisionWrapper interface {
	Wrap(opt Optimizer, cfg *Config) (MixedPrecisionOptimizer, error)
}

// DefaultPrecisionWrapper wraps with the in-package MixedPrecision
// implementation, taking the loss scale from the training config.
type DefaultPrecisionWrapper struct{}

func (DefaultPrecisionWrapper) Wrap(opt Optimizer, cfg *Config) (MixedPrecisionOptimizer, error) {
	return NewMixedPrecision(opt, MixedPrecisionConfig{LossScale: cfg.LossScale}), nil
}

// MixedPrecisionConfig holds configuration for the fp16 wrapper.
type MixedPrecisionConfig struct {
	// LossScale fixes a static loss scale; 0 selects dynamic scaling.
	LossScale float64
	// InitialScale seeds dynamic scaling (default 2^16).
	InitialScale float64
	// ScaleFactor is the dynamic backoff/growth factor (default 2).
	ScaleFactor float64
	// ScaleWindow is how many overflow-free steps double the scale
	// (default 1000).
	ScaleWindow int
	// MinLossScale floors dynamic backoff (default 1).
	MinLossScale float64
}

// MixedPrecision keeps the optimized parameters in fp32 master form,
// maintains fp16 shadow weights for the forward pass, scales the loss
// on backward, and unscales gradients before the wrapped optimizer
// consumes them. Steps whose gradients overflowed are skipped and,
// under dynamic scaling, reduce the loss scale.
type MixedPrecision struct {
	inner   Optimizer
	params  []*nn.Parameter
	shadows [][]float16.Float16

	scale     float64
	dynamic   bool
	factor    float64
	window    int
	minScale  float64
	goodSteps int

	overflow bool
	unscaled bool
}

// NewMixedPrecision wraps opt with mixed-precision bookkeeping.
func NewMixedPrecision(opt Optimizer, config MixedPrecisionConfig) *MixedPrecision {
	if config.InitialScale == 0 {
		config.InitialScale = 1 << 16
	}
	if config.ScaleFactor == 0 {
		config.ScaleFactor = 2
	}
	if config.ScaleWindow == 0 {
		config.ScaleWindow = 1000
	}
	if config.MinLossScale == 0 {
		config.MinLossScale = 1
	}
	m := &MixedPrecision{
		inner:    opt,
		dynamic:  config.LossScale == 0,
		scale:    config.LossScale,
		factor:   config.ScaleFactor,
		window:   config.ScaleWindow,
		minScale: config.MinLossScale,
	}
	if m.dynamic {
		m.scale = config.InitialScale
	}
	for _, g := range opt.ParamGroups() {
		m.params = append(m.params, g.Params...)
	}
	m.shadows = make([][]float16.Float16, len(m.params))
	for i, p := range m.params {
		m.shadows[i] = make([]float16.Float16, p.NumElements())
	}
	m.refreshShadows()
	return m
}

// refreshShadows re-derives the fp16 weights from the fp32 masters.
func (m *MixedPrecision) refreshShadows() {
	for i, p := range m.params {
		data := p.Value().Data()
		shadow := m.shadows[i]
		for j, v := range data {
			shadow[j] = float16.Fromfloat32(v)
		}
	}
}

// HalfWeights returns the fp16 shadow copies, indexed like the
// flattened parameter list. The compute engine reads these for the
// forward pass.
func (m *MixedPrecision) HalfWeights() [][]float16.Float16 { return m.shadows }

// LossScale returns the current loss scale.
func (m *MixedPrecision) LossScale() float64 { return m.scale }

// BackwardLoss scales the loss before differentiation so fp16
// gradients stay above the representable range.
func (m *MixedPrecision) BackwardLoss(loss tensor.Loss, updateMasterGrads bool) error {
	if err := loss.Backward(m.scale); err != nil {
		return err
	}
	if updateMasterGrads {
		m.UpdateMasterGrads()
	}
	return nil
}

// UpdateMasterGrads unscales the gradients in place. Non-finite
// gradients mark the step as overflowed and leave the gradients
// untouched; the step will be skipped.
func (m *MixedPrecision) UpdateMasterGrads() {
	if m.unscaled {
		return
	}
	m.unscaled = true
	for _, p := range m.params {
		if g := p.Grad(); g != nil && !g.AllFinite() {
			m.overflow = true
			return
		}
	}
	inv := float32(1 / m.scale)
	for _, p := range m.params {
		if g := p.Grad(); g != nil {
			g.Scale(inv)
		}
	}
}

// ClipMasterGrads clips globally across all parameters, unlike the
// per-group clip of the unwrapped path.
func (m *MixedPrecision) ClipMasterGrads(maxNorm float64) float64 {
	if m.overflow {
		return 0
	}
	return ClipGradNorm(m.params, maxNorm)
}

// Step applies the wrapped optimizer's update, or skips it entirely
// when the gradients overflowed, backing the loss scale off under
// dynamic scaling.
func (m *MixedPrecision) Step() error {
	if !m.unscaled {
		m.UpdateMasterGrads()
	}
	m.unscaled = false
	if m.overflow {
		m.overflow = false
		m.goodSteps = 0
		if m.dynamic {
			m.scale /= m.factor
			if m.scale < m.minScale {
				m.scale = m.minScale
			}
		}
		klog.Warningf("gradient overflow: skipping step, loss scale now %g", m.scale)
		return nil
	}
	if err := m.inner.Step(); err != nil {
		return err
	}
	m.refreshShadows()
	if m.dynamic {
		m.goodSteps++
		if m.goodSteps >= m.window {
			m.goodSteps = 0
			m.scale *= m.factor
		}
	}
	return nil
}

// ZeroGrad delegates to the wrapped optimizer.
func (m *MixedPrecision) ZeroGrad() { m.inner.ZeroGrad() }

// ParamGroups exposes the wrapped optimizer's groups; the controller
// writes learning rates through them as usual.
func (m *MixedPrecision) ParamGroups() []*ParamGroup { return m.inner.ParamGroups() }

// StateDict delegates to the wrapped optimizer; the loss scale is
// runtime adaptivity, not checkpoint state.
func (m *MixedPrecision) StateDict() *State { return m.inner.StateDict() }

// LoadStateDict delegates to the wrapped optimizer and refreshes the
// fp16 shadows from the restored masters.
func (m *MixedPrecision) LoadStateDict(state *State) error {
	if err := m.inner.LoadStateDict(state); err != nil {
		return err
	}
	m.refreshShadows()
	return nil
}
