package optim

import (
	"math"

	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule, per element:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient^2
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param -= lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization"
// (Kingma & Ba, 2014).
type Adam struct {
	*base
	beta1 float64
	beta2 float64
	eps   float64
	steps []int
	m     []*tensor.Tensor
	v     []*tensor.Tensor
}

// AdamConfig holds configuration for Adam.
type AdamConfig struct {
	LR    float64    // default 0.001
	Betas [2]float64 // default [0.9, 0.999]
	Eps   float64    // default 1e-8
}

func (c *AdamConfig) fillDefaults() {
	if c.LR == 0 {
		c.LR = 0.001
	}
	if c.Betas[0] == 0 {
		c.Betas[0] = 0.9
	}
	if c.Betas[1] == 0 {
		c.Betas[1] = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
}

// NewAdam creates an Adam optimizer over the given parameter groups.
func NewAdam(groups []*ParamGroup, config AdamConfig) *Adam {
	config.fillDefaults()
	for _, g := range groups {
		if g.LR == 0 {
			g.LR = config.LR
		}
	}
	b := newBase(groups)
	return &Adam{
		base:  b,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		steps: make([]int, len(b.params)),
		m:     make([]*tensor.Tensor, len(b.params)),
		v:     make([]*tensor.Tensor, len(b.params)),
	}
}

// Step applies the Adam update to every parameter with a gradient.
// Sparse gradients are a fatal error.
func (a *Adam) Step() error {
	for _, g := range a.groups {
		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil || !p.RequiresGrad() {
				continue
			}
			if grad.IsSparse() {
				return errSparseGrad("adam")
			}
			id := a.index[p]
			if a.m[id] == nil {
				a.m[id] = tensor.Zeros(p.Shape(), p.Value().Device())
				a.v[id] = tensor.Zeros(p.Shape(), p.Value().Device())
			}
			a.steps[id]++
			t := a.steps[id]
			bc1 := 1 - math.Pow(a.beta1, float64(t))
			bc2 := 1 - math.Pow(a.beta2, float64(t))

			a.update(g.LR, grad.Data(), a.m[id].Data(), a.v[id].Data(), p.Value().Data(), bc1, bc2)
		}
	}
	return nil
}

func (a *Adam) update(lr float64, gradData, mData, vData, paramData []float32, bc1, bc2 float64) {
	beta1 := float32(a.beta1)
	beta2 := float32(a.beta2)
	for i := range paramData {
		gv := gradData[i]
		mData[i] = beta1*mData[i] + (1-beta1)*gv
		vData[i] = beta2*vData[i] + (1-beta2)*gv*gv
		mHat := float64(mData[i]) / bc1
		vHat := float64(vData[i]) / bc2
		paramData[i] -= float32(lr * mHat / (math.Sqrt(vHat) + a.eps))
	}
}

// StateDict exports per-parameter step counts and moment estimates.
func (a *Adam) StateDict() *State {
	st := newState()
	for id := range a.params {
		if a.m[id] == nil {
			continue
		}
		st.Steps[id] = a.steps[id]
		st.Tensors[stateKey(id, "exp_avg")] = a.m[id].Clone()
		st.Tensors[stateKey(id, "exp_avg_sq")] = a.v[id].Clone()
	}
	return st
}

// LoadStateDict restores step counts and moments by parameter id.
func (a *Adam) LoadStateDict(state *State) error {
	if state == nil {
		return nil
	}
	for id := range a.params {
		if step, ok := state.Steps[id]; ok {
			a.steps[id] = step
		}
		if m, ok := state.Tensors[stateKey(id, "exp_avg")]; ok {
			a.m[id] = m.Clone()
		}
		if v, ok := state.Tensors[stateKey(id, "exp_avg_sq")]; ok {
			a.v[id] = v.Clone()
		}
	}
	return nil
}
