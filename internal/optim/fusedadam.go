package optim

import (
	"math"

	"github.com/gradientlab-ml/gradient/internal/parallel"
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// FusedAdam is Adam with the per-element update fused into a single
// pass and chunked across workers. The numerical contract is identical
// to Adam; only the execution strategy differs, so the two are
// interchangeable from the controller's point of view.
type FusedAdam struct {
	*base
	beta1    float64
	beta2    float64
	eps      float64
	steps    []int
	m        []*tensor.Tensor
	v        []*tensor.Tensor
	parallel parallel.Config
}

// NewFusedAdam creates a FusedAdam optimizer over the given groups.
func NewFusedAdam(groups []*ParamGroup, config AdamConfig) *FusedAdam {
	config.fillDefaults()
	for _, g := range groups {
		if g.LR == 0 {
			g.LR = config.LR
		}
	}
	b := newBase(groups)
	return &FusedAdam{
		base:     b,
		beta1:    config.Betas[0],
		beta2:    config.Betas[1],
		eps:      config.Eps,
		steps:    make([]int, len(b.params)),
		m:        make([]*tensor.Tensor, len(b.params)),
		v:        make([]*tensor.Tensor, len(b.params)),
		parallel: parallel.DefaultConfig(),
	}
}

// Step applies the fused Adam update to every parameter with a
// gradient. Sparse gradients are a fatal error.
func (a *FusedAdam) Step() error {
	for _, g := range a.groups {
		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil || !p.RequiresGrad() {
				continue
			}
			if grad.IsSparse() {
				return errSparseGrad("fusedadam")
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

			gradData := grad.Data()
			mData := a.m[id].Data()
			vData := a.v[id].Data()
			paramData := p.Value().Data()
			lr := g.LR
			beta1 := float32(a.beta1)
			beta2 := float32(a.beta2)

			parallel.ForRange(len(paramData), func(start, end int) {
				for i := start; i < end; i++ {
					gv := gradData[i]
					mData[i] = beta1*mData[i] + (1-beta1)*gv
					vData[i] = beta2*vData[i] + (1-beta2)*gv*gv
					mHat := float64(mData[i]) / bc1
					vHat := float64(vData[i]) / bc2
					paramData[i] -= float32(lr * mHat / (math.Sqrt(vHat) + a.eps))
				}
			}, a.parallel)
		}
	}
	return nil
}

// StateDict exports per-parameter step counts and moment estimates.
func (a *FusedAdam) StateDict() *State {
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
func (a *FusedAdam) LoadStateDict(state *State) error {
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
