package optim

import (
	"math"

	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// SparseAdam is the sparse-gradient-capable Adam variant used for
// embedding tables: when a gradient arrives in row-sparse form, only
// the touched rows' moments and values are updated. Dense gradients
// are also accepted and handled like plain Adam.
//
// Bias correction uses the per-parameter step count, as the dense
// variant does; untouched rows keep stale moments until their next
// gradient, which is the lazy-update contract embeddings want.
type SparseAdam struct {
	*base
	beta1 float64
	beta2 float64
	eps   float64
	steps []int
	m     []*tensor.Tensor
	v     []*tensor.Tensor
}

// NewSparseAdam creates a SparseAdam optimizer over the given groups.
func NewSparseAdam(groups []*ParamGroup, config AdamConfig) *SparseAdam {
	config.fillDefaults()
	for _, g := range groups {
		if g.LR == 0 {
			g.LR = config.LR
		}
	}
	b := newBase(groups)
	return &SparseAdam{
		base:  b,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		steps: make([]int, len(b.params)),
		m:     make([]*tensor.Tensor, len(b.params)),
		v:     make([]*tensor.Tensor, len(b.params)),
	}
}

// Step applies the (possibly lazy) Adam update.
func (a *SparseAdam) Step() error {
	for _, g := range a.groups {
		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil || !p.RequiresGrad() {
				continue
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

			mData := a.m[id].Data()
			vData := a.v[id].Data()
			paramData := p.Value().Data()
			gradData := grad.Data()

			if !grad.IsSparse() {
				a.updateRange(g.LR, gradData, mData, vData, paramData, 0, 0, len(paramData), bc1, bc2)
				continue
			}

			rowSize := grad.RowSize()
			for k, row := range grad.RowIndex() {
				a.updateRange(g.LR, gradData, mData, vData, paramData,
					k*rowSize, row*rowSize, rowSize, bc1, bc2)
			}
		}
	}
	return nil
}

// updateRange applies the Adam rule to n elements, reading the
// gradient at gradOff and the state/parameter at dstOff.
func (a *SparseAdam) updateRange(lr float64, gradData, mData, vData, paramData []float32,
	gradOff, dstOff, n int, bc1, bc2 float64) {
	beta1 := float32(a.beta1)
	beta2 := float32(a.beta2)
	for i := 0; i < n; i++ {
		gv := gradData[gradOff+i]
		j := dstOff + i
		mData[j] = beta1*mData[j] + (1-beta1)*gv
		vData[j] = beta2*vData[j] + (1-beta2)*gv*gv
		mHat := float64(mData[j]) / bc1
		vHat := float64(vData[j]) / bc2
		paramData[j] -= float32(lr * mHat / (math.Sqrt(vHat) + a.eps))
	}
}

// StateDict exports per-parameter step counts and moment estimates.
func (a *SparseAdam) StateDict() *State {
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
func (a *SparseAdam) LoadStateDict(state *State) error {
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
