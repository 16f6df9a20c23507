package optim

import (
	"math"

	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// Adagrad accumulates squared gradients per element and divides the
// update by their square root, so frequently updated coordinates get
// smaller steps:
//
//	sum += gradient^2
//	param -= lr * gradient / (sqrt(sum) + eps)
type Adagrad struct {
	*base
	accumInit float64
	eps       float64
	sums      []*tensor.Tensor
}

// AdagradConfig holds configuration for Adagrad.
type AdagradConfig struct {
	LR        float64
	AccumInit float64 // initial accumulator value (default 0)
	Eps       float64 // default 1e-10
}

// NewAdagrad creates an Adagrad optimizer over the given groups.
func NewAdagrad(groups []*ParamGroup, config AdagradConfig) *Adagrad {
	if config.Eps == 0 {
		config.Eps = 1e-10
	}
	if config.LR != 0 {
		for _, g := range groups {
			if g.LR == 0 {
				g.LR = config.LR
			}
		}
	}
	b := newBase(groups)
	return &Adagrad{
		base:      b,
		accumInit: config.AccumInit,
		eps:       config.Eps,
		sums:      make([]*tensor.Tensor, len(b.params)),
	}
}

// Step applies the Adagrad update to every parameter with a gradient.
func (a *Adagrad) Step() error {
	for _, g := range a.groups {
		lr := g.LR
		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil || !p.RequiresGrad() {
				continue
			}
			if grad.IsSparse() {
				return errSparseGrad("adagrad")
			}
			id := a.index[p]
			sum := a.sums[id]
			if sum == nil {
				sum = tensor.Full(p.Shape(), float32(a.accumInit), p.Value().Device())
				a.sums[id] = sum
			}
			gradData := grad.Data()
			sumData := sum.Data()
			paramData := p.Value().Data()
			for i := range paramData {
				gv := float64(gradData[i])
				sv := float64(sumData[i]) + gv*gv
				sumData[i] = float32(sv)
				paramData[i] -= float32(lr * gv / (math.Sqrt(sv) + a.eps))
			}
		}
	}
	return nil
}

// StateDict exports the squared-gradient accumulators.
func (a *Adagrad) StateDict() *State {
	st := newState()
	for id, sum := range a.sums {
		if sum != nil {
			st.Tensors[stateKey(id, "sum")] = sum.Clone()
		}
	}
	return st
}

// LoadStateDict restores accumulators by parameter id.
func (a *Adagrad) LoadStateDict(state *State) error {
	if state == nil {
		return nil
	}
	for id := range a.params {
		if sum, ok := state.Tensors[stateKey(id, "sum")]; ok {
			a.sums[id] = sum.Clone()
		}
	}
	return nil
}
