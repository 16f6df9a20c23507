package optim

import (
	"math"

	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// Adadelta adapts learning rates from a window of squared gradients
// and squared updates, removing most of the sensitivity to the base
// rate:
//
//	sqAvg    = rho * sqAvg + (1-rho) * gradient^2
//	delta    = sqrt(accDelta + eps) / sqrt(sqAvg + eps) * gradient
//	accDelta = rho * accDelta + (1-rho) * delta^2
//	param   -= lr * delta
type Adadelta struct {
	*base
	rho       float64
	eps       float64
	sqAvgs    []*tensor.Tensor
	accDeltas []*tensor.Tensor
}

// AdadeltaConfig holds configuration for Adadelta.
type AdadeltaConfig struct {
	LR  float64 // default 1.0
	Rho float64 // default 0.9
	Eps float64 // default 1e-6
}

// NewAdadelta creates an Adadelta optimizer over the given groups.
func NewAdadelta(groups []*ParamGroup, config AdadeltaConfig) *Adadelta {
	if config.Rho == 0 {
		config.Rho = 0.9
	}
	if config.Eps == 0 {
		config.Eps = 1e-6
	}
	if config.LR != 0 {
		for _, g := range groups {
			if g.LR == 0 {
				g.LR = config.LR
			}
		}
	}
	b := newBase(groups)
	return &Adadelta{
		base:      b,
		rho:       config.Rho,
		eps:       config.Eps,
		sqAvgs:    make([]*tensor.Tensor, len(b.params)),
		accDeltas: make([]*tensor.Tensor, len(b.params)),
	}
}

// Step applies the Adadelta update to every parameter with a gradient.
func (a *Adadelta) Step() error {
	for _, g := range a.groups {
		lr := g.LR
		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil || !p.RequiresGrad() {
				continue
			}
			if grad.IsSparse() {
				return errSparseGrad("adadelta")
			}
			id := a.index[p]
			if a.sqAvgs[id] == nil {
				a.sqAvgs[id] = tensor.Zeros(p.Shape(), p.Value().Device())
				a.accDeltas[id] = tensor.Zeros(p.Shape(), p.Value().Device())
			}
			gradData := grad.Data()
			sqData := a.sqAvgs[id].Data()
			accData := a.accDeltas[id].Data()
			paramData := p.Value().Data()
			for i := range paramData {
				gv := float64(gradData[i])
				sq := a.rho*float64(sqData[i]) + (1-a.rho)*gv*gv
				sqData[i] = float32(sq)
				delta := math.Sqrt(float64(accData[i])+a.eps) / math.Sqrt(sq+a.eps) * gv
				accData[i] = float32(a.rho*float64(accData[i]) + (1-a.rho)*delta*delta)
				paramData[i] -= float32(lr * delta)
			}
		}
	}
	return nil
}

// StateDict exports both running accumulators.
func (a *Adadelta) StateDict() *State {
	st := newState()
	for id := range a.params {
		if a.sqAvgs[id] != nil {
			st.Tensors[stateKey(id, "square_avg")] = a.sqAvgs[id].Clone()
			st.Tensors[stateKey(id, "acc_delta")] = a.accDeltas[id].Clone()
		}
	}
	return st
}

// LoadStateDict restores accumulators by parameter id.
func (a *Adadelta) LoadStateDict(state *State) error {
	if state == nil {
		return nil
	}
	for id := range a.params {
		if sq, ok := state.Tensors[stateKey(id, "square_avg")]; ok {
			a.sqAvgs[id] = sq.Clone()
		}
		if acc, ok := state.Tensors[stateKey(id, "acc_delta")]; ok {
			a.accDeltas[id] = acc.Clone()
		}
	}
	return nil
}
