package optim

import (
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// With momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	*base
	momentum   float64
	velocities []*tensor.Tensor // indexed by parameter id, lazily allocated
}

// SGDConfig holds configuration for SGD.
type SGDConfig struct {
	LR       float64 // default 0.01
	Momentum float64 // default 0, range [0, 1)
}

// NewSGD creates an SGD optimizer over the given parameter groups.
func NewSGD(groups []*ParamGroup, config SGDConfig) *SGD {
	if config.LR != 0 {
		for _, g := range groups {
			if g.LR == 0 {
				g.LR = config.LR
			}
		}
	}
	b := newBase(groups)
	return &SGD{
		base:       b,
		momentum:   config.Momentum,
		velocities: make([]*tensor.Tensor, len(b.params)),
	}
}

// Step applies the SGD update to every parameter with a gradient.
func (s *SGD) Step() error {
	for _, g := range s.groups {
		lr := float32(g.LR)
		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil || !p.RequiresGrad() {
				continue
			}
			if grad.IsSparse() {
				return errSparseGrad("sgd")
			}
			id := s.index[p]
			gradData := grad.Data()
			paramData := p.Value().Data()

			if s.momentum == 0 {
				for i := range paramData {
					paramData[i] -= lr * gradData[i]
				}
				continue
			}

			v := s.velocities[id]
			if v == nil {
				v = tensor.Zeros(p.Shape(), p.Value().Device())
				s.velocities[id] = v
			}
			vData := v.Data()
			m := float32(s.momentum)
			for i := range paramData {
				vData[i] = m*vData[i] + gradData[i]
				paramData[i] -= lr * vData[i]
			}
		}
	}
	return nil
}

// StateDict exports momentum buffers. Without momentum the state is
// empty.
func (s *SGD) StateDict() *State {
	st := newState()
	for id, v := range s.velocities {
		if v != nil {
			st.Tensors[stateKey(id, "velocity")] = v.Clone()
		}
	}
	return st
}

// LoadStateDict restores momentum buffers by parameter id. Buffers
// absent from the state stay unallocated.
func (s *SGD) LoadStateDict(state *State) error {
	if state == nil {
		return nil
	}
	for id := range s.params {
		if v, ok := state.Tensors[stateKey(id, "velocity")]; ok {
			s.velocities[id] = v.Clone()
		}
	}
	return nil
}
