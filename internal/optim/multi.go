package optim

import (
	"github.com/pkg/errors"

	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// MultiOptimizer composes independent optimizer instances behind the
// single Optimizer interface. The builder uses it to pair a dense
// algorithm with a sparse-gradient-capable one over disjoint parameter
// sets, so sequential delegation needs no coordination.
type MultiOptimizer struct {
	optimizers []Optimizer
}

// NewMultiOptimizer wraps the given optimizers. Order is significant:
// Step delegates in this order and state is positional.
func NewMultiOptimizer(optimizers ...Optimizer) *MultiOptimizer {
	return &MultiOptimizer{optimizers: optimizers}
}

// Inner returns the wrapped optimizers in order.
func (m *MultiOptimizer) Inner() []Optimizer { return m.optimizers }

// ParamGroups concatenates the inner optimizers' groups in wrap order.
func (m *MultiOptimizer) ParamGroups() []*ParamGroup {
	var groups []*ParamGroup
	for _, opt := range m.optimizers {
		groups = append(groups, opt.ParamGroups()...)
	}
	return groups
}

// ZeroGrad delegates to every inner optimizer.
func (m *MultiOptimizer) ZeroGrad() {
	for _, opt := range m.optimizers {
		opt.ZeroGrad()
	}
}

// Step delegates to every inner optimizer in fixed order. The first
// error aborts the remaining delegations.
func (m *MultiOptimizer) Step() error {
	for _, opt := range m.optimizers {
		if err := opt.Step(); err != nil {
			return err
		}
	}
	return nil
}

// StateDict serializes each inner optimizer independently, in order.
func (m *MultiOptimizer) StateDict() *State {
	st := &State{}
	for _, opt := range m.optimizers {
		st.Inner = append(st.Inner, opt.StateDict())
	}
	return st
}

// LoadStateDict restores each inner optimizer positionally. A length
// mismatch between the state and the wrapped optimizers is an error.
func (m *MultiOptimizer) LoadStateDict(state *State) error {
	if state == nil {
		return nil
	}
	if len(state.Inner) != len(m.optimizers) {
		return errors.Errorf("multi optimizer state has %d entries, want %d",
			len(state.Inner), len(m.optimizers))
	}
	for i, opt := range m.optimizers {
		if err := opt.LoadStateDict(state.Inner[i]); err != nil {
			return errors.Wrapf(err, "inner optimizer %d", i)
		}
	}
	return nil
}

// MergedState returns a diagnostic view of all inner per-parameter
// state under position-prefixed keys. Parameter sets are disjoint, so
// nothing collides semantically; the prefix keeps the ids distinct.
func (m *MultiOptimizer) MergedState() map[string]*tensor.Tensor {
	merged := make(map[string]*tensor.Tensor)
	for i, opt := range m.optimizers {
		st := opt.StateDict()
		for key, t := range st.Tensors {
			merged[stateKey(i, key)] = t
		}
	}
	return merged
}
