package optim

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/gradientlab-ml/gradient/internal/nn"
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// ParamGroup is an ordered set of parameters sharing hyperparameters.
// Membership is fixed at construction; only LR is rewritten, by the
// controller, on every step.
type ParamGroup struct {
	Params []*nn.Parameter

	// LR is the instantaneous learning rate for this group.
	LR float64

	// Factor is the discriminative fine-tuning multiplier; the
	// controller sets LR = Factor * rate when it is non-zero. Zero
	// means "no factor" (plain groups).
	Factor float64
}

// NumElements counts trainable elements in the group.
func (g *ParamGroup) NumElements() int {
	n := 0
	for _, p := range g.Params {
		if p.RequiresGrad() {
			n += p.NumElements()
		}
	}
	return n
}

// State is an optimizer's serializable state: per-parameter step
// counters and state tensors, keyed by the stable parameter index the
// optimizer assigned at construction. Inner is used only by
// MultiOptimizer, holding one State per wrapped optimizer in order.
type State struct {
	Steps   map[int]int
	Tensors map[string]*tensor.Tensor
	Inner   []*State
}

func newState() *State {
	return &State{Steps: make(map[int]int), Tensors: make(map[string]*tensor.Tensor)}
}

// Optimizer is the interface all optimization algorithms implement.
// Step applies the pending gradients to the parameters; it is fatal on
// gradients the algorithm cannot consume (e.g. sparse into Adam).
type Optimizer interface {
	Step() error
	ZeroGrad()
	ParamGroups() []*ParamGroup
	StateDict() *State
	LoadStateDict(state *State) error
}

// base carries the group bookkeeping shared by the concrete
// algorithms: the groups themselves and a stable integer id per
// parameter, assigned once at construction and used to key state.
type base struct {
	groups []*ParamGroup
	index  map[*nn.Parameter]int
	params []*nn.Parameter // id -> parameter
}

func newBase(groups []*ParamGroup) *base {
	b := &base{groups: groups, index: make(map[*nn.Parameter]int)}
	for _, g := range groups {
		for _, p := range g.Params {
			if _, ok := b.index[p]; ok {
				continue
			}
			b.index[p] = len(b.params)
			b.params = append(b.params, p)
		}
	}
	return b
}

// singleGroup wraps a flat parameter list into one unfactored group.
func singleGroup(params []*nn.Parameter, lr float64) []*ParamGroup {
	return []*ParamGroup{{Params: params, LR: lr}}
}

func (b *base) ParamGroups() []*ParamGroup { return b.groups }

func (b *base) ZeroGrad() {
	for _, p := range b.params {
		p.ZeroGrad()
	}
}

// stateKey names a per-parameter state tensor in a State dict.
func stateKey(id int, name string) string {
	return fmt.Sprintf("%d.%s", id, name)
}

// errSparseGrad builds the fatal error for algorithms that forbid
// sparse gradients.
func errSparseGrad(algo string) error {
	return errors.Errorf("%s does not support sparse gradients, use sparseadam instead", algo)
}
