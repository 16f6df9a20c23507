package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradientlab-ml/gradient/internal/nn"
)

func TestMultiOptimizer_DelegatesStep(t *testing.T) {
	a := vecParam(t, "a", 1.0)
	b := vecParam(t, "b", 1.0)
	multi := NewMultiOptimizer(
		NewSGD(singleGroup([]*nn.Parameter{a}, 0.1), SGDConfig{LR: 0.1}),
		NewSGD(singleGroup([]*nn.Parameter{b}, 0.5), SGDConfig{LR: 0.5}),
	)

	setGrad(t, a, 1.0)
	setGrad(t, b, 1.0)
	require.NoError(t, multi.Step())

	assert.InDelta(t, 0.9, a.Value().Data()[0], 1e-6)
	assert.InDelta(t, 0.5, b.Value().Data()[0], 1e-6)
}

func TestMultiOptimizer_ZeroGrad(t *testing.T) {
	a := vecParam(t, "a", 1.0)
	b := vecParam(t, "b", 1.0)
	multi := NewMultiOptimizer(
		NewSGD(singleGroup([]*nn.Parameter{a}, 0.1), SGDConfig{LR: 0.1}),
		NewSGD(singleGroup([]*nn.Parameter{b}, 0.1), SGDConfig{LR: 0.1}),
	)
	setGrad(t, a, 1.0)
	setGrad(t, b, 1.0)

	multi.ZeroGrad()
	assert.Nil(t, a.Grad())
	assert.Nil(t, b.Grad())
}

func TestMultiOptimizer_ParamGroupsConcat(t *testing.T) {
	a := vecParam(t, "a", 1.0)
	b := vecParam(t, "b", 1.0)
	multi := NewMultiOptimizer(
		NewSGD(singleGroup([]*nn.Parameter{a}, 0.1), SGDConfig{LR: 0.1}),
		NewSGD(singleGroup([]*nn.Parameter{b}, 0.2), SGDConfig{LR: 0.2}),
	)
	groups := multi.ParamGroups()
	require.Len(t, groups, 2)
	assert.True(t, containsParam(groups[0].Params, a))
	assert.True(t, containsParam(groups[1].Params, b))
}

func TestMultiOptimizer_StateRoundTrip(t *testing.T) {
	a1 := vecParam(t, "a", 1.0)
	b1 := vecParam(t, "b", 1.0)
	m1 := NewMultiOptimizer(
		NewAdam(singleGroup([]*nn.Parameter{a1}, 0.01), AdamConfig{LR: 0.01}),
		NewSparseAdam(singleGroup([]*nn.Parameter{b1}, 0.01), AdamConfig{LR: 0.01}),
	)
	for i := 0; i < 2; i++ {
		setGrad(t, a1, 0.5)
		setGrad(t, b1, -0.5)
		require.NoError(t, m1.Step())
	}

	st := m1.StateDict()
	require.Len(t, st.Inner, 2)

	a2 := vecParam(t, "a", a1.Value().Data()...)
	b2 := vecParam(t, "b", b1.Value().Data()...)
	m2 := NewMultiOptimizer(
		NewAdam(singleGroup([]*nn.Parameter{a2}, 0.01), AdamConfig{LR: 0.01}),
		NewSparseAdam(singleGroup([]*nn.Parameter{b2}, 0.01), AdamConfig{LR: 0.01}),
	)
	require.NoError(t, m2.LoadStateDict(st))

	setGrad(t, a1, 0.5)
	setGrad(t, b1, -0.5)
	setGrad(t, a2, 0.5)
	setGrad(t, b2, -0.5)
	require.NoError(t, m1.Step())
	require.NoError(t, m2.Step())

	assert.InDelta(t, a1.Value().Data()[0], a2.Value().Data()[0], 1e-7)
	assert.InDelta(t, b1.Value().Data()[0], b2.Value().Data()[0], 1e-7)
}

func TestMultiOptimizer_StateLengthMismatch(t *testing.T) {
	a := vecParam(t, "a", 1.0)
	multi := NewMultiOptimizer(
		NewSGD(singleGroup([]*nn.Parameter{a}, 0.1), SGDConfig{LR: 0.1}),
	)
	err := multi.LoadStateDict(&State{Inner: []*State{newState(), newState()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 1")
}

func TestMultiOptimizer_MergedState(t *testing.T) {
	a := vecParam(t, "a", 1.0)
	b := vecParam(t, "b", 1.0)
	multi := NewMultiOptimizer(
		NewAdam(singleGroup([]*nn.Parameter{a}, 0.01), AdamConfig{LR: 0.01}),
		NewAdam(singleGroup([]*nn.Parameter{b}, 0.01), AdamConfig{LR: 0.01}),
	)
	setGrad(t, a, 0.5)
	setGrad(t, b, 0.5)
	require.NoError(t, multi.Step())

	merged := multi.MergedState()
	assert.Contains(t, merged, "0.0.exp_avg")
	assert.Contains(t, merged, "1.0.exp_avg")
}
