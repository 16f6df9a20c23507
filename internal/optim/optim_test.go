package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradientlab-ml/gradient/internal/nn"
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// vecParam creates a dense vector parameter for tests.
func vecParam(t *testing.T, name string, values ...float32) *nn.Parameter {
	t.Helper()
	v, err := tensor.FromSlice(append([]float32(nil), values...), tensor.Shape{len(values)}, tensor.CPU)
	require.NoError(t, err)
	return nn.NewParameter(name, v)
}

// setGrad assigns a dense gradient matching the parameter's shape.
func setGrad(t *testing.T, p *nn.Parameter, values ...float32) {
	t.Helper()
	g, err := tensor.FromSlice(append([]float32(nil), values...), p.Shape(), tensor.CPU)
	require.NoError(t, err)
	p.SetGrad(g)
}

func TestSGD_SimpleUpdate(t *testing.T) {
	p := vecParam(t, "x", 2.0)
	opt := NewSGD(singleGroup([]*nn.Parameter{p}, 0.1), SGDConfig{LR: 0.1})

	setGrad(t, p, 1.0)
	require.NoError(t, opt.Step())

	// x = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, p.Value().Data()[0], 1e-6)
}

func TestSGD_WithMomentum(t *testing.T) {
	p := vecParam(t, "x", 1.0)
	opt := NewSGD(singleGroup([]*nn.Parameter{p}, 0.1), SGDConfig{LR: 0.1, Momentum: 0.9})

	setGrad(t, p, 1.0)
	require.NoError(t, opt.Step())
	// v = 1.0, x = 1.0 - 0.1 = 0.9
	assert.InDelta(t, 0.9, p.Value().Data()[0], 1e-6)

	setGrad(t, p, 1.0)
	require.NoError(t, opt.Step())
	// v = 0.9*1.0 + 1.0 = 1.9, x = 0.9 - 0.19 = 0.71
	assert.InDelta(t, 0.71, p.Value().Data()[0], 1e-6)
}

func TestSGD_SkipsMissingGradients(t *testing.T) {
	p := vecParam(t, "x", 1.0)
	opt := NewSGD(singleGroup([]*nn.Parameter{p}, 0.1), SGDConfig{LR: 0.1})
	require.NoError(t, opt.Step())
	assert.Equal(t, float32(1.0), p.Value().Data()[0])
}

func TestAdam_FirstStepIsSignedLR(t *testing.T) {
	p := vecParam(t, "x", 1.0)
	opt := NewAdam(singleGroup([]*nn.Parameter{p}, 0.01), AdamConfig{LR: 0.01})

	setGrad(t, p, 0.5)
	require.NoError(t, opt.Step())

	// After bias correction the first update is lr * g/|g|.
	assert.InDelta(t, 0.99, p.Value().Data()[0], 1e-4)
}

func TestAdam_RejectsSparseGradients(t *testing.T) {
	v := tensor.Zeros(tensor.Shape{4, 2}, tensor.CPU)
	p := nn.NewParameter("embed", v)
	g, err := tensor.SparseRows(tensor.Shape{4, 2}, []int{1}, []float32{1, 1}, tensor.CPU)
	require.NoError(t, err)
	p.SetGrad(g)

	opt := NewAdam(singleGroup([]*nn.Parameter{p}, 0.01), AdamConfig{})
	err = opt.Step()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sparse")
}

func TestAdagrad_AccumulatorInit(t *testing.T) {
	p := vecParam(t, "x", 1.0)
	opt := NewAdagrad(singleGroup([]*nn.Parameter{p}, 0.1),
		AdagradConfig{LR: 0.1, AccumInit: 0.1})

	setGrad(t, p, 1.0)
	require.NoError(t, opt.Step())

	// sum = 0.1 + 1 = 1.1, x = 1 - 0.1/sqrt(1.1)
	want := 1.0 - 0.1/math.Sqrt(1.1)
	assert.InDelta(t, want, p.Value().Data()[0], 1e-5)
}

func TestAdadelta_FirstStep(t *testing.T) {
	p := vecParam(t, "x", 1.0)
	opt := NewAdadelta(singleGroup([]*nn.Parameter{p}, 1.0), AdadeltaConfig{LR: 1.0})

	setGrad(t, p, 1.0)
	require.NoError(t, opt.Step())

	// sqAvg = 0.1, delta = sqrt(1e-6)/sqrt(0.1+1e-6)
	want := 1.0 - math.Sqrt(1e-6)/math.Sqrt(0.1+1e-6)
	assert.InDelta(t, want, p.Value().Data()[0], 1e-6)
}

func TestFusedAdam_MatchesAdam(t *testing.T) {
	pa := vecParam(t, "x", 1, -2, 3, -4)
	pf := vecParam(t, "x", 1, -2, 3, -4)

	adam := NewAdam(singleGroup([]*nn.Parameter{pa}, 0.01), AdamConfig{LR: 0.01})
	fused := NewFusedAdam(singleGroup([]*nn.Parameter{pf}, 0.01), AdamConfig{LR: 0.01})

	grads := [][]float32{
		{0.5, -0.1, 2.0, 0.0},
		{-1.0, 0.3, 0.3, 1.5},
		{0.2, 0.2, -0.7, -0.7},
	}
	for _, g := range grads {
		setGrad(t, pa, g...)
		setGrad(t, pf, g...)
		require.NoError(t, adam.Step())
		require.NoError(t, fused.Step())
	}

	for i := range pa.Value().Data() {
		assert.InDelta(t, pa.Value().Data()[i], pf.Value().Data()[i], 1e-6)
	}
}

func TestSparseAdam_LazyRowUpdates(t *testing.T) {
	dense := tensor.Zeros(tensor.Shape{4, 2}, tensor.CPU)
	for i := range dense.Data() {
		dense.Data()[i] = 1
	}
	p := nn.NewParameter("embed", dense)
	opt := NewSparseAdam(singleGroup([]*nn.Parameter{p}, 0.1), AdamConfig{LR: 0.1})

	g, err := tensor.SparseRows(tensor.Shape{4, 2}, []int{1, 3}, []float32{1, 1, 1, 1}, tensor.CPU)
	require.NoError(t, err)
	p.SetGrad(g)
	require.NoError(t, opt.Step())

	data := p.Value().Data()
	// Untouched rows keep their values.
	assert.Equal(t, float32(1), data[0])
	assert.Equal(t, float32(1), data[1])
	assert.Equal(t, float32(1), data[4])
	assert.Equal(t, float32(1), data[5])
	// Touched rows move by roughly lr on the first step.
	assert.InDelta(t, 0.9, data[2], 1e-4)
	assert.InDelta(t, 0.9, data[3], 1e-4)
	assert.InDelta(t, 0.9, data[6], 1e-4)
	assert.InDelta(t, 0.9, data[7], 1e-4)
}

func TestSparseAdam_AcceptsDenseGradients(t *testing.T) {
	p := vecParam(t, "x", 1.0)
	opt := NewSparseAdam(singleGroup([]*nn.Parameter{p}, 0.1), AdamConfig{LR: 0.1})
	setGrad(t, p, 1.0)
	require.NoError(t, opt.Step())
	assert.InDelta(t, 0.9, p.Value().Data()[0], 1e-4)
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	p1 := vecParam(t, "x", 1, 2)
	opt1 := NewAdam(singleGroup([]*nn.Parameter{p1}, 0.01), AdamConfig{LR: 0.01})
	for i := 0; i < 3; i++ {
		setGrad(t, p1, 0.5, -0.2)
		require.NoError(t, opt1.Step())
	}

	// Restore into a fresh optimizer over an identical parameter.
	p2 := vecParam(t, "x", p1.Value().Data()...)
	opt2 := NewAdam(singleGroup([]*nn.Parameter{p2}, 0.01), AdamConfig{LR: 0.01})
	require.NoError(t, opt2.LoadStateDict(opt1.StateDict()))

	setGrad(t, p1, 0.5, -0.2)
	setGrad(t, p2, 0.5, -0.2)
	require.NoError(t, opt1.Step())
	require.NoError(t, opt2.Step())

	assert.InDelta(t, p1.Value().Data()[0], p2.Value().Data()[0], 1e-7)
	assert.InDelta(t, p1.Value().Data()[1], p2.Value().Data()[1], 1e-7)
}

func TestConvergence_Quadratic(t *testing.T) {
	// Minimize f(x) = (x-3)^2, gradient 2(x-3).
	cases := []struct {
		name string
		make func(p *nn.Parameter) Optimizer
	}{
		{"sgd", func(p *nn.Parameter) Optimizer {
			return NewSGD(singleGroup([]*nn.Parameter{p}, 0.1), SGDConfig{LR: 0.1})
		}},
		{"adam", func(p *nn.Parameter) Optimizer {
			return NewAdam(singleGroup([]*nn.Parameter{p}, 0.1), AdamConfig{LR: 0.1})
		}},
		{"adagrad", func(p *nn.Parameter) Optimizer {
			return NewAdagrad(singleGroup([]*nn.Parameter{p}, 0.5), AdagradConfig{LR: 0.5})
		}},
		{"adadelta", func(p *nn.Parameter) Optimizer {
			return NewAdadelta(singleGroup([]*nn.Parameter{p}, 10), AdadeltaConfig{LR: 10})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := vecParam(t, "x", 0.0)
			opt := tc.make(p)
			for i := 0; i < 300; i++ {
				x := p.Value().Data()[0]
				setGrad(t, p, 2*(x-3))
				require.NoError(t, opt.Step())
			}
			assert.InDelta(t, 3.0, p.Value().Data()[0], 0.3)
		})
	}
}

func TestClipGradNorm(t *testing.T) {
	p := vecParam(t, "x", 0, 0)
	setGrad(t, p, 3, 4)

	norm := ClipGradNorm([]*nn.Parameter{p}, 1.0)
	assert.InDelta(t, 5.0, norm, 1e-6)
	assert.InDelta(t, 0.6, p.Grad().Data()[0], 1e-6)
	assert.InDelta(t, 0.8, p.Grad().Data()[1], 1e-6)
}

func TestClipGradNorm_BelowThreshold(t *testing.T) {
	p := vecParam(t, "x", 0, 0)
	setGrad(t, p, 0.3, 0.4)

	norm := ClipGradNorm([]*nn.Parameter{p}, 1.0)
	assert.InDelta(t, 0.5, norm, 1e-6)
	assert.InDelta(t, 0.3, p.Grad().Data()[0], 1e-6)
}

func TestClipGradNorm_Disabled(t *testing.T) {
	p := vecParam(t, "x", 0, 0)
	setGrad(t, p, 30, 40)

	norm := ClipGradNorm([]*nn.Parameter{p}, 0)
	assert.Equal(t, 0.0, norm)
	assert.Equal(t, float32(30), p.Grad().Data()[0])
}

func TestBase_StableParameterIDs(t *testing.T) {
	a := vecParam(t, "a", 1)
	b := vecParam(t, "b", 1)
	groups := []*ParamGroup{
		{Params: []*nn.Parameter{a}, LR: 0.1},
		{Params: []*nn.Parameter{b, a}, LR: 0.1}, // duplicate keeps first id
	}
	base := newBase(groups)
	assert.Equal(t, 0, base.index[a])
	assert.Equal(t, 1, base.index[b])
	assert.Len(t, base.params, 2)
}
