package optim

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoamDecay(t *testing.T) {
	warmup, dim := 4000, 512

	// Rises during warmup, falls after.
	assert.Less(t, NoamDecay(100, warmup, dim), NoamDecay(2000, warmup, dim))
	assert.Greater(t, NoamDecay(warmup, warmup, dim), NoamDecay(20000, warmup, dim))

	// Both branches agree at the warmup boundary.
	rising := float64(warmup) * math.Pow(float64(warmup), -1.5)
	falling := math.Pow(float64(warmup), -0.5)
	assert.InDelta(t, rising, falling, 1e-12)
	assert.InDelta(t, math.Pow(float64(dim), -0.5)*falling, NoamDecay(warmup, warmup, dim), 1e-12)
}

func TestRsqrtDecay(t *testing.T) {
	warmup := 4000

	// Flat until warmup.
	assert.Equal(t, RsqrtDecay(1, warmup), RsqrtDecay(warmup, warmup))
	assert.InDelta(t, 1/math.Sqrt(4000), RsqrtDecay(100, warmup), 1e-12)

	// Then 1/sqrt(step).
	assert.InDelta(t, 0.01, RsqrtDecay(10000, warmup), 1e-12)
}

func TestExponentialDecay(t *testing.T) {
	rate, decaySteps, start := 0.5, 1000, 8000

	// One halving at the start step, held for decaySteps.
	assert.InDelta(t, 0.5, ExponentialDecay(8000, rate, decaySteps, start), 1e-12)
	assert.InDelta(t, 0.5, ExponentialDecay(8999, rate, decaySteps, start), 1e-12)
	assert.InDelta(t, 0.25, ExponentialDecay(9000, rate, decaySteps, start), 1e-12)
	assert.InDelta(t, 0.125, ExponentialDecay(10000, rate, decaySteps, start), 1e-12)

	// Well before the start step the exponent clamps to zero.
	assert.InDelta(t, 1.0, ExponentialDecay(1, rate, decaySteps, start), 1e-12)
}

func TestInverseSqrtWarmupDecay(t *testing.T) {
	warmup, initFactor := 1000, 10.0

	// Linear ramp from 1/initFactor.
	assert.InDelta(t, 0.1, InverseSqrtWarmupDecay(0, warmup, initFactor), 1e-12)
	mid := 0.1 + 0.9/2
	assert.InDelta(t, mid, InverseSqrtWarmupDecay(500, warmup, initFactor), 1e-12)

	// sqrt(warmup/step) afterwards.
	assert.InDelta(t, 1.0, InverseSqrtWarmupDecay(warmup, warmup, initFactor), 1e-12)
	assert.InDelta(t, 0.5, InverseSqrtWarmupDecay(4000, warmup, initFactor), 1e-12)
}

func TestSlantedTriangularDecay(t *testing.T) {
	warmup, train, ratio := 100, 1000, 32.0

	// Peaks at the cut.
	peak := SlantedTriangularDecay(warmup, warmup, train, ratio)
	assert.InDelta(t, 1.0, peak, 1e-12)
	assert.Less(t, SlantedTriangularDecay(10, warmup, train, ratio), peak)
	assert.Less(t, SlantedTriangularDecay(900, warmup, train, ratio), peak)
}

func TestMakeDecayFn_Selection(t *testing.T) {
	fn, err := MakeDecayFn(&Config{DecayMethod: "noam", WarmupSteps: 4000, ModelDim: 512})
	require.NoError(t, err)
	require.NotNil(t, fn)
	assert.InDelta(t, NoamDecay(10, 4000, 512), fn(10), 1e-12)

	fn, err = MakeDecayFn(&Config{DecayMethod: "rsqrt", WarmupSteps: 4000})
	require.NoError(t, err)
	assert.InDelta(t, RsqrtDecay(9, 4000), fn(9), 1e-12)

	fn, err = MakeDecayFn(&Config{DecayMethod: "invsq", WarmupSteps: 1000, WarmupInitFactor: 10})
	require.NoError(t, err)
	assert.InDelta(t, InverseSqrtWarmupDecay(9, 1000, 10), fn(9), 1e-12)

	fn, err = MakeDecayFn(&Config{DecayMethod: "stlr", WarmupSteps: 100, TrainSteps: 1000, STLRRatio: 32})
	require.NoError(t, err)
	assert.InDelta(t, SlantedTriangularDecay(50, 100, 1000, 32), fn(50), 1e-12)
}

func TestMakeDecayFn_StlrValidation(t *testing.T) {
	_, err := MakeDecayFn(&Config{DecayMethod: "stlr", WarmupSteps: 2000, TrainSteps: 1000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestMakeDecayFn_NoDecay(t *testing.T) {
	fn, err := MakeDecayFn(&Config{})
	require.NoError(t, err)
	assert.Nil(t, fn)
}

func TestMakeDecayFn_ExponentialFallback(t *testing.T) {
	// Any unrecognized method falls through to exponential decay when a
	// start step is configured.
	for _, method := range []string{"", "cosine"} {
		fn, err := MakeDecayFn(&Config{
			DecayMethod:       method,
			LearningRateDecay: 0.5,
			DecaySteps:        1000,
			StartDecaySteps:   8000,
		})
		require.NoError(t, err)
		require.NotNil(t, fn)
		assert.InDelta(t, 0.25, fn(9000), 1e-12)
	}

	// Without a start step an unknown method means no decay.
	fn, err := MakeDecayFn(&Config{DecayMethod: "cosine"})
	require.NoError(t, err)
	assert.Nil(t, fn)
}
