package optim

import "math"

// DecayFunc maps the current decay step to a multiplicative
// learning-rate scale (not an absolute rate). Step counters start at
// 1, so implementations may assume step >= 1.
type DecayFunc func(step int) float64

// NoamDecay is the schedule from "Attention Is All You Need":
// modelDim^-0.5 * min(step^-0.5, step * warmupSteps^-1.5).
// Undefined at step 0; callers never invoke it there.
func NoamDecay(step, warmupSteps, modelDim int) float64 {
	return math.Pow(float64(modelDim), -0.5) *
		math.Min(math.Pow(float64(step), -0.5),
			float64(step)*math.Pow(float64(warmupSteps), -1.5))
}

// RsqrtDecay decays with the reciprocal square root of the step,
// held flat until warmup ends: 1/sqrt(max(step, warmupSteps)).
func RsqrtDecay(step, warmupSteps int) float64 {
	n := step
	if warmupSteps > n {
		n = warmupSteps
	}
	return 1.0 / math.Sqrt(float64(n))
}

// SlantedTriangularDecay implements the slanted triangular schedule
// from the ULMFiT discriminative fine-tuning recipe.
// Requires warmupSteps < trainSteps, validated at build time.
func SlantedTriangularDecay(step, warmupSteps, trainSteps int, ratio float64) float64 {
	cut := float64(warmupSteps)
	cutFrac := float64(warmupSteps) / float64(trainSteps)
	p := math.Min(float64(step)/cut, 1-(float64(step)-cut)/(cut*(1/cutFrac-1)))
	return (1 + p*(ratio-1)) / ratio
}

// InverseSqrtWarmupDecay ramps linearly from 1/warmupInitFactor to 1
// over [0, warmupSteps), then decays as sqrt(warmupSteps/step).
func InverseSqrtWarmupDecay(step, warmupSteps int, warmupInitFactor float64) float64 {
	if step < warmupSteps {
		return 1.0/warmupInitFactor + (1-1.0/warmupInitFactor)/float64(warmupSteps)*float64(step)
	}
	return math.Sqrt(float64(warmupSteps) / float64(step))
}

// ExponentialDecay scales the rate by rate every decaySteps steps
// once startStep has passed: rate ^ floor(max(step-startStep+decaySteps, 0) / decaySteps).
func ExponentialDecay(step int, rate float64, decaySteps, startStep int) float64 {
	n := step - startStep + decaySteps
	if n < 0 {
		n = 0
	}
	return math.Pow(rate, float64(n/decaySteps))
}

// MakeDecayFn selects the decay function from configuration. A nil
// function (with nil error) means no decay: the learning rate stays at
// the base rate.
func MakeDecayFn(cfg *Config) (DecayFunc, error) {
	switch cfg.DecayMethod {
	case "noam":
		warmup, dim := cfg.WarmupSteps, cfg.ModelDim
		return func(step int) float64 { return NoamDecay(step, warmup, dim) }, nil
	case "rsqrt":
		warmup := cfg.WarmupSteps
		return func(step int) float64 { return RsqrtDecay(step, warmup) }, nil
	case "stlr":
		if cfg.WarmupSteps > cfg.TrainSteps {
			return nil, configErrorf("stlr decay: warmup steps (%d) must be smaller than train steps (%d)",
				cfg.WarmupSteps, cfg.TrainSteps)
		}
		warmup, train, ratio := cfg.WarmupSteps, cfg.TrainSteps, cfg.STLRRatio
		return func(step int) float64 { return SlantedTriangularDecay(step, warmup, train, ratio) }, nil
	case "invsq":
		warmup, init := cfg.WarmupSteps, cfg.WarmupInitFactor
		return func(step int) float64 { return InverseSqrtWarmupDecay(step, warmup, init) }, nil
	}
	if cfg.StartDecaySteps > 0 {
		rate, decay, start := cfg.LearningRateDecay, cfg.DecaySteps, cfg.StartDecaySteps
		return func(step int) float64 { return ExponentialDecay(step, rate, decay, start) }, nil
	}
	return nil, nil
}
