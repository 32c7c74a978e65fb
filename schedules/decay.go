// Package schedules defines learning rate decay functions.
package schedules

import "math"

// Schedule maps a global training step to a learning rate value. All
// hyperparameters are fixed at construction; implementations hold no mutable
// state, so the same step always yields the same rate.
type Schedule interface {
	Rate(step int) float64
}

// NoamDecay is the decay function described in https://arxiv.org/abs/1706.03762.
type NoamDecay struct {
	scale       float64
	modelDim    float64
	warmupSteps float64
}

func NewNoamDecay(scale float64, modelDim, warmupSteps int) NoamDecay {
	return NoamDecay{
		scale:       scale,
		modelDim:    float64(modelDim),
		warmupSteps: float64(warmupSteps),
	}
}

func (d NoamDecay) Rate(step int) float64 {
	// 1-indexed step so the rate is defined at step 0.
	t := float64(step + 1)
	return d.scale * math.Pow(d.modelDim, -0.5) *
		math.Min(math.Pow(t, -0.5), t*math.Pow(d.warmupSteps, -1.5))
}

// RsqrtDecay decays with the reciprocal of the step square root. The rate is
// flat at scale/sqrt(warmupSteps) until warmup ends.
type RsqrtDecay struct {
	scale       float64
	warmupSteps float64
}

func NewRsqrtDecay(scale float64, warmupSteps int) RsqrtDecay {
	return RsqrtDecay{scale: scale, warmupSteps: float64(warmupSteps)}
}

func (d RsqrtDecay) Rate(step int) float64 {
	return d.scale / math.Sqrt(math.Max(float64(step), d.warmupSteps))
}

// CosineAnnealing anneals the rate between etaMax and etaMin over maxStep
// steps, optionally after a linear warmup from 0 to etaMax. A warmupSteps
// value <= 0 disables the warmup branch.
type CosineAnnealing struct {
	etaMax      float64
	etaMin      float64
	maxStep     float64
	warmupSteps float64
}

func NewCosineAnnealing(etaMax, etaMin float64, maxStep, warmupSteps int) CosineAnnealing {
	return CosineAnnealing{
		etaMax:      etaMax,
		etaMin:      etaMin,
		maxStep:     float64(maxStep),
		warmupSteps: float64(warmupSteps),
	}
}

func (d CosineAnnealing) Rate(step int) float64 {
	t := float64(step)
	if d.warmupSteps > 0 && t < d.warmupSteps {
		return d.etaMax * t / d.warmupSteps
	}
	return d.etaMin + 0.5*(d.etaMax-d.etaMin)*(1+math.Cos(math.Pi*t/d.maxStep))
}

// RNMTPlusDecay is the decay function described in https://arxiv.org/abs/1804.09849.
// It takes the minimum of a linear warmup ramp, a replica-count ceiling, and an
// exponential decay between startStep and endStep.
type RNMTPlusDecay struct {
	scale       float64
	numReplicas float64
	warmupSteps float64
	startStep   float64
	endStep     float64
}

func NewRNMTPlusDecay(scale float64, numReplicas, warmupSteps, startStep, endStep int) RNMTPlusDecay {
	return RNMTPlusDecay{
		scale:       scale,
		numReplicas: float64(numReplicas),
		warmupSteps: float64(warmupSteps),
		startStep:   float64(startStep),
		endStep:     float64(endStep),
	}
}

func (d RNMTPlusDecay) Rate(step int) float64 {
	t := float64(step)
	n := d.numReplicas
	p := d.warmupSteps
	s := d.startStep
	e := d.endStep
	warmup := 1 + t*(n-1)/(n*p)
	decay := n * math.Pow(2*n, (s-n*t)/(e-s))
	return d.scale * math.Min(math.Min(warmup, n), decay)
}
