// Package optimizations implements the parameter update rules used during
// training.
package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/1637mishenlan/OpenNMT-tf/schedules"
	"github.com/1637mishenlan/OpenNMT-tf/utils"
)

// Adam applies AdamW updates in place on gonum matrices. It owns the
// authoritative global step counter: Iterations advances by exactly one per
// ApplyGradients call, never during gradient accumulation.
type Adam struct {
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	// LR is the fixed learning rate, used when Schedule is nil.
	LR       float64
	Schedule schedules.Schedule

	iterations int
	m, v       []*mat.Dense
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		LR:    lr,
	}
}

// Iterations returns the number of updates applied so far.
func (a *Adam) Iterations() int {
	return a.iterations
}

// SetIterations overrides the step counter, used when resuming from a
// checkpoint.
func (a *Adam) SetIterations(step int) {
	a.iterations = step
}

// Rate resolves the learning rate at the given step: the schedule value when a
// schedule is attached, the fixed rate otherwise.
func (a *Adam) Rate(step int) float64 {
	if a.Schedule != nil {
		return a.Schedule.Rate(step)
	}
	return a.LR
}

// LearningRate resolves the learning rate at the current step.
func (a *Adam) LearningRate() float64 {
	return a.Rate(a.iterations)
}

// CreateSlots sizes the first and second moment buffers for the given
// parameters. ApplyGradients also does this lazily.
func (a *Adam) CreateSlots(params []*mat.Dense) {
	if len(a.m) == len(params) {
		return
	}
	a.m = make([]*mat.Dense, len(params))
	a.v = make([]*mat.Dense, len(params))
	for i, p := range params {
		a.m[i] = utils.ZerosLike(p)
		a.v[i] = utils.ZerosLike(p)
	}
}

// Slots exposes the moment buffers for checkpointing.
func (a *Adam) Slots() (m, v []*mat.Dense) {
	return a.m, a.v
}

// ApplyGradients applies one AdamW update for every (gradient, parameter)
// pair and advances the step counter by one. Pairs must line up with the
// parameter order used to create the slots.
func (a *Adam) ApplyGradients(grads, params []*mat.Dense) {
	if len(grads) != len(params) {
		panic("ApplyGradients: gradient/parameter count mismatch")
	}
	a.CreateSlots(params)
	a.iterations++
	t := a.iterations
	lr := a.Rate(t)

	b1t := math.Pow(a.Beta1, float64(t))
	b2t := math.Pow(a.Beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)

	for k, p := range params {
		g := grads[k]
		m := a.m[k]
		v := a.v[k]
		pr, pc := p.Dims()
		if gr, gc := g.Dims(); gr != pr || gc != pc {
			panic("ApplyGradients: grad shape mismatch")
		}
		for i := 0; i < pr; i++ {
			for j := 0; j < pc; j++ {
				gij := g.At(i, j)
				mij := a.Beta1*m.At(i, j) + (1.0-a.Beta1)*gij
				vij := a.Beta2*v.At(i, j) + (1.0-a.Beta2)*gij*gij
				mhat := mij * c1
				vhat := vij * c2
				update := mhat/(math.Sqrt(vhat)+a.Eps) + a.WeightDecay*p.At(i, j)
				m.Set(i, j, mij)
				v.Set(i, j, vij)
				p.Set(i, j, p.At(i, j)-lr*update)
			}
		}
	}
}
