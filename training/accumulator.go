package training

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
	"github.com/1637mishenlan/OpenNMT-tf/utils"
)

// GradientAccumulator holds one zero-initialized slot per trainable
// parameter. Replicas add step gradients concurrently; ApplyAndReset is
// atomic with respect to those additions.
type GradientAccumulator struct {
	mu    sync.Mutex
	slots []*mat.Dense
}

func NewGradientAccumulator(variables []*mat.Dense) *GradientAccumulator {
	slots := make([]*mat.Dense, len(variables))
	for i, v := range variables {
		slots[i] = utils.ZerosLike(v)
	}
	return &GradientAccumulator{slots: slots}
}

// Accumulate adds each step gradient into its slot, in parameter order. The
// gradient sequence must match the parameter sequence in count and shape.
func (a *GradientAccumulator) Accumulate(stepGrads []*mat.Dense) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(stepGrads) != len(a.slots) {
		return &ShapeMismatchError{Index: -1, GotRows: len(stepGrads), WantRows: len(a.slots)}
	}
	for i, g := range stepGrads {
		sr, sc := a.slots[i].Dims()
		gr, gc := g.Dims()
		if gr != sr || gc != sc {
			return &ShapeMismatchError{Index: i, WantRows: sr, WantCols: sc, GotRows: gr, GotCols: gc}
		}
	}
	for i, g := range stepGrads {
		a.slots[i].Add(a.slots[i], g)
	}
	return nil
}

// ApplyAndReset hands the accumulated gradients to the optimizer's update
// rule, then zeroes every slot. clipNorm <= 0 disables gradient clipping.
func (a *GradientAccumulator) ApplyAndReset(opt *optimizations.Adam, variables []*mat.Dense, clipNorm float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	utils.ClipGrads(clipNorm, a.slots...)
	opt.ApplyGradients(a.slots, variables)
	for _, s := range a.slots {
		s.Zero()
	}
}
