// Package model implements a small lexical translation scorer used to
// exercise the training loop end to end.
package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/1637mishenlan/OpenNMT-tf/IO"
	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
	"github.com/1637mishenlan/OpenNMT-tf/training"
	"github.com/1637mishenlan/OpenNMT-tf/utils"
)

// Lexical scores target tokens from a normalized bag of source tokens through
// a single (tgtVocab x srcVocab) weight matrix. Gradients are exact, which
// keeps the accumulation math checkable against finite differences.
type Lexical struct {
	srcVocab int
	tgtVocab int
	w        *mat.Dense
}

func NewLexical(srcVocab, tgtVocab int) *Lexical {
	return &Lexical{srcVocab: srcVocab, tgtVocab: tgtVocab}
}

// forwardCache is the replica-private state of one forward pass.
type forwardCache struct {
	x      *mat.Dense // (srcVocab x 1) normalized source bag
	logits *mat.Dense // (tgtVocab x 1)
	tgtIDs []int
}

func (m *Lexical) CreateVariables(opt *optimizations.Adam) {
	if m.w == nil {
		m.w = mat.NewDense(m.tgtVocab, m.srcVocab,
			utils.RandomArray(m.tgtVocab*m.srcVocab, float64(m.srcVocab)))
	}
	if opt != nil {
		opt.CreateSlots(m.Variables())
	}
}

func (m *Lexical) Variables() []*mat.Dense {
	return []*mat.Dense{m.w}
}

// CloneForGrads shares the weight matrix read-only; forward caches are
// per-call values, so the clone is safe for concurrent use.
func (m *Lexical) CloneForGrads() training.Model {
	return &Lexical{srcVocab: m.srcVocab, tgtVocab: m.tgtVocab, w: m.w}
}

func (m *Lexical) Call(source, target IO.Side, step int, train bool) training.Outputs {
	srcIDs := source.IDs()
	x := mat.NewDense(m.srcVocab, 1, nil)
	for _, id := range srcIDs {
		if id >= 0 && id < m.srcVocab {
			x.Set(id, 0, x.At(id, 0)+1)
		}
	}
	if len(srcIDs) > 0 {
		x.Scale(1/float64(len(srcIDs)), x)
	}
	logits := utils.ToDense(utils.Dot(m.w, x))
	return &forwardCache{x: x, logits: logits, tgtIDs: target.IDs()}
}

func (m *Lexical) ComputeLoss(outputs training.Outputs, target IO.Side, train bool) (float64, float64) {
	c := outputs.(*forwardCache)
	numerator := 0.0
	for _, id := range c.tgtIDs {
		loss, _ := utils.CrossEntropyWithIndex(c.logits, id)
		numerator += loss
	}
	return numerator, float64(len(c.tgtIDs))
}

func (m *Lexical) ComputeGradients(outputs training.Outputs, variables []*mat.Dense) ([]*mat.Dense, error) {
	c := outputs.(*forwardCache)
	if len(variables) != 1 {
		return nil, &training.ShapeMismatchError{Index: -1, GotRows: len(variables), WantRows: 1}
	}
	dLogits := mat.NewDense(m.tgtVocab, 1, nil)
	for _, id := range c.tgtIDs {
		_, g := utils.CrossEntropyWithIndex(c.logits, id)
		dLogits.Add(dLogits, g)
	}
	// Gradient of the normalized loss numerator/denominator.
	dW := utils.ToDense(utils.Dot(dLogits, c.x.T()))
	if n := len(c.tgtIDs); n > 0 {
		dW.Scale(1/float64(n), dW)
	}
	return []*mat.Dense{dW}, nil
}
