package training

import (
	"log"

	"gonum.org/v1/gonum/floats"

	"github.com/1637mishenlan/OpenNMT-tf/IO"
)

// LossEvaluator measures the mean normalized loss over a held-out set of
// batches and writes its own report.
type LossEvaluator struct {
	model   Model
	batches []IO.Batch
	summary *IO.SummaryWriter
}

func NewLossEvaluator(model Model, batches []IO.Batch, modelDir string) *LossEvaluator {
	return &LossEvaluator{
		model:   model,
		batches: batches,
		summary: IO.NewSummaryWriter(modelDir),
	}
}

func (e *LossEvaluator) Evaluate(step int) {
	if len(e.batches) == 0 {
		return
	}
	clone := e.model.CloneForGrads()
	losses := make([]float64, 0, len(e.batches))
	for _, b := range e.batches {
		outputs := clone.Call(b.Source, b.Target, step, false)
		numerator, denominator := clone.ComputeLoss(outputs, b.Target, false)
		losses = append(losses, numerator/denominator)
	}
	mean := floats.Sum(losses) / float64(len(losses))
	log.Printf("Evaluation at step %d ; Loss = %f", step, mean)
	_ = e.summary.Scalar(step, "eval/loss", mean)
}
