package training

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/1637mishenlan/OpenNMT-tf/IO"
	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
)

// StepResult is the outcome of one micro-step.
type StepResult struct {
	// Loss is the normalized loss, averaged across replicas.
	Loss float64
	// NumWords maps "source"/"target" to word counts summed across replicas.
	NumWords map[string]float64
	// Applied reports whether the accumulated gradients were handed to the
	// optimizer on this micro-step.
	Applied bool
	// Step is the optimizer's iteration counter after the micro-step.
	Step int
}

// StepExecutor runs one forward+backward micro-step per replica concurrently,
// reduces their results, and applies the gradient accumulator every
// accumSteps micro-steps (and always on the very first one).
type StepExecutor struct {
	optimizer   *optimizations.Adam
	dataset     IO.Dataset
	variables   []*mat.Dense
	accumulator *GradientAccumulator
	replicas    []Model
	accumSteps  int
	clipNorm    float64
	microStep   int
}

func NewStepExecutor(model Model, optimizer *optimizations.Adam, dataset IO.Dataset,
	numReplicas, accumSteps int, clipNorm float64) *StepExecutor {

	if numReplicas < 1 {
		numReplicas = 1
	}
	if accumSteps < 1 {
		accumSteps = 1
	}
	replicas := make([]Model, numReplicas)
	for i := range replicas {
		replicas[i] = model.CloneForGrads()
	}
	variables := model.Variables()
	return &StepExecutor{
		optimizer:   optimizer,
		dataset:     dataset,
		variables:   variables,
		accumulator: NewGradientAccumulator(variables),
		replicas:    replicas,
		accumSteps:  accumSteps,
		clipNorm:    clipNorm,
	}
}

type replicaResult struct {
	loss     float64
	numWords map[string]float64
	err      error
}

// RunStep executes one micro-step. It returns IO.ErrStreamExhausted once the
// dataset has no batch left for every replica.
func (e *StepExecutor) RunStep() (StepResult, error) {
	batches := make([]IO.Batch, len(e.replicas))
	for i := range batches {
		b, err := e.dataset.Next()
		if err != nil {
			return StepResult{}, err
		}
		batches[i] = b
	}

	step := e.optimizer.Iterations()
	results := make([]replicaResult, len(e.replicas))
	var wg sync.WaitGroup
	for i := range e.replicas {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.runReplica(e.replicas[i], batches[i], step)
		}(i)
	}
	wg.Wait()

	// Reduce: mean for loss, sum for word counts.
	loss := 0.0
	numWords := make(map[string]float64)
	for _, r := range results {
		if r.err != nil {
			return StepResult{}, r.err
		}
		loss += r.loss
		for k, v := range r.numWords {
			numWords[k] += v
		}
	}
	loss /= float64(len(results))

	applied := false
	if e.microStep == 0 || (e.microStep+1)%e.accumSteps == 0 {
		e.accumulator.ApplyAndReset(e.optimizer, e.variables, e.clipNorm)
		applied = true
	}
	e.microStep++

	return StepResult{
		Loss:     loss,
		NumWords: numWords,
		Applied:  applied,
		Step:     e.optimizer.Iterations(),
	}, nil
}

func (e *StepExecutor) runReplica(m Model, b IO.Batch, step int) replicaResult {
	outputs := m.Call(b.Source, b.Target, step, true)
	numerator, denominator := m.ComputeLoss(outputs, b.Target, true)
	loss := numerator / denominator
	grads, err := m.ComputeGradients(outputs, e.variables)
	if err != nil {
		return replicaResult{err: err}
	}
	if err := e.accumulator.Accumulate(grads); err != nil {
		return replicaResult{err: err}
	}
	numWords := make(map[string]float64)
	if n, ok := b.Source.NumWords(); ok {
		numWords["source"] = n
	}
	if n, ok := b.Target.NumWords(); ok {
		numWords["target"] = n
	}
	return replicaResult{loss: loss, numWords: numWords}
}
