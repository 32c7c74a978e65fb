package training

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/1637mishenlan/OpenNMT-tf/IO"
	"github.com/1637mishenlan/OpenNMT-tf/devices"
	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
	"github.com/1637mishenlan/OpenNMT-tf/params"
)

type state int

const (
	stateStarting state = iota
	stateRunning
	stateStopped
)

// Trainer drives the training loop: it iterates the dataset through the step
// executor and triggers reporting, checkpointing, and evaluation on their
// cadences, measured against the optimizer's iteration counter.
type Trainer struct {
	checkpoint *IO.Checkpoint
	model      Model
	optimizer  *optimizations.Adam
	devices    []string
	summary    *IO.SummaryWriter
}

// NewTrainer builds a trainer around a checkpoint and the model it persists.
// deviceList overrides device auto-detection when non-empty.
func NewTrainer(checkpoint *IO.Checkpoint, model Model, deviceList []string) (*Trainer, error) {
	if checkpoint == nil || checkpoint.Optimizer == nil {
		return nil, ConfigurationError("no optimizer is defined")
	}
	return &Trainer{
		checkpoint: checkpoint,
		model:      model,
		optimizer:  checkpoint.Optimizer,
		devices:    devices.Resolve(deviceList),
		summary:    IO.NewSummaryWriter(checkpoint.ModelDir),
	}, nil
}

// Devices returns the resolved replica device names.
func (t *Trainer) Devices() []string {
	return t.devices
}

// Train runs the loop until opts.MaxStep is reached or the dataset is
// exhausted, then saves a final checkpoint tagged with the last observed
// step. evaluator may be nil.
func (t *Trainer) Train(dataset IO.Dataset, evaluator Evaluator, opts params.TrainingOptions) error {
	opts = opts.WithDefaults()

	// Starting: build variables, check the step counter against max_step.
	t.model.CreateVariables(t.optimizer)
	lastStep := t.optimizer.Iterations()
	if opts.MaxStep > 0 && lastStep >= opts.MaxStep {
		log.Printf("Model already reached max_step = %d. Exiting.", opts.MaxStep)
		return t.stop(lastStep)
	}

	executor := NewStepExecutor(t.model, t.optimizer, dataset,
		len(t.devices), opts.AccumSteps, opts.GradClip)
	accumNumWords := make(map[string]float64)
	lastReportTime := time.Now()

	st := stateRunning
	for st == stateRunning {
		result, err := executor.RunStep()
		if errors.Is(err, IO.ErrStreamExhausted) {
			st = stateStopped
			break
		}
		if err != nil {
			return err
		}
		for key, value := range result.NumWords {
			accumNumWords[key] += value
		}
		step := result.Step
		if step == lastStep {
			// Still mid-accumulation, do not process the same step twice.
			continue
		}
		lastStep = step
		if step%opts.ReportSteps == 0 {
			lastReportTime = t.report(step, result.Loss, accumNumWords, lastReportTime)
		}
		if opts.SaveSteps > 0 && step%opts.SaveSteps == 0 {
			if err := t.checkpoint.Save(step); err != nil {
				return err
			}
		}
		if evaluator != nil && opts.EvalSteps > 0 && step%opts.EvalSteps == 0 {
			evaluator.Evaluate(step)
		}
		if opts.MaxStep > 0 && step == opts.MaxStep {
			st = stateStopped
		}
	}
	return t.stop(lastStep)
}

func (t *Trainer) stop(step int) error {
	return errors.Wrapf(t.checkpoint.Save(step), "save final checkpoint at step %d", step)
}

// report emits the throughput/loss/learning-rate status line and scalar
// summaries, and resets the word-count accumulator.
func (t *Trainer) report(step int, loss float64, accumNumWords map[string]float64, lastReportTime time.Time) time.Time {
	now := time.Now()
	elapsed := now.Sub(lastReportTime).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-6
	}
	wordsPerSec := make([]string, 0, len(accumNumWords))
	for key, value := range accumNumWords {
		avg := int(value / elapsed)
		_ = t.summary.Scalar(step, "words_per_sec/"+key, float64(avg))
		wordsPerSec = append(wordsPerSec, fmt.Sprintf("%s words/s = %d", key, avg))
		accumNumWords[key] = 0
	}
	sort.Strings(wordsPerSec)
	learningRate := t.optimizer.Rate(step)
	log.Printf("Step = %d ; %s ; Learning rate = %f ; Loss = %f",
		step, strings.Join(wordsPerSec, ", "), learningRate, loss)
	_ = t.summary.Scalar(step, "loss", loss)
	_ = t.summary.Scalar(step, "optim/learning_rate", learningRate)
	return now
}
