package training_test

import (
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/1637mishenlan/OpenNMT-tf/IO"
	"github.com/1637mishenlan/OpenNMT-tf/model"
	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
	"github.com/1637mishenlan/OpenNMT-tf/params"
	"github.com/1637mishenlan/OpenNMT-tf/training"
)

func makeBatches(n int) []IO.Batch {
	batches := make([]IO.Batch, n)
	for i := range batches {
		batches[i] = IO.NewBatch([]int{i % 4, (i + 1) % 4}, []int{(i + 2) % 4})
	}
	return batches
}

func newTestSetup(t *testing.T) (*training.Trainer, *optimizations.Adam, *IO.Checkpoint) {
	t.Helper()
	m := model.NewLexical(4, 4)
	opt := optimizations.NewAdam(0.01)
	ckpt := &IO.Checkpoint{
		Model:     m,
		Optimizer: opt,
		ModelDir:  filepath.Join(t.TempDir(), "run"),
	}
	tr, err := training.NewTrainer(ckpt, m, []string{"cpu:0"})
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}
	return tr, opt, ckpt
}

func TestNewTrainerRequiresOptimizer(t *testing.T) {
	m := model.NewLexical(4, 4)
	ckpt := &IO.Checkpoint{Model: m, ModelDir: t.TempDir()}
	_, err := training.NewTrainer(ckpt, m, nil)
	var confErr training.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestExecutorAppliesEveryAccumSteps(t *testing.T) {
	m := model.NewLexical(4, 4)
	opt := optimizations.NewAdam(0.01)
	m.CreateVariables(opt)
	dataset := IO.NewSliceDataset(makeBatches(9)...)

	exec := training.NewStepExecutor(m, opt, dataset, 1, 3, 0)
	wantApplied := []bool{true, false, true, false, false, true, false, false, true}
	for i, want := range wantApplied {
		res, err := exec.RunStep()
		if err != nil {
			t.Fatalf("RunStep %d: %v", i, err)
		}
		if res.Applied != want {
			t.Fatalf("micro-step %d: Applied = %v, want %v", i, res.Applied, want)
		}
	}
	// 9 micro-steps with accum_steps=3 give 4 updates (the first micro-step
	// always applies).
	if got := opt.Iterations(); got != 4 {
		t.Fatalf("Iterations = %d, want 4", got)
	}
}

func TestExecutorReportsStreamExhausted(t *testing.T) {
	m := model.NewLexical(4, 4)
	opt := optimizations.NewAdam(0.01)
	m.CreateVariables(opt)
	exec := training.NewStepExecutor(m, opt, IO.NewSliceDataset(), 1, 1, 0)
	_, err := exec.RunStep()
	if !errors.Is(err, IO.ErrStreamExhausted) {
		t.Fatalf("err = %v, want ErrStreamExhausted", err)
	}
}

func TestExecutorReducesAcrossReplicas(t *testing.T) {
	m := model.NewLexical(4, 4)
	opt := optimizations.NewAdam(0.01)
	m.CreateVariables(opt)
	dataset := IO.NewSliceDataset(makeBatches(4)...)

	exec := training.NewStepExecutor(m, opt, dataset, 2, 1, 0)
	res, err := exec.RunStep()
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	// Each batch has 2 source and 1 target tokens; two replicas sum to 4/2.
	if res.NumWords["source"] != 4 || res.NumWords["target"] != 2 {
		t.Fatalf("NumWords = %v, want source=4 target=2", res.NumWords)
	}
	if res.Loss <= 0 {
		t.Fatalf("Loss = %g, want > 0", res.Loss)
	}
	if !res.Applied || res.Step != 1 {
		t.Fatalf("Applied=%v Step=%d, want applied at step 1", res.Applied, res.Step)
	}
}

func TestTrainStopsAtMaxStep(t *testing.T) {
	tr, opt, ckpt := newTestSetup(t)
	dataset := IO.NewSliceDataset(makeBatches(10)...)

	opts := params.DefaultTrainingOptions()
	opts.MaxStep = 1
	if err := tr.Train(dataset, nil, opts); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got := opt.Iterations(); got != 1 {
		t.Fatalf("Iterations = %d, want exactly 1", got)
	}
	if got := ckpt.LatestStep(); got != 1 {
		t.Fatalf("final checkpoint tagged %d, want 1", got)
	}
	paths, _ := filepath.Glob(filepath.Join(ckpt.ModelDir, "ckpt-*.gob"))
	if len(paths) != 1 {
		t.Fatalf("checkpoint files = %v, want exactly one", paths)
	}
}

func TestTrainStopsOnDatasetExhaustion(t *testing.T) {
	tr, opt, ckpt := newTestSetup(t)
	dataset := IO.NewSliceDataset(makeBatches(4)...)

	if err := tr.Train(dataset, nil, params.DefaultTrainingOptions()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got := opt.Iterations(); got != 4 {
		t.Fatalf("Iterations = %d, want 4", got)
	}
	if got := ckpt.LatestStep(); got != 4 {
		t.Fatalf("final checkpoint tagged %d, want 4", got)
	}
	paths, _ := filepath.Glob(filepath.Join(ckpt.ModelDir, "ckpt-*.gob"))
	if len(paths) != 1 {
		t.Fatalf("checkpoint files = %v, want exactly one final save", paths)
	}
}

func TestTrainAlreadyAtMaxStepWarnsAndStops(t *testing.T) {
	tr, opt, ckpt := newTestSetup(t)
	opt.SetIterations(10)
	dataset := IO.NewSliceDataset(makeBatches(4)...)

	opts := params.DefaultTrainingOptions()
	opts.MaxStep = 10
	if err := tr.Train(dataset, nil, opts); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got := opt.Iterations(); got != 10 {
		t.Fatalf("Iterations = %d, want unchanged 10", got)
	}
	if b, err := dataset.Next(); err != nil {
		t.Fatalf("dataset consumed: %v %v", b, err)
	}
	if got := ckpt.LatestStep(); got != 10 {
		t.Fatalf("final checkpoint tagged %d, want 10", got)
	}
}

type countingEvaluator struct {
	steps []int
}

func (e *countingEvaluator) Evaluate(step int) {
	e.steps = append(e.steps, step)
}

func TestTrainCadencesFollowGlobalStep(t *testing.T) {
	tr, opt, ckpt := newTestSetup(t)
	// 12 micro-steps at accum_steps=3 advance the counter to 5:
	// applies at micro-steps 0, 2, 5, 8, 11.
	dataset := IO.NewSliceDataset(makeBatches(12)...)
	eval := &countingEvaluator{}

	opts := params.DefaultTrainingOptions()
	opts.AccumSteps = 3
	opts.ReportSteps = 2
	opts.SaveSteps = 2
	opts.EvalSteps = 2
	if err := tr.Train(dataset, eval, opts); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got := opt.Iterations(); got != 5 {
		t.Fatalf("Iterations = %d, want 5", got)
	}
	if len(eval.steps) != 2 || eval.steps[0] != 2 || eval.steps[1] != 4 {
		t.Fatalf("evaluator called at %v, want [2 4]", eval.steps)
	}
	// Cadence saves at steps 2 and 4, final save at step 5.
	for _, step := range []int{2, 4, 5} {
		path := filepath.Join(ckpt.ModelDir, "ckpt-"+strconv.Itoa(step)+".gob")
		if m, _ := filepath.Glob(path); len(m) != 1 {
			t.Fatalf("missing checkpoint at step %d", step)
		}
	}
}
