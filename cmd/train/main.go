package main

import (
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/1637mishenlan/OpenNMT-tf/IO"
	"github.com/1637mishenlan/OpenNMT-tf/model"
	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
	"github.com/1637mishenlan/OpenNMT-tf/params"
	"github.com/1637mishenlan/OpenNMT-tf/schedules"
	"github.com/1637mishenlan/OpenNMT-tf/training"
)

func main() {
	var (
		srcPath   = flag.String("src", "data/train.src", "source training file")
		tgtPath   = flag.String("tgt", "data/train.tgt", "target training file")
		evalSrc   = flag.String("eval-src", "", "source evaluation file")
		evalTgt   = flag.String("eval-tgt", "", "target evaluation file")
		modelDir  = flag.String("model-dir", "models", "checkpoint and summary directory")
		tokPath   = flag.String("tokenizer", "", "tokenizer path (default <model-dir>/tokenizer.json)")
		vocabSize = flag.Int("vocab-size", 8000, "BPE vocabulary size")
		maxLen    = flag.Int("max-len", 128, "skip examples longer than this many tokens")

		deviceList  = flag.String("devices", "", "comma-separated device names (default: auto-detect)")
		maxStep     = flag.Int("max-step", 0, "final training step (0 = until data runs out)")
		accumSteps  = flag.Int("accum-steps", 1, "gradient accumulation steps")
		reportSteps = flag.Int("report-steps", 100, "report status every this many steps")
		saveSteps   = flag.Int("save-steps", 5000, "save a checkpoint every this many steps (0 = disable)")
		evalSteps   = flag.Int("eval-steps", 5000, "evaluate every this many steps (0 = disable)")
		gradClip    = flag.Float64("grad-clip", 0, "global gradient norm clip (0 = disable)")

		schedule = flag.String("schedule", "noam", "learning rate schedule: noam, rsqrt, cosine, rnmtplus, constant")
		lr       = flag.Float64("lr", 1.0, "learning rate scale")
		dim      = flag.Int("dim", 512, "model dimension for the noam schedule")
		warmup   = flag.Int("warmup", 4000, "warmup steps")
	)
	flag.Parse()

	if *tokPath == "" {
		*tokPath = filepath.Join(*modelDir, "tokenizer.json")
	}
	bpe, err := IO.TrainOrLoadBPE(*srcPath, *tokPath, *vocabSize)
	if err != nil {
		log.Fatalf("tokenizer: %v", err)
	}
	batches, err := bpe.LoadParallelBatches(*srcPath, *tgtPath, *maxLen)
	if err != nil {
		log.Fatalf("load training data: %v", err)
	}
	log.Printf("Loaded %d training examples", len(batches))

	vocab := bpe.VocabSize()
	m := model.NewLexical(vocab, vocab)
	opt := optimizations.NewAdam(*lr)

	var devs []string
	if *deviceList != "" {
		devs = strings.Split(*deviceList, ",")
	}
	opt.Schedule = buildSchedule(*schedule, *lr, *dim, *warmup, *maxStep, max(len(devs), 1))

	ckpt := &IO.Checkpoint{Model: m, Optimizer: opt, ModelDir: *modelDir}
	m.CreateVariables(opt)
	if step, err := ckpt.Restore(); err != nil {
		log.Fatalf("restore: %v", err)
	} else if step >= 0 {
		log.Printf("Restored checkpoint at step %d", step)
	}

	trainer, err := training.NewTrainer(ckpt, m, devs)
	if err != nil {
		log.Fatalf("trainer: %v", err)
	}
	log.Printf("Replicating over devices: %s", strings.Join(trainer.Devices(), ", "))

	var evaluator training.Evaluator
	if *evalSrc != "" && *evalTgt != "" {
		evalBatches, err := bpe.LoadParallelBatches(*evalSrc, *evalTgt, *maxLen)
		if err != nil {
			log.Fatalf("load evaluation data: %v", err)
		}
		evaluator = training.NewLossEvaluator(m, evalBatches, *modelDir)
	}

	opts := params.TrainingOptions{
		MaxStep:     *maxStep,
		AccumSteps:  *accumSteps,
		ReportSteps: *reportSteps,
		SaveSteps:   *saveSteps,
		EvalSteps:   *evalSteps,
		GradClip:    *gradClip,
	}
	if err := trainer.Train(IO.NewSliceDataset(batches...), evaluator, opts); err != nil {
		log.Fatalf("training: %v", err)
	}
}

func buildSchedule(name string, scale float64, dim, warmup, maxStep, numReplicas int) schedules.Schedule {
	switch name {
	case "noam":
		return schedules.NewNoamDecay(scale, dim, warmup)
	case "rsqrt":
		return schedules.NewRsqrtDecay(scale, warmup)
	case "cosine":
		if maxStep <= 0 {
			maxStep = 1000000
		}
		return schedules.NewCosineAnnealing(scale, 0, maxStep, warmup)
	case "rnmtplus":
		return schedules.NewRNMTPlusDecay(scale, numReplicas, warmup, 600000, 1200000)
	case "constant":
		return nil
	default:
		log.Fatalf("unknown schedule %q", name)
		return nil
	}
}
