// Package params holds the run configuration.
package params

// TrainingOptions controls one training run. Zero values select the
// documented behavior: MaxStep 0 trains until the dataset is exhausted,
// SaveSteps/EvalSteps <= 0 disable the corresponding cadence.
type TrainingOptions struct {
	MaxStep     int
	AccumSteps  int
	ReportSteps int
	SaveSteps   int
	EvalSteps   int
	GradClip    float64
}

// DefaultTrainingOptions mirrors the usual run setup: report every 100 steps,
// checkpoint and evaluate every 5000.
func DefaultTrainingOptions() TrainingOptions {
	return TrainingOptions{
		AccumSteps:  1,
		ReportSteps: 100,
		SaveSteps:   5000,
		EvalSteps:   5000,
	}
}

// WithDefaults fills the fields that must be positive.
func (o TrainingOptions) WithDefaults() TrainingOptions {
	if o.AccumSteps < 1 {
		o.AccumSteps = 1
	}
	if o.ReportSteps < 1 {
		o.ReportSteps = 100
	}
	return o
}
