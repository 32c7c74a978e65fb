package training

import (
	"gonum.org/v1/gonum/mat"

	"github.com/1637mishenlan/OpenNMT-tf/IO"
	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
)

// Outputs is the opaque result of a model forward pass, handed back to the
// same model for loss and gradient computation.
type Outputs any

// Model is the trainable collaborator of the training loop.
type Model interface {
	// CreateVariables initializes the parameter tensors and the optimizer
	// slots. Called once under the distribution scope before training starts.
	CreateVariables(opt *optimizations.Adam)

	// Variables returns the ordered trainable parameter tensors.
	Variables() []*mat.Dense

	// CloneForGrads returns a copy sharing the parameter tensors read-only
	// but owning private forward caches, so clones can run concurrently.
	CloneForGrads() Model

	// Call runs the forward pass over one batch at the given global step.
	Call(source, target IO.Side, step int, training bool) Outputs

	// ComputeLoss returns the raw loss numerator and denominator for a
	// forward pass; the normalized loss is numerator/denominator.
	ComputeLoss(outputs Outputs, target IO.Side, training bool) (numerator, denominator float64)

	// ComputeGradients returns the gradients of the normalized loss with
	// respect to the given variables, in the same order.
	ComputeGradients(outputs Outputs, variables []*mat.Dense) ([]*mat.Dense, error)
}

// Evaluator is called on the evaluation cadence with the current global step.
// It writes its own reports.
type Evaluator interface {
	Evaluate(step int)
}
