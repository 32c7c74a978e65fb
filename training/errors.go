package training

import "fmt"

// ConfigurationError reports an invalid trainer setup, such as a checkpoint
// with no optimizer attached. It is fatal and raised at construction.
type ConfigurationError string

func (e ConfigurationError) Error() string {
	return string(e)
}

// ShapeMismatchError reports a gradient sequence that does not line up with
// the parameter sequence, either in count (Index < 0) or in tensor shape.
// It is a programmer error and is never retried.
type ShapeMismatchError struct {
	Index              int
	WantRows, WantCols int
	GotRows, GotCols   int
}

func (e *ShapeMismatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("gradient count mismatch: got %d tensors, want %d",
			e.GotRows, e.WantRows)
	}
	return fmt.Sprintf("gradient %d shape mismatch: got (%d x %d), want (%d x %d)",
		e.Index, e.GotRows, e.GotCols, e.WantRows, e.WantCols)
}
