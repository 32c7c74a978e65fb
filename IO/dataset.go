package IO

import (
	"errors"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ErrStreamExhausted reports that a dataset has no more batches. It is the
// expected terminal condition of a training run, not a failure.
var ErrStreamExhausted = errors.New("dataset stream exhausted")

// Side is one side of a batch pair. The "ids" entry holds token ids as a
// (1 x T) row; the optional "length" entry holds per-example sequence lengths.
type Side map[string]*mat.Dense

// NumWords sums the "length" entry. The second return is false when the side
// carries no length metadata.
func (s Side) NumWords() (float64, bool) {
	lengths, ok := s["length"]
	if !ok {
		return 0, false
	}
	r, c := lengths.Dims()
	total := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			total += lengths.At(i, j)
		}
	}
	return total, true
}

// IDs returns the token ids of the "ids" entry as ints.
func (s Side) IDs() []int {
	m, ok := s["ids"]
	if !ok {
		return nil
	}
	_, c := m.Dims()
	ids := make([]int, c)
	for j := 0; j < c; j++ {
		ids[j] = int(m.At(0, j))
	}
	return ids
}

// Batch is one (source, target) training example pair.
type Batch struct {
	Source Side
	Target Side
}

// NewBatch builds a batch from raw token id sequences, attaching length
// metadata to both sides.
func NewBatch(srcIDs, tgtIDs []int) Batch {
	return Batch{
		Source: newSide(srcIDs),
		Target: newSide(tgtIDs),
	}
}

func newSide(ids []int) Side {
	row := make([]float64, len(ids))
	for i, id := range ids {
		row[i] = float64(id)
	}
	return Side{
		"ids":    mat.NewDense(1, len(ids), row),
		"length": mat.NewDense(1, 1, []float64{float64(len(ids))}),
	}
}

// Dataset produces a finite, non-restartable sequence of batch pairs. Next
// returns ErrStreamExhausted when no batches remain. Implementations must be
// safe for concurrent draws, which is how batches are sharded across replicas.
type Dataset interface {
	Next() (Batch, error)
}

// SliceDataset serves pre-built batches in order.
type SliceDataset struct {
	mu      sync.Mutex
	batches []Batch
	next    int
}

func NewSliceDataset(batches ...Batch) *SliceDataset {
	return &SliceDataset{batches: batches}
}

func (d *SliceDataset) Next() (Batch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.batches) {
		return Batch{}, ErrStreamExhausted
	}
	b := d.batches[d.next]
	d.next++
	return b, nil
}
