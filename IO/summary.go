package IO

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// SummaryWriter appends scalar metrics to training.csv under the model dir,
// one (step, tag, value) row per scalar.
type SummaryWriter struct {
	mu   sync.Mutex
	path string
}

func NewSummaryWriter(modelDir string) *SummaryWriter {
	return &SummaryWriter{path: filepath.Join(modelDir, "training.csv")}
}

func (w *SummaryWriter) Scalar(step int, tag string, value float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return errors.Wrap(err, "create summary dir")
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open summary file")
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	record := []string{
		strconv.Itoa(step),
		tag,
		strconv.FormatFloat(value, 'g', -1, 64),
	}
	if err := cw.Write(record); err != nil {
		return errors.Wrap(err, "write summary row")
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush summary")
}
