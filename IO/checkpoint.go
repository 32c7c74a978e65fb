package IO

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/1637mishenlan/OpenNMT-tf/optimizations"
)

// Saveable is the slice of the model a checkpoint persists: its ordered
// parameter tensors.
type Saveable interface {
	Variables() []*mat.Dense
}

// Checkpoint persists and restores model weights and optimizer state under
// ModelDir using gob, one file per saved step.
type Checkpoint struct {
	Model     Saveable
	Optimizer *optimizations.Adam
	ModelDir  string
}

type matData struct {
	Rows, Cols int
	Data       []float64
}

type ckptData struct {
	Step       int
	Iterations int
	Params     []matData
	M, V       []matData
}

func flatten(ms []*mat.Dense) []matData {
	out := make([]matData, len(ms))
	for i, m := range ms {
		r, c := m.Dims()
		raw := mat.DenseCopyOf(m).RawMatrix()
		out[i] = matData{Rows: r, Cols: c, Data: append([]float64(nil), raw.Data...)}
	}
	return out
}

func unflatten(src []matData, dst []*mat.Dense) error {
	if len(src) != len(dst) {
		return errors.Errorf("checkpoint holds %d tensors, model has %d", len(src), len(dst))
	}
	for i, d := range src {
		r, c := dst[i].Dims()
		if d.Rows != r || d.Cols != c {
			return errors.Errorf("tensor %d is (%d x %d) in checkpoint, (%d x %d) in model",
				i, d.Rows, d.Cols, r, c)
		}
		dst[i].SetRawMatrix(mat.NewDense(d.Rows, d.Cols, append([]float64(nil), d.Data...)).RawMatrix())
	}
	return nil
}

func (c *Checkpoint) path(step int) string {
	return filepath.Join(c.ModelDir, fmt.Sprintf("ckpt-%d.gob", step))
}

// Save writes a checkpoint tagged with the given step.
func (c *Checkpoint) Save(step int) error {
	if err := os.MkdirAll(c.ModelDir, 0o755); err != nil {
		return errors.Wrap(err, "create model dir")
	}
	data := ckptData{
		Step:   step,
		Params: flatten(c.Model.Variables()),
	}
	if c.Optimizer != nil {
		data.Iterations = c.Optimizer.Iterations()
		m, v := c.Optimizer.Slots()
		data.M = flatten(m)
		data.V = flatten(v)
	}
	f, err := os.Create(c.path(step))
	if err != nil {
		return errors.Wrap(err, "create checkpoint file")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(&data); err != nil {
		return errors.Wrapf(err, "encode checkpoint at step %d", step)
	}
	return nil
}

// LatestStep returns the step tag of the newest checkpoint in ModelDir, or -1
// when none exists.
func (c *Checkpoint) LatestStep() int {
	paths, err := filepath.Glob(filepath.Join(c.ModelDir, "ckpt-*.gob"))
	if err != nil || len(paths) == 0 {
		return -1
	}
	steps := make([]int, 0, len(paths))
	for _, p := range paths {
		var step int
		if _, err := fmt.Sscanf(filepath.Base(p), "ckpt-%d.gob", &step); err == nil {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return -1
	}
	sort.Ints(steps)
	return steps[len(steps)-1]
}

// Restore loads the newest checkpoint into the model and optimizer and returns
// its step tag. It returns -1 and no error when ModelDir has no checkpoint.
func (c *Checkpoint) Restore() (int, error) {
	step := c.LatestStep()
	if step < 0 {
		return -1, nil
	}
	f, err := os.Open(c.path(step))
	if err != nil {
		return -1, errors.Wrap(err, "open checkpoint file")
	}
	defer f.Close()
	var data ckptData
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return -1, errors.Wrapf(err, "decode checkpoint at step %d", step)
	}
	vars := c.Model.Variables()
	if err := unflatten(data.Params, vars); err != nil {
		return -1, err
	}
	if c.Optimizer != nil {
		c.Optimizer.SetIterations(data.Iterations)
		if len(data.M) == len(vars) {
			c.Optimizer.CreateSlots(vars)
			m, v := c.Optimizer.Slots()
			if err := unflatten(data.M, m); err != nil {
				return -1, err
			}
			if err := unflatten(data.V, v); err != nil {
				return -1, err
			}
		}
	}
	return data.Step, nil
}
