package utils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix helpers shared by the model and optimizer code.

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

func MatrixNorm(m *mat.Dense) float64 {
	return mat.Norm(m, 2)
}

// ColVectorSoftmax computes a numerically stable softmax over an (r x 1) vector.
func ColVectorSoftmax(logits *mat.Dense) *mat.Dense {
	r, c := logits.Dims()
	if c != 1 {
		panic("ColVectorSoftmax expects (r x 1) logits vector")
	}
	maxVal := logits.At(0, 0)
	for i := 1; i < r; i++ {
		if v := logits.At(i, 0); v > maxVal {
			maxVal = v
		}
	}
	out := mat.NewDense(r, 1, nil)
	sum := 0.0
	for i := 0; i < r; i++ {
		e := math.Exp(logits.At(i, 0) - maxVal)
		out.Set(i, 0, e)
		sum += e
	}
	for i := 0; i < r; i++ {
		out.Set(i, 0, out.At(i, 0)/sum)
	}
	return out
}

// CrossEntropyWithIndex returns the negative log likelihood of the gold index
// and the gradient of the loss with respect to the logits.
func CrossEntropyWithIndex(logits *mat.Dense, gold int) (float64, *mat.Dense) {
	r, c := logits.Dims()
	if c != 1 {
		panic("CrossEntropyWithIndex expects (r x 1) logits vector")
	}
	prob := ColVectorSoftmax(logits)
	if gold < 0 || gold >= r {
		gold = 0
	}
	loss := -math.Log(prob.At(gold, 0) + 1e-12)
	grad := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		grad.Set(i, 0, prob.At(i, 0))
	}
	grad.Set(gold, 0, grad.At(gold, 0)-1.0)
	return loss, grad
}

// ClipGrads rescales the given gradients in place so that their global L2 norm
// does not exceed maxNorm. A maxNorm <= 0 disables clipping.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) {
	if maxNorm <= 0 {
		return
	}
	total := 0.0
	for _, g := range grads {
		n := mat.Norm(g, 2)
		total += n * n
	}
	total = math.Sqrt(total)
	if total <= maxNorm {
		return
	}
	scale := maxNorm / (total + 1e-12)
	for _, g := range grads {
		g.Scale(scale, g)
	}
}
