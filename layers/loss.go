package layers

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Loss modules take [prediction, target] of equal shape and return a 1×1
// tensor.
type Loss struct {
	stateless
	name   string
	reduce func(pred, target *mat.Dense) float64
}

func (l *Loss) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	pred, target, err := binary(inputs)
	if err != nil {
		return nil, err
	}
	return one(mat.NewDense(1, 1, []float64{l.reduce(pred, target)})), nil
}

func (l *Loss) String() string { return l.name }

// NewMeanSquaredError averages (p - t)² over every element.
func NewMeanSquaredError() *Loss {
	return &Loss{name: "MeanSquaredError", reduce: func(p, t *mat.Dense) float64 {
		return meanOf(p, t, func(d float64) float64 { return d * d })
	}}
}

// NewMeanAbsoluteError averages |p - t| over every element.
func NewMeanAbsoluteError() *Loss {
	return &Loss{name: "MeanAbsoluteError", reduce: func(p, t *mat.Dense) float64 {
		return meanOf(p, t, math.Abs)
	}}
}

// NewCategoricalCrossEntropy expects log-probabilities (see LogSoftmax) and
// one-hot targets, and averages -Σ t·p over the batch.
func NewCategoricalCrossEntropy() *Loss {
	return &Loss{name: "CategoricalCrossEntropy", reduce: func(p, t *mat.Dense) float64 {
		var prod mat.Dense
		prod.MulElem(p, t)
		_, batch := p.Dims()
		return -mat.Sum(&prod) / float64(batch)
	}}
}

func meanOf(p, t *mat.Dense, f func(float64) float64) float64 {
	var diff mat.Dense
	diff.Sub(p, t)
	r, c := diff.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for _, v := range diff.RawRowView(i) {
			sum += f(v)
		}
	}
	return sum / float64(r*c)
}
