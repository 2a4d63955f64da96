package layers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Activation applies a function to every element.
type Activation struct {
	stateless
	name string
	fn   func(float64) float64
}

func (a *Activation) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 { return a.fn(v) }, x)
	return one(&y), nil
}

func (a *Activation) String() string { return a.name }

func NewSigmoid() *Activation {
	return &Activation{name: "Sigmoid", fn: sigmoid}
}

func NewTanh() *Activation {
	return &Activation{name: "Tanh", fn: math.Tanh}
}

func NewHardTanh() *Activation {
	return &Activation{name: "HardTanh", fn: func(v float64) float64 {
		return math.Max(-1, math.Min(1, v))
	}}
}

func NewReLU() *Activation {
	return &Activation{name: "ReLU", fn: func(v float64) float64 { return math.Max(0, v) }}
}

func NewLeakyReLU(slope float64) *Activation {
	return &Activation{
		name: fmt.Sprintf("LeakyReLU (%g)", slope),
		fn: func(v float64) float64 {
			if v < 0 {
				return slope * v
			}
			return v
		},
	}
}

func NewELU(alpha float64) *Activation {
	return &Activation{
		name: fmt.Sprintf("ELU (%g)", alpha),
		fn: func(v float64) float64 {
			if v < 0 {
				return alpha * (math.Exp(v) - 1)
			}
			return v
		},
	}
}

// NewThresholdReLU passes values above threshold and replaces the rest with
// value.
func NewThresholdReLU(threshold, value float64) *Activation {
	return &Activation{
		name: fmt.Sprintf("ThresholdReLU (%g, %g)", threshold, value),
		fn: func(v float64) float64 {
			if v > threshold {
				return v
			}
			return value
		},
	}
}

func NewLog() *Activation {
	return &Activation{name: "Log", fn: math.Log}
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// LogSoftmax normalizes each column into log-probabilities.
type LogSoftmax struct{ stateless }

func (LogSoftmax) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		lse := floats.LogSumExp(col)
		for i, v := range col {
			y.Set(i, j, v-lse)
		}
	}
	return one(y), nil
}

func (LogSoftmax) String() string { return "LogSoftmax" }

// GatedLinearUnit splits the features in half, a over b, and returns
// a ⊙ sigmoid(b).
type GatedLinearUnit struct{ stateless }

func (GatedLinearUnit) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	r, c := x.Dims()
	if r%2 != 0 {
		return nil, fmt.Errorf("%w: gated linear unit needs an even feature count, got %d", ErrShape, r)
	}
	half := r / 2
	y := mat.NewDense(half, c, nil)
	y.Apply(func(i, j int, _ float64) float64 {
		return x.At(i, j) * sigmoid(x.At(i+half, j))
	}, y)
	return one(y), nil
}

func (GatedLinearUnit) String() string { return "GatedLinearUnit" }
