package layers

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/meikuraledutech/neurons"
	"gonum.org/v1/gonum/mat"
)

// Init selects how Linear weights start out.
type Init string

const (
	InitXavier Init = "xavier"
	InitOnes   Init = "ones"
	InitZeros  Init = "zeros"
)

// Linear computes W·x + b for W of shape out × in.
type Linear struct {
	stateless
	in, out int
	weight  *neurons.Param
	bias    *neurons.Param // nil without bias
}

// NewLinear builds an in → out layer. Xavier initialization draws from a
// generator seeded with seed.
func NewLinear(in, out int, withBias bool, init Init, seed uint64) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("%w: linear %d->%d", ErrParams, in, out)
	}
	w := mat.NewDense(out, in, nil)
	switch init {
	case InitXavier, "":
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		limit := math.Sqrt(6 / float64(in+out))
		w.Apply(func(_, _ int, _ float64) float64 {
			return (rng.Float64()*2 - 1) * limit
		}, w)
	case InitOnes:
		w.Apply(func(_, _ int, _ float64) float64 { return 1 }, w)
	case InitZeros:
	default:
		return nil, fmt.Errorf("%w: unknown init %q", ErrParams, init)
	}

	l := &Linear{in: in, out: out, weight: neurons.NewParam(w)}
	if withBias {
		l.bias = neurons.NewParam(mat.NewDense(out, 1, nil))
	}
	return l, nil
}

// Weight returns the out × in weight parameter.
func (l *Linear) Weight() *neurons.Param { return l.weight }

// Bias returns the bias parameter, or nil.
func (l *Linear) Bias() *neurons.Param { return l.bias }

func (l *Linear) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	r, batch := x.Dims()
	if r != l.in {
		return nil, fmt.Errorf("%w: linear expects %d features, got %d", ErrShape, l.in, r)
	}
	y := mat.NewDense(l.out, batch, nil)
	y.Mul(l.weight.Value, x)
	if l.bias != nil {
		b := l.bias.Value
		y.Apply(func(i, _ int, v float64) float64 { return v + b.At(i, 0) }, y)
	}
	return one(y), nil
}

func (l *Linear) Params() []*neurons.Param {
	if l.bias == nil {
		return []*neurons.Param{l.weight}
	}
	return []*neurons.Param{l.weight, l.bias}
}

func (l *Linear) String() string {
	if l.bias == nil {
		return fmt.Sprintf("Linear (%d->%d) (without bias)", l.in, l.out)
	}
	return fmt.Sprintf("Linear (%d->%d) (with bias)", l.in, l.out)
}
