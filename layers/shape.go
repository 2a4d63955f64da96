package layers

import (
	"fmt"
	"math/rand/v2"

	"github.com/meikuraledutech/neurons"
	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes each element with probability p while training and scales
// the survivors by 1/(1-p). It is the identity in eval mode.
type Dropout struct {
	mode
	p   float64
	rng *rand.Rand
}

func NewDropout(p float64, seed uint64) (*Dropout, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("%w: dropout probability %g", ErrParams, p)
	}
	return &Dropout{
		mode: mode{training: true},
		p:    p,
		rng:  rand.New(rand.NewPCG(seed, ^seed)),
	}, nil
}

func (d *Dropout) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	y := mat.DenseCopyOf(x)
	if !d.training || d.p == 0 {
		return one(y), nil
	}
	scale := 1 / (1 - d.p)
	y.Apply(func(_, _ int, v float64) float64 {
		if d.rng.Float64() < d.p {
			return 0
		}
		return v * scale
	}, y)
	return one(y), nil
}

func (d *Dropout) Params() []*neurons.Param { return nil }

func (d *Dropout) String() string { return fmt.Sprintf("Dropout (%g)", d.p) }

// View reshapes its input, reading elements in row-major order. One of the
// dimensions may be -1 and is then inferred.
type View struct {
	stateless
	rows, cols int
}

func NewView(rows, cols int) (*View, error) {
	if rows == 0 || cols == 0 || rows < -1 || cols < -1 || (rows == -1 && cols == -1) {
		return nil, fmt.Errorf("%w: view (%d, %d)", ErrParams, rows, cols)
	}
	return &View{rows: rows, cols: cols}, nil
}

func (v *View) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	r, c := x.Dims()
	total := r * c
	rows, cols := v.rows, v.cols
	switch {
	case rows == -1:
		rows = total / cols
	case cols == -1:
		cols = total / rows
	}
	if rows*cols != total {
		return nil, fmt.Errorf("%w: cannot view %dx%d as %dx%d", ErrShape, r, c, v.rows, v.cols)
	}
	data := make([]float64, 0, total)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, x.At(i, j))
		}
	}
	return one(mat.NewDense(rows, cols, data)), nil
}

func (v *View) String() string { return fmt.Sprintf("View (%d %d)", v.rows, v.cols) }
