// Package layers provides forward-only reference modules over gonum
// matrices. Tensors are features × batch.
package layers

import (
	"errors"
	"fmt"

	"github.com/meikuraledutech/neurons"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrArity       = errors.New("layers: wrong number of inputs")
	ErrShape       = errors.New("layers: input shape mismatch")
	ErrUnsupported = errors.New("layers: no built-in module for kind")
	ErrParams      = errors.New("layers: invalid params")
)

// stateless is embedded by modules with no parameters and no mode.
type stateless struct{}

func (stateless) Params() []*neurons.Param { return nil }
func (stateless) Train()                   {}
func (stateless) Eval()                    {}

// mode is embedded by modules that behave differently when training.
type mode struct {
	training bool
}

func (m *mode) Train() { m.training = true }
func (m *mode) Eval()  { m.training = false }

func unary(inputs []*mat.Dense) (*mat.Dense, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: want 1, got %d", ErrArity, len(inputs))
	}
	return inputs[0], nil
}

func binary(inputs []*mat.Dense) (*mat.Dense, *mat.Dense, error) {
	if len(inputs) != 2 {
		return nil, nil, fmt.Errorf("%w: want 2, got %d", ErrArity, len(inputs))
	}
	pr, pc := inputs[0].Dims()
	tr, tc := inputs[1].Dims()
	if pr != tr || pc != tc {
		return nil, nil, fmt.Errorf("%w: prediction %dx%d, target %dx%d", ErrShape, pr, pc, tr, tc)
	}
	return inputs[0], inputs[1], nil
}

func one(t *mat.Dense) []*mat.Dense { return []*mat.Dense{t} }
