package layers

import (
	"fmt"
	"math"

	"github.com/meikuraledutech/neurons"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LayerNorm normalizes every column (one example) to zero mean and unit
// variance, then applies a learned scalar gain and shift.
type LayerNorm struct {
	stateless
	eps   float64
	gain  *neurons.Param
	shift *neurons.Param
}

func NewLayerNorm(eps float64) *LayerNorm {
	return &LayerNorm{
		eps:   eps,
		gain:  neurons.NewParam(mat.NewDense(1, 1, []float64{1})),
		shift: neurons.NewParam(mat.NewDense(1, 1, []float64{0})),
	}
}

func (l *LayerNorm) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	g, b := l.gain.Value.At(0, 0), l.shift.Value.At(0, 0)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance + l.eps)
		for i, v := range col {
			y.Set(i, j, g*(v-mean)/std+b)
		}
	}
	return one(y), nil
}

func (l *LayerNorm) Params() []*neurons.Param {
	return []*neurons.Param{l.gain, l.shift}
}

func (l *LayerNorm) String() string { return fmt.Sprintf("LayerNorm (eps %g)", l.eps) }

// BatchNorm normalizes every feature (row) across the batch. Training
// batches update running statistics, which eval mode uses instead.
type BatchNorm struct {
	mode
	features int
	momentum float64
	eps      float64
	gain     *neurons.Param
	shift    *neurons.Param
	runMean  []float64
	runVar   []float64
}

func NewBatchNorm(features int, momentum, eps float64) (*BatchNorm, error) {
	if features <= 0 {
		return nil, fmt.Errorf("%w: batch norm over %d features", ErrParams, features)
	}
	ones := make([]float64, features)
	for i := range ones {
		ones[i] = 1
	}
	return &BatchNorm{
		mode:     mode{training: true},
		features: features,
		momentum: momentum,
		eps:      eps,
		gain:     neurons.NewParam(mat.NewDense(features, 1, append([]float64(nil), ones...))),
		shift:    neurons.NewParam(mat.NewDense(features, 1, nil)),
		runMean:  make([]float64, features),
		runVar:   ones,
	}, nil
}

func (b *BatchNorm) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	x, err := unary(inputs)
	if err != nil {
		return nil, err
	}
	r, c := x.Dims()
	if r != b.features {
		return nil, fmt.Errorf("%w: batch norm expects %d features, got %d", ErrShape, b.features, r)
	}
	y := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		mean, variance := b.runMean[i], b.runVar[i]
		if b.training {
			mean, variance = stat.PopMeanVariance(row, nil)
			b.runMean[i] = (1-b.momentum)*b.runMean[i] + b.momentum*mean
			b.runVar[i] = (1-b.momentum)*b.runVar[i] + b.momentum*variance
		}
		std := math.Sqrt(variance + b.eps)
		g, s := b.gain.Value.At(i, 0), b.shift.Value.At(i, 0)
		for j, v := range row {
			y.Set(i, j, g*(v-mean)/std+s)
		}
	}
	return one(y), nil
}

func (b *BatchNorm) Params() []*neurons.Param {
	return []*neurons.Param{b.gain, b.shift}
}

func (b *BatchNorm) String() string {
	return fmt.Sprintf("BatchNorm (%d, momentum %g, eps %g)", b.features, b.momentum, b.eps)
}
