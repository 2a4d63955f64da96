package layers

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/meikuraledutech/neurons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func forward(t *testing.T, m neurons.Module, in ...*mat.Dense) *mat.Dense {
	t.Helper()
	out, err := m.Forward(in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func TestLinear(t *testing.T) {
	l, err := NewLinear(3, 2, true, InitOnes, 0)
	require.NoError(t, err)
	l.Bias().Value.Set(1, 0, 10)

	y := forward(t, l, mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}))
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{9, 12, 19, 22}), y))
	assert.Len(t, l.Params(), 2)
	assert.Equal(t, "Linear (3->2) (with bias)", l.String())

	_, err = l.Forward([]*mat.Dense{mat.NewDense(2, 1, nil)})
	assert.ErrorIs(t, err, ErrShape)
	_, err = l.Forward(nil)
	assert.ErrorIs(t, err, ErrArity)
}

func TestLinear_Init(t *testing.T) {
	a, err := NewLinear(4, 4, false, InitXavier, 42)
	require.NoError(t, err)
	b, err := NewLinear(4, 4, false, InitXavier, 42)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Weight().Value, b.Weight().Value))
	limit := math.Sqrt(6.0 / 8)
	for _, v := range a.Weight().Value.RawMatrix().Data {
		assert.LessOrEqual(t, math.Abs(v), limit)
	}

	z, err := NewLinear(2, 2, false, InitZeros, 0)
	require.NoError(t, err)
	assert.Zero(t, mat.Sum(z.Weight().Value))
	assert.Nil(t, z.Bias())
	assert.Equal(t, "Linear (2->2) (without bias)", z.String())

	_, err = NewLinear(0, 1, false, InitOnes, 0)
	assert.ErrorIs(t, err, ErrParams)
	_, err = NewLinear(1, 1, false, "he", 0)
	assert.ErrorIs(t, err, ErrParams)
}

func TestActivations(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{-2, -0.5, 0.5, 2})
	tests := []struct {
		m    neurons.Module
		want []float64
	}{
		{NewReLU(), []float64{0, 0, 0.5, 2}},
		{NewHardTanh(), []float64{-1, -0.5, 0.5, 1}},
		{NewLeakyReLU(0.1), []float64{-0.2, -0.05, 0.5, 2}},
		{NewThresholdReLU(1, -1), []float64{-1, -1, -1, 2}},
		{NewELU(1), []float64{math.Exp(-2) - 1, math.Exp(-0.5) - 1, 0.5, 2}},
		{NewTanh(), []float64{math.Tanh(-2), math.Tanh(-0.5), math.Tanh(0.5), math.Tanh(2)}},
		{NewSigmoid(), []float64{sigmoid(-2), sigmoid(-0.5), sigmoid(0.5), sigmoid(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.m.String(), func(t *testing.T) {
			y := forward(t, tt.m, x)
			assert.InDeltaSlice(t, tt.want, mat.Col(nil, 0, y), 1e-12)
		})
	}
}

func TestLogSoftmax(t *testing.T) {
	y := forward(t, LogSoftmax{}, mat.NewDense(3, 2, []float64{1, 0, 2, 0, 3, 0}))
	for j := 0; j < 2; j++ {
		sum := 0.0
		for i := 0; i < 3; i++ {
			sum += math.Exp(y.At(i, j))
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
	assert.InDelta(t, math.Log(1.0/3), y.At(0, 1), 1e-12)
}

func TestGatedLinearUnit(t *testing.T) {
	y := forward(t, GatedLinearUnit{}, mat.NewDense(2, 1, []float64{4, 0}))
	assert.InDelta(t, 2, y.At(0, 0), 1e-12)

	_, err := GatedLinearUnit{}.Forward([]*mat.Dense{mat.NewDense(3, 1, nil)})
	assert.ErrorIs(t, err, ErrShape)
}

func TestDropout(t *testing.T) {
	d, err := NewDropout(0.5, 1)
	require.NoError(t, err)
	x := mat.NewDense(100, 1, nil)
	x.Apply(func(_, _ int, _ float64) float64 { return 1 }, x)

	y := forward(t, d, x)
	for _, v := range y.RawMatrix().Data {
		assert.Contains(t, []float64{0, 2}, v)
	}

	d.Eval()
	assert.True(t, mat.Equal(x, forward(t, d, x)))
	d.Train()
	assert.False(t, mat.Equal(x, forward(t, d, x)))

	_, err = NewDropout(1, 0)
	assert.ErrorIs(t, err, ErrParams)
}

func TestView(t *testing.T) {
	v, err := NewView(-1, 1)
	require.NoError(t, err)
	y := forward(t, v, mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.True(t, mat.Equal(mat.NewDense(4, 1, []float64{1, 2, 3, 4}), y))

	v, err = NewView(3, -1)
	require.NoError(t, err)
	_, err = v.Forward([]*mat.Dense{mat.NewDense(2, 2, nil)})
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewView(-1, -1)
	assert.ErrorIs(t, err, ErrParams)
}

func TestLayerNorm(t *testing.T) {
	y := forward(t, NewLayerNorm(0), mat.NewDense(2, 1, []float64{1, 3}))
	assert.InDeltaSlice(t, []float64{-1, 1}, mat.Col(nil, 0, y), 1e-12)
}

func TestBatchNorm(t *testing.T) {
	b, err := NewBatchNorm(1, 0.5, 0)
	require.NoError(t, err)

	y := forward(t, b, mat.NewDense(1, 2, []float64{1, 3}))
	assert.InDeltaSlice(t, []float64{-1, 1}, y.RawRowView(0), 1e-12)

	// running mean 1, running variance 1 after one update with momentum 0.5
	b.Eval()
	y = forward(t, b, mat.NewDense(1, 1, []float64{3}))
	assert.InDelta(t, 2, y.At(0, 0), 1e-12)

	_, err = b.Forward([]*mat.Dense{mat.NewDense(2, 1, nil)})
	assert.ErrorIs(t, err, ErrShape)
	_, err = NewBatchNorm(0, 0.1, 0)
	assert.ErrorIs(t, err, ErrParams)
}

func TestLosses(t *testing.T) {
	pred := mat.NewDense(2, 1, []float64{1, 3})
	target := mat.NewDense(2, 1, []float64{0, 1})

	assert.InDelta(t, 2.5, forward(t, NewMeanSquaredError(), pred, target).At(0, 0), 1e-12)
	assert.InDelta(t, 1.5, forward(t, NewMeanAbsoluteError(), pred, target).At(0, 0), 1e-12)
	assert.InDelta(t, -3, forward(t, NewCategoricalCrossEntropy(), pred, target).At(0, 0), 1e-12)

	_, err := NewMeanSquaredError().Forward([]*mat.Dense{pred})
	assert.ErrorIs(t, err, ErrArity)
	_, err = NewMeanSquaredError().Forward([]*mat.Dense{pred, mat.NewDense(1, 1, nil)})
	assert.ErrorIs(t, err, ErrShape)
}

func TestNew(t *testing.T) {
	for _, kind := range neurons.Kinds() {
		if kind.IsSource() {
			continue
		}
		t.Run(kind.String(), func(t *testing.T) {
			var raw json.RawMessage
			switch kind {
			case neurons.Linear:
				raw = json.RawMessage(`{"in":2,"out":1}`)
			case neurons.BatchNorm:
				raw = json.RawMessage(`{"features":2}`)
			}
			m, err := New(kind, raw)
			if kind == neurons.Conv2D || kind == neurons.Pool2D {
				assert.ErrorIs(t, err, ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, m.String())
		})
	}
}

func TestNew_Params(t *testing.T) {
	m, err := New(neurons.Linear, json.RawMessage(`{"in":10,"out":5,"bias":false,"init":"ones"}`))
	require.NoError(t, err)
	assert.Equal(t, "Linear (10->5) (without bias)", m.String())

	m, err = New(neurons.LeakyReLU, nil)
	require.NoError(t, err)
	assert.Equal(t, "LeakyReLU (0.01)", m.String())

	_, err = New(neurons.Dropout, json.RawMessage(`{"q":1}`))
	assert.ErrorIs(t, err, ErrParams)
	_, err = New(neurons.KindInvalid, nil)
	assert.ErrorIs(t, err, neurons.ErrUnknownKind)
}

func TestFactory_NewDataset(t *testing.T) {
	ds, err := Factory{}.NewDataset(json.RawMessage(`{"kind":"random","in":2,"out":1,"count":4}`))
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Train.Len())
}
