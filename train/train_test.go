package train

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/meikuraledutech/neurons"
	"github.com/meikuraledutech/neurons/dataset"
	"github.com/meikuraledutech/neurons/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// chain builds source -> middle -> loss.
func chain(t *testing.T, middle neurons.Module, loss neurons.Module) *neurons.Container {
	t.Helper()
	n := neurons.NewNetwork()
	src := n.AddSource(nil, nil)
	mid, err := n.AddNode(neurons.Linear, middle, nil)
	require.NoError(t, err)
	out, err := n.AddNode(neurons.MeanSquaredError, loss, nil)
	require.NoError(t, err)
	_, err = n.AddLink(src.ID, mid.ID)
	require.NoError(t, err)
	_, err = n.AddLink(mid.ID, out.ID)
	require.NoError(t, err)
	c, err := n.Build()
	require.NoError(t, err)
	return c
}

func onesLinear(t *testing.T, in, out int) *layers.Linear {
	t.Helper()
	l, err := layers.NewLinear(in, out, false, layers.InitOnes, 0)
	require.NoError(t, err)
	return l
}

func wait(t *testing.T, s *Session) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestStart_RunsEpochs(t *testing.T) {
	c := chain(t, onesLinear(t, 3, 1), layers.NewMeanSquaredError())
	data := dataset.Random(3, 1, 8, 1)
	ds := &neurons.Dataset{Train: data[:6], Valid: data[6:], Test: data[6:]}

	var out bytes.Buffer
	s := Start(context.Background(), c, ds, Options{Epochs: 2, Output: &out})
	assert.NotEmpty(t, s.ID)

	res := wait(t, s)
	require.NoError(t, res.Err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, StatusDone, s.Status())
	require.Len(t, res.Epochs, 2)
	assert.Equal(t, 1, res.Epochs[1].Epoch)
	assert.InDelta(t, 0, res.Epochs[0].TrainLoss, 1e-12)
	assert.InDelta(t, 0, res.TestLoss, 1e-12)

	assert.Contains(t, out.String(), "Network:\n")
	assert.Contains(t, out.String(), "Epoch 1: Avg Train Loss")
	assert.Contains(t, out.String(), "Test Loss")

	stored, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, res.Status, stored.Status)
}

func TestStart_StepsWithGradients(t *testing.T) {
	lin := onesLinear(t, 1, 1)
	c := chain(t, lin, layers.NewMeanSquaredError())
	ds := &neurons.Dataset{Train: dataset.Memory{{
		Input:  mat.NewDense(1, 1, []float64{1}),
		Target: mat.NewDense(1, 1, []float64{1}),
	}}}

	backward := func(c *neurons.Container, _ neurons.Example, _ float64) error {
		for _, p := range c.Params() {
			p.Grad.Apply(func(_, _ int, _ float64) float64 { return 1 }, p.Grad)
		}
		return nil
	}
	res := wait(t, Start(context.Background(), c, ds, Options{
		Optimizer: SGD{LearningRate: 0.25},
		Backward:  backward,
	}))
	require.NoError(t, res.Err)
	assert.InDelta(t, 0.75, lin.Weight().Value.At(0, 0), 1e-12)
	assert.Zero(t, lin.Weight().Grad.At(0, 0), "gradients are zeroed after each step")
}

func TestStart_CancelledContextStops(t *testing.T) {
	c := chain(t, onesLinear(t, 1, 1), layers.NewMeanSquaredError())
	ds := &neurons.Dataset{Train: dataset.Random(1, 1, 4, 0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := wait(t, Start(ctx, c, ds, Options{}))
	assert.Equal(t, StatusStopped, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

// gated blocks At(1) until release is closed.
type gated struct {
	dataset.Memory
	reached chan struct{}
	release chan struct{}
}

func (g *gated) At(i int) (neurons.Example, error) {
	if i == 1 {
		close(g.reached)
		<-g.release
	}
	return g.Memory.At(i)
}

func TestSession_Stop(t *testing.T) {
	c := chain(t, onesLinear(t, 1, 1), layers.NewMeanSquaredError())
	g := &gated{Memory: dataset.Random(1, 1, 4, 0), reached: make(chan struct{}), release: make(chan struct{})}

	s := Start(context.Background(), c, &neurons.Dataset{Train: g}, Options{})
	<-g.reached
	assert.Equal(t, StatusRunning, s.Status())
	_, ok := s.Result()
	assert.False(t, ok)

	s.Stop()
	close(g.release)
	res := wait(t, s)
	assert.Equal(t, StatusStopped, res.Status)
	assert.Equal(t, StatusStopped, s.Status())
}

type panicky struct{ layers.LogSoftmax }

func (panicky) Forward([]*mat.Dense) ([]*mat.Dense, error) { panic("boom") }

func TestStart_CapturesPanics(t *testing.T) {
	c := chain(t, panicky{}, layers.NewMeanSquaredError())
	res := wait(t, Start(context.Background(), c, &neurons.Dataset{Train: dataset.Random(1, 1, 1, 0)}, Options{}))
	assert.Equal(t, StatusFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
}

func TestStart_Failures(t *testing.T) {
	t.Run("no loss module", func(t *testing.T) {
		c := chain(t, onesLinear(t, 1, 1), nil)
		res := wait(t, Start(context.Background(), c, &neurons.Dataset{Train: dataset.Random(1, 1, 1, 0)}, Options{}))
		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, ErrNoLoss)
	})
	t.Run("no dataset", func(t *testing.T) {
		c := chain(t, onesLinear(t, 1, 1), layers.NewMeanSquaredError())
		res := wait(t, Start(context.Background(), c, nil, Options{}))
		assert.ErrorIs(t, res.Err, ErrNoDataset)
	})
	t.Run("shape", func(t *testing.T) {
		c := chain(t, onesLinear(t, 2, 1), layers.NewMeanSquaredError())
		res := wait(t, Start(context.Background(), c, &neurons.Dataset{Train: dataset.Random(3, 1, 1, 0)}, Options{}))
		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, layers.ErrShape)
	})
}

func TestMisclassified(t *testing.T) {
	pred := mat.NewDense(3, 2, []float64{
		0.1, 0.7,
		0.8, 0.2,
		0.1, 0.1,
	})
	target := mat.NewDense(3, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
	})
	wrong, total := misclassified(pred, target)
	assert.Equal(t, 1, wrong)
	assert.Equal(t, 2, total)

	wrong, total = misclassified(mat.NewDense(1, 1, []float64{3}), mat.NewDense(1, 1, []float64{1}))
	assert.Zero(t, wrong)
	assert.Zero(t, total)
}
