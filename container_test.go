package neurons_test

import (
	"errors"
	"testing"

	"github.com/meikuraledutech/neurons"
	"github.com/meikuraledutech/neurons/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func unitLinear(t *testing.T, in, out int) neurons.Module {
	t.Helper()
	l, err := layers.NewLinear(in, out, false, layers.InitOnes, 0)
	require.NoError(t, err)
	return l
}

func mustNode(t *testing.T, n *neurons.Network, kind neurons.Kind, m neurons.Module) *neurons.Node {
	t.Helper()
	node, err := n.AddNode(kind, m, nil)
	require.NoError(t, err)
	return node
}

func mustLink(t *testing.T, n *neurons.Network, in, out *neurons.Node) neurons.Link {
	t.Helper()
	l, err := n.AddLink(in.ID, out.ID)
	require.NoError(t, err)
	return l
}

func ones(rows int) *mat.Dense {
	m := mat.NewDense(rows, 1, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return 1 }, m)
	return m
}

// chainNetwork is source -> Linear(10->5) -> Linear(5->1) -> loss with unit
// weights and no bias.
func chainNetwork(t *testing.T) (*neurons.Network, []*neurons.Node) {
	n := neurons.NewNetwork()
	src := n.AddSource(nil, nil)
	l1 := mustNode(t, n, neurons.Linear, unitLinear(t, 10, 5))
	l2 := mustNode(t, n, neurons.Linear, unitLinear(t, 5, 1))
	loss := mustNode(t, n, neurons.MeanSquaredError, layers.NewMeanSquaredError())
	mustLink(t, n, src, l1)
	mustLink(t, n, l1, l2)
	mustLink(t, n, l2, loss)
	return n, []*neurons.Node{src, l1, l2, loss}
}

func TestContainer_Chain(t *testing.T) {
	n, nodes := chainNetwork(t)
	c, err := n.Build()
	require.NoError(t, err)

	out, err := c.Call(ones(10))
	require.NoError(t, err)
	assert.Equal(t, 50.0, out.At(0, 0))

	assert.Equal(t, nodes[0].ID, c.SourceID())
	assert.Equal(t, nodes[3].ID, c.LossID())
	assert.Equal(t, []int64{nodes[1].ID, nodes[2].ID}, c.Order())
	assert.Len(t, c.Params(), 2)
	assert.NotNil(t, c.Loss())
}

func TestContainer_MultiPathSums(t *testing.T) {
	n := neurons.NewNetwork()
	src := n.AddSource(nil, nil)
	l1 := mustNode(t, n, neurons.Linear, unitLinear(t, 10, 5))
	l2 := mustNode(t, n, neurons.Linear, unitLinear(t, 5, 1))
	l3 := mustNode(t, n, neurons.Linear, unitLinear(t, 5, 1))
	loss := mustNode(t, n, neurons.MeanSquaredError, layers.NewMeanSquaredError())
	mustLink(t, n, src, l1)
	mustLink(t, n, l1, l2)
	mustLink(t, n, l1, l3)
	mustLink(t, n, l2, loss)
	mustLink(t, n, l3, loss)

	c, err := n.Build()
	require.NoError(t, err)
	out, err := c.Call(ones(10))
	require.NoError(t, err)
	assert.Equal(t, 100.0, out.At(0, 0))
}

func TestContainer_SumsIntoComputationNodes(t *testing.T) {
	// source feeds l2 directly and through l1: l2 sees x + W1·x
	n := neurons.NewNetwork()
	src := n.AddSource(nil, nil)
	l1 := mustNode(t, n, neurons.Linear, unitLinear(t, 2, 2))
	l2 := mustNode(t, n, neurons.Linear, unitLinear(t, 2, 1))
	loss := mustNode(t, n, neurons.MeanAbsoluteError, layers.NewMeanAbsoluteError())
	mustLink(t, n, src, l1)
	mustLink(t, n, src, l2)
	mustLink(t, n, l1, l2)
	mustLink(t, n, l2, loss)

	c, err := n.Build()
	require.NoError(t, err)
	out, err := c.Call(ones(2))
	require.NoError(t, err)
	assert.Equal(t, 6.0, out.At(0, 0))
}

func TestContainer_Batch(t *testing.T) {
	n, _ := chainNetwork(t)
	c, err := n.Build()
	require.NoError(t, err)

	x := mat.NewDense(10, 2, nil)
	x.Apply(func(_, j int, _ float64) float64 { return float64(j + 1) }, x)
	out, err := c.Call(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 100}, out.RawRowView(0))
}

func TestContainer_ForwardArity(t *testing.T) {
	n, _ := chainNetwork(t)
	c, err := n.Build()
	require.NoError(t, err)

	_, err = c.Forward([]*mat.Dense{ones(10), ones(10)})
	assert.ErrorIs(t, err, neurons.ErrInvalidArgument)
	_, err = c.Forward(nil)
	assert.ErrorIs(t, err, neurons.ErrInvalidArgument)
}

func TestContainer_ForwardModuleError(t *testing.T) {
	n, _ := chainNetwork(t)
	c, err := n.Build()
	require.NoError(t, err)

	_, err = c.Call(ones(3))
	assert.ErrorIs(t, err, layers.ErrShape)
}

func TestContainer_ShapeMismatchBetweenBranches(t *testing.T) {
	n := neurons.NewNetwork()
	src := n.AddSource(nil, nil)
	a := mustNode(t, n, neurons.Linear, unitLinear(t, 2, 1))
	b := mustNode(t, n, neurons.Linear, unitLinear(t, 2, 3))
	loss := mustNode(t, n, neurons.MeanSquaredError, layers.NewMeanSquaredError())
	mustLink(t, n, src, a)
	mustLink(t, n, src, b)
	mustLink(t, n, a, loss)
	mustLink(t, n, b, loss)

	c, err := n.Build()
	require.NoError(t, err)
	_, err = c.Call(ones(2))
	assert.ErrorIs(t, err, neurons.ErrShapeMismatch)
}

func reasonOf(t *testing.T, err error) neurons.Reason {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, neurons.ErrInvalidGraph)
	var ig *neurons.InvalidGraphError
	require.True(t, errors.As(err, &ig))
	return ig.Reason
}

func TestNewContainer_Failures(t *testing.T) {
	t.Run("inconsistent", func(t *testing.T) {
		n, _ := chainNetwork(t)
		links := append(n.Links(), neurons.Link{ID: 99, Input: 0, Output: 42})
		_, err := neurons.NewContainer(n.Nodes(), links)
		assert.Equal(t, neurons.ReasonInconsistent, reasonOf(t, err))
	})

	t.Run("multiple components", func(t *testing.T) {
		n, _ := chainNetwork(t)
		mustNode(t, n, neurons.ReLU, layers.NewReLU())
		_, err := n.Build()
		assert.Equal(t, neurons.ReasonMultipleComponents, reasonOf(t, err))
	})

	t.Run("cycle", func(t *testing.T) {
		n, nodes := chainNetwork(t)
		mustLink(t, n, nodes[2], nodes[1])
		_, err := n.Build()
		assert.Equal(t, neurons.ReasonCycle, reasonOf(t, err))
	})

	t.Run("unsatisfied inputs", func(t *testing.T) {
		n, nodes := chainNetwork(t)
		extra := mustNode(t, n, neurons.ReLU, layers.NewReLU())
		mustLink(t, n, extra, nodes[2])
		_, err := n.Build()
		assert.Equal(t, neurons.ReasonUnsatisfiedInputs, reasonOf(t, err))
	})

	t.Run("unsatisfied outputs", func(t *testing.T) {
		n, nodes := chainNetwork(t)
		extra := mustNode(t, n, neurons.ReLU, layers.NewReLU())
		mustLink(t, n, nodes[1], extra)
		_, err := n.Build()
		assert.Equal(t, neurons.ReasonUnsatisfiedOutputs, reasonOf(t, err))
	})

	t.Run("no loss node", func(t *testing.T) {
		// two sources would be caught earlier; a network without a loss
		// node has an unsatisfied output
		n := neurons.NewNetwork()
		src := n.AddSource(nil, nil)
		l := mustNode(t, n, neurons.ReLU, layers.NewReLU())
		mustLink(t, n, src, l)
		_, err := n.Build()
		assert.Equal(t, neurons.ReasonUnsatisfiedOutputs, reasonOf(t, err))
	})

	t.Run("endpoints", func(t *testing.T) {
		// two loss nodes pass every structural check
		nodes := []*neurons.Node{
			{ID: 0, Kind: neurons.Source},
			{ID: 1, Kind: neurons.MeanSquaredError},
			{ID: 2, Kind: neurons.MeanAbsoluteError},
		}
		links := []neurons.Link{{ID: 3, Input: 0, Output: 1}, {ID: 4, Input: 0, Output: 2}}
		_, err := neurons.NewContainer(nodes, links)
		assert.Equal(t, neurons.ReasonEndpoints, reasonOf(t, err))
	})

	t.Run("source only", func(t *testing.T) {
		_, err := neurons.NewContainer([]*neurons.Node{{ID: 0, Kind: neurons.Source}}, nil)
		assert.Equal(t, neurons.ReasonUnsatisfiedOutputs, reasonOf(t, err))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := neurons.NewContainer(nil, nil)
		assert.Equal(t, neurons.ReasonMultipleComponents, reasonOf(t, err))
	})

	t.Run("missing module", func(t *testing.T) {
		n := neurons.NewNetwork()
		src := n.AddSource(nil, nil)
		l := mustNode(t, n, neurons.Linear, nil)
		loss := mustNode(t, n, neurons.MeanSquaredError, nil)
		mustLink(t, n, src, l)
		mustLink(t, n, l, loss)
		_, err := n.Build()
		assert.ErrorIs(t, err, neurons.ErrInvalidArgument)
	})
}

func TestContainer_String(t *testing.T) {
	n, nodes := chainNetwork(t)
	c, err := n.Build()
	require.NoError(t, err)

	want := "Network:\n" +
		"[input -> (1), (1) -> (2), (2) -> output]\n" +
		"(1): Linear (10->5) (without bias)\n" +
		"(2): Linear (5->1) (without bias)\n"
	assert.Equal(t, int64(1), nodes[1].ID)
	assert.Equal(t, want, c.String())
}

func TestContainer_Modes(t *testing.T) {
	n := neurons.NewNetwork()
	src := n.AddSource(nil, nil)
	d, err := layers.NewDropout(0.5, 3)
	require.NoError(t, err)
	drop := mustNode(t, n, neurons.Dropout, d)
	loss := mustNode(t, n, neurons.MeanSquaredError, layers.NewMeanSquaredError())
	mustLink(t, n, src, drop)
	mustLink(t, n, drop, loss)

	c, err := n.Build()
	require.NoError(t, err)
	c.Eval()
	out, err := c.Call(ones(20))
	require.NoError(t, err)
	assert.True(t, mat.Equal(ones(20), out))
}

func TestContainer_ZeroGrad(t *testing.T) {
	n, _ := chainNetwork(t)
	c, err := n.Build()
	require.NoError(t, err)
	for _, p := range c.Params() {
		p.Grad.Set(0, 0, 3)
	}
	c.ZeroGrad()
	for _, p := range c.Params() {
		assert.Zero(t, mat.Sum(p.Grad))
	}
}
