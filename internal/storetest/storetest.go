// Package storetest holds the behavior every neurons.Store must show.
package storetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/meikuraledutech/neurons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Chain returns a fresh source -> Linear -> loss descriptor wired by refs.
func Chain(id string) *neurons.Descriptor {
	return &neurons.Descriptor{
		ID: id,
		Nodes: []neurons.NodeDescriptor{
			{Ref: "data", Kind: neurons.Source, Params: json.RawMessage(`{"kind":"random","in":2,"out":1,"count":4}`)},
			{Ref: "fc", Kind: neurons.Linear, Params: json.RawMessage(`{"in":2,"out":1}`)},
			{Ref: "loss", Kind: neurons.MeanSquaredError},
		},
		Links: []neurons.LinkDescriptor{
			{InputRef: "data", OutputRef: "fc"},
			{InputRef: "fc", OutputRef: "loss"},
		},
	}
}

// Run exercises s. The schema is created before and dropped after.
func Run(t *testing.T, s neurons.Store) {
	ctx := context.Background()
	require.NoError(t, s.DropSchema(ctx))
	require.NoError(t, s.CreateSchema(ctx))
	require.NoError(t, s.CreateSchema(ctx), "CreateSchema is idempotent")
	t.Cleanup(func() { _ = s.DropSchema(context.Background()) })

	t.Run("create and get", func(t *testing.T) {
		d, err := s.CreateNetwork(ctx, Chain("create"))
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2}, []int64{d.Nodes[0].ID, d.Nodes[1].ID, d.Nodes[2].ID})
		assert.Equal(t, neurons.LinkDescriptor{ID: 3, Input: 0, Output: 1}, d.Links[0])
		assert.Empty(t, d.Nodes[0].Ref)

		got, err := s.GetNetwork(ctx, "create")
		require.NoError(t, err)
		assert.Equal(t, "create", got.ID)
		assert.Equal(t, d.Links, got.Links)
		require.Len(t, got.Nodes, 3)
		assert.Equal(t, neurons.Linear, got.Nodes[1].Kind)
		assert.JSONEq(t, `{"in":2,"out":1}`, string(got.Nodes[1].Params))
		assert.Empty(t, got.Nodes[2].Params)
	})

	t.Run("create replaces", func(t *testing.T) {
		_, err := s.CreateNetwork(ctx, Chain("replace"))
		require.NoError(t, err)
		_, err = s.AddNode(ctx, "replace", &neurons.NodeDescriptor{Kind: neurons.ReLU})
		require.NoError(t, err)

		small := &neurons.Descriptor{ID: "replace", Nodes: []neurons.NodeDescriptor{{Kind: neurons.Source}}}
		_, err = s.CreateNetwork(ctx, small)
		require.NoError(t, err)

		got, err := s.GetNetwork(ctx, "replace")
		require.NoError(t, err)
		assert.Len(t, got.Nodes, 1)
		assert.Empty(t, got.Links)

		id, err := s.AddNode(ctx, "replace", &neurons.NodeDescriptor{Kind: neurons.Tanh})
		require.NoError(t, err)
		assert.Equal(t, int64(1), id, "counter restarts")
	})

	t.Run("create rejects", func(t *testing.T) {
		d := Chain("bad")
		d.Links[0].OutputRef = "missing"
		_, err := s.CreateNetwork(ctx, d)
		assert.ErrorIs(t, err, neurons.ErrUnknownRef)

		d = Chain("bad")
		d.Links[0].OutputRef = "data"
		_, err = s.CreateNetwork(ctx, d)
		assert.ErrorIs(t, err, neurons.ErrSelfLink)

		_, err = s.CreateNetwork(ctx, Chain(""))
		assert.ErrorIs(t, err, neurons.ErrInvalidArgument)

		_, err = s.GetNetwork(ctx, "bad")
		assert.ErrorIs(t, err, neurons.ErrNetworkNotFound)
	})

	t.Run("nodes", func(t *testing.T) {
		_, err := s.CreateNetwork(ctx, Chain("nodes"))
		require.NoError(t, err)

		node := &neurons.NodeDescriptor{Ref: "tmp", Kind: neurons.LeakyReLU, Params: json.RawMessage(`{"slope":0.2}`)}
		id, err := s.AddNode(ctx, "nodes", node)
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)
		assert.Equal(t, id, node.ID)

		got, err := s.GetNode(ctx, "nodes", id)
		require.NoError(t, err)
		assert.Equal(t, neurons.LeakyReLU, got.Kind)
		assert.JSONEq(t, `{"slope":0.2}`, string(got.Params))

		got.Kind = neurons.ELU
		got.Params = json.RawMessage(`{"alpha":2}`)
		require.NoError(t, s.UpdateNode(ctx, "nodes", got))
		again, err := s.GetNode(ctx, "nodes", id)
		require.NoError(t, err)
		assert.Equal(t, neurons.ELU, again.Kind)

		list, err := s.ListNodes(ctx, "nodes")
		require.NoError(t, err)
		assert.Len(t, list, 4)

		_, err = s.GetNode(ctx, "nodes", 99)
		assert.ErrorIs(t, err, neurons.ErrNodeNotFound)
		err = s.UpdateNode(ctx, "nodes", &neurons.NodeDescriptor{ID: 99, Kind: neurons.ReLU})
		assert.ErrorIs(t, err, neurons.ErrNodeNotFound)
		_, err = s.AddNode(ctx, "nowhere", &neurons.NodeDescriptor{Kind: neurons.ReLU})
		assert.ErrorIs(t, err, neurons.ErrNetworkNotFound)
		_, err = s.AddNode(ctx, "nodes", &neurons.NodeDescriptor{Kind: neurons.KindInvalid})
		assert.ErrorIs(t, err, neurons.ErrUnknownKind)

		empty, err := s.ListNodes(ctx, "nowhere")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("links", func(t *testing.T) {
		_, err := s.CreateNetwork(ctx, Chain("links"))
		require.NoError(t, err)
		relu, err := s.AddNode(ctx, "links", &neurons.NodeDescriptor{Kind: neurons.ReLU})
		require.NoError(t, err)

		id, err := s.AddLink(ctx, "links", &neurons.LinkDescriptor{Input: 1, Output: relu})
		require.NoError(t, err)
		assert.Equal(t, relu+1, id)

		_, err = s.AddLink(ctx, "links", &neurons.LinkDescriptor{Input: 1, Output: 1})
		assert.ErrorIs(t, err, neurons.ErrSelfLink)
		_, err = s.AddLink(ctx, "links", &neurons.LinkDescriptor{Input: 1, Output: 42})
		assert.ErrorIs(t, err, neurons.ErrNodeNotFound)
		_, err = s.AddLink(ctx, "nowhere", &neurons.LinkDescriptor{Input: 0, Output: 1})
		assert.Error(t, err)

		links, err := s.ListLinks(ctx, "links")
		require.NoError(t, err)
		assert.Len(t, links, 3)

		require.NoError(t, s.DeleteLink(ctx, "links", id))
		require.NoError(t, s.DeleteLink(ctx, "links", id), "deleting twice is fine")
		links, err = s.ListLinks(ctx, "links")
		require.NoError(t, err)
		assert.Len(t, links, 2)
	})

	t.Run("delete node cascades", func(t *testing.T) {
		_, err := s.CreateNetwork(ctx, Chain("cascade"))
		require.NoError(t, err)
		require.NoError(t, s.DeleteNode(ctx, "cascade", 1))
		require.NoError(t, s.DeleteNode(ctx, "cascade", 1))

		got, err := s.GetNetwork(ctx, "cascade")
		require.NoError(t, err)
		assert.Len(t, got.Nodes, 2)
		assert.Empty(t, got.Links)
	})

	t.Run("delete network", func(t *testing.T) {
		_, err := s.CreateNetwork(ctx, Chain("gone"))
		require.NoError(t, err)
		require.NoError(t, s.DeleteNetwork(ctx, "gone"))
		require.NoError(t, s.DeleteNetwork(ctx, "gone"))

		_, err = s.GetNetwork(ctx, "gone")
		assert.ErrorIs(t, err, neurons.ErrNetworkNotFound)
		nodes, err := s.ListNodes(ctx, "gone")
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})
}
