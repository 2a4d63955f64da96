package hclnet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meikuraledutech/neurons"
	"github.com/meikuraledutech/neurons/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainHCL = `
network "chain" {
  node "data" {
    kind   = "Dataset"
    params = { kind = "random", in = 10, out = 1, count = 4 }
  }
  node "a" {
    kind   = "Linear"
    params = { in = 10, out = 5, bias = false, init = "ones" }
  }
  node "b" {
    kind   = "Linear"
    params = { in = 5, out = 1, bias = false, init = "ones" }
  }
  node "loss" {
    kind = "MeanSquaredError"
  }

  link {
    from = "data"
    to   = "a"
  }
  link {
    from = "a"
    to   = "b"
  }
  link {
    from = "b"
    to   = "loss"
  }
}
`

func TestParse(t *testing.T) {
	ds, err := Parse([]byte(chainHCL), "chain.hcl")
	require.NoError(t, err)
	require.Len(t, ds, 1)

	d := ds[0]
	assert.Equal(t, "chain", d.ID)
	require.Len(t, d.Nodes, 4)
	assert.Equal(t, "a", d.Nodes[1].Ref)
	assert.Equal(t, neurons.Linear, d.Nodes[1].Kind)
	assert.JSONEq(t, `{"in":10,"out":5,"bias":false,"init":"ones"}`, string(d.Nodes[1].Params))
	assert.Nil(t, d.Nodes[3].Params)
	assert.Equal(t, neurons.LinkDescriptor{InputRef: "b", OutputRef: "loss"}, d.Links[2])
}

func TestParse_BuildsRunnableNetwork(t *testing.T) {
	ds, err := Parse([]byte(chainHCL), "chain.hcl")
	require.NoError(t, err)

	var next int64
	require.NoError(t, ds[0].ResolveRefs(func() int64 { next++; return next - 1 }))
	n, err := neurons.Load(ds[0], layers.Factory{})
	require.NoError(t, err)
	c, err := n.Build()
	require.NoError(t, err)

	ex, err := n.Source().Dataset.Train.At(0)
	require.NoError(t, err)
	out, err := c.Call(ex.Input)
	require.NoError(t, err)
	assert.InDelta(t, 5*ex.Target.At(0, 0), out.At(0, 0), 1e-9)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax": `network "x" {`,
		"unknown kind": `
network "x" {
  node "a" { kind = "Conv3D" }
}`,
		"missing kind": `
network "x" {
  node "a" {}
}`,
		"duplicate ref": `
network "x" {
  node "a" { kind = "ReLU" }
  node "a" { kind = "Tanh" }
}`,
		"unknown ref": `
network "x" {
  node "a" { kind = "ReLU" }
  link {
    from = "a"
    to   = "b"
  }
}`,
		"scalar params": `
network "x" {
  node "a" {
    kind   = "ReLU"
    params = 3
  }
}`,
		"variables": `
network "x" {
  node "a" {
    kind   = "ReLU"
    params = { a = var.x }
  }
}`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), name+".hcl")
			assert.Error(t, err)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nets.hcl")
	src := chainHCL + `
network "tiny" {
  node "data" { kind = "Dataset" }
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	ds, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "tiny", ds[1].ID)
	assert.Empty(t, ds[1].Links)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	ds, err := Parse([]byte(chainHCL), "chain.hcl")
	require.NoError(t, err)
	var next int64
	require.NoError(t, ds[0].ResolveRefs(func() int64 { next++; return next - 1 }))
	ds[0].ClearRefs()

	src, err := Encode(ds[0])
	require.NoError(t, err)
	assert.Contains(t, string(src), `network "chain"`)
	assert.Contains(t, string(src), `node "n1"`)

	again, err := Parse(src, "encoded.hcl")
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Len(t, again[0].Nodes, 4)
	for i, n := range again[0].Nodes {
		assert.Equal(t, ds[0].Nodes[i].Kind, n.Kind)
		if ds[0].Nodes[i].Params == nil {
			assert.Nil(t, n.Params)
			continue
		}
		assert.JSONEq(t, string(ds[0].Nodes[i].Params), string(n.Params))
	}
	assert.Equal(t, neurons.LinkDescriptor{InputRef: "n0", OutputRef: "n1"}, again[0].Links[0])
}
