// Package neurons validates, orders and evaluates neural-network graphs
// assembled in a node-and-link editor.
//
// A Network is the editable graph: an arena of nodes and links sharing one
// id counter. A Container is the immutable result of validating a snapshot
// of that graph; it evaluates the graph as a single-input, single-output
// module.
package neurons

import (
	"encoding/json"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable parameter. Grad is filled by whatever computes
// gradients and consumed by optimizers.
type Param struct {
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam wraps value with a zeroed gradient of the same shape.
func NewParam(value *mat.Dense) *Param {
	r, c := value.Dims()
	return &Param{Value: value, Grad: mat.NewDense(r, c, nil)}
}

// ZeroGrad resets the gradient.
func (p *Param) ZeroGrad() {
	if p.Grad != nil {
		p.Grad.Zero()
	}
}

// Module is the computational payload of a node. Tensors are laid out
// features × batch, one example per column.
type Module interface {
	Forward(inputs []*mat.Dense) ([]*mat.Dense, error)
	Params() []*Param
	Train()
	Eval()
	String() string
}

// Example is one input/target pair. Either side may hold a batch.
type Example struct {
	Input  *mat.Dense
	Target *mat.Dense
}

// Examples is an indexable collection of examples.
type Examples interface {
	Len() int
	At(i int) (Example, error)
}

// Dataset is the payload of the source node.
type Dataset struct {
	Train Examples
	Valid Examples
	Test  Examples
}

// Node is a vertex of a network. Source nodes carry a Dataset, every other
// kind carries a Module. Params keeps the parameters the node was created
// with so the node can be persisted and rebuilt.
type Node struct {
	ID      int64
	Kind    Kind
	Params  json.RawMessage
	Module  Module
	Dataset *Dataset
}

// String describes the node's payload.
func (n *Node) String() string {
	if n.Module != nil {
		return n.Module.String()
	}
	return n.Kind.String()
}

// Link is a directed edge: data flows from Input to Output. Links refer to
// nodes by id; the network owns the nodes.
type Link struct {
	ID     int64
	Input  int64
	Output int64
}
