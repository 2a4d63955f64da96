package neurons

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Container is a validated, topologically sequenced network ready for
// forward evaluation. It is immutable once built; a structural change means
// building a new container from a fresh snapshot.
//
// Container is itself a Module, taking exactly one input and producing
// exactly one output.
type Container struct {
	links   []Link
	source  int64
	loss    *Node
	modules []*Node // computation nodes in topological order
}

// NewContainer validates nodes and links and sequences them. Checks run in
// a fixed order and the first failure is returned as an *InvalidGraphError:
// consistency, a single connected component, no directed cycle, inputs
// satisfied, outputs satisfied, and finally that the order starts at the
// only source node and ends at the only loss node.
func NewContainer(nodes []*Node, links []Link) (*Container, error) {
	if !IsConsistent(nodes, links) {
		return nil, invalidGraph(ReasonInconsistent)
	}
	if CountConnectedComponents(nodes, links) != 1 {
		return nil, invalidGraph(ReasonMultipleComponents)
	}
	if ContainsDirectedCycle(nodes, links) {
		return nil, invalidGraph(ReasonCycle)
	}
	if !AreNodeInputsSatisfied(nodes, links) {
		return nil, invalidGraph(ReasonUnsatisfiedInputs)
	}
	if !AreNodeOutputsSatisfied(nodes, links) {
		return nil, invalidGraph(ReasonUnsatisfiedOutputs)
	}

	sorted := TopologicalSort(nodes, links)
	if len(sorted) < 2 {
		return nil, invalidGraph(ReasonEndpoints)
	}
	first, last := sorted[0], sorted[len(sorted)-1]
	if !first.Kind.IsSource() || !last.Kind.IsLoss() {
		return nil, invalidGraph(ReasonEndpoints)
	}
	middle := sorted[1 : len(sorted)-1]
	for _, n := range middle {
		if n.Kind.IsSource() || n.Kind.IsLoss() {
			return nil, invalidGraph(ReasonEndpoints)
		}
		if n.Module == nil {
			return nil, fmt.Errorf("%w: node %d (%s) has no module", ErrInvalidArgument, n.ID, n.Kind)
		}
	}

	c := &Container{
		links:   append([]Link(nil), links...),
		source:  first.ID,
		loss:    last,
		modules: append([]*Node(nil), middle...),
	}
	return c, nil
}

// SourceID returns the id of the source node.
func (c *Container) SourceID() int64 { return c.source }

// LossID returns the id of the loss node.
func (c *Container) LossID() int64 { return c.loss.ID }

// Loss returns the loss node's module, which may be nil when the node was
// built without one.
func (c *Container) Loss() Module { return c.loss.Module }

// Order returns the ids of the computation nodes in evaluation order.
func (c *Container) Order() []int64 {
	ids := make([]int64, len(c.modules))
	for i, n := range c.modules {
		ids[i] = n.ID
	}
	return ids
}

// Forward evaluates the network on exactly one input tensor. Every node
// receives the element-wise sum of what its incoming links carry; the
// output is the sum of everything linked into the loss node.
func (c *Container) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: network expects one input, got %d", ErrInvalidArgument, len(inputs))
	}

	outputs := make(map[int64][]*mat.Dense, len(c.modules))
	for _, n := range c.modules {
		in, err := c.gather(n.ID, inputs, outputs)
		if err != nil {
			return nil, err
		}
		out, err := n.Module.Forward(in)
		if err != nil {
			return nil, fmt.Errorf("neurons: node %d (%s): %w", n.ID, n.Kind, err)
		}
		outputs[n.ID] = out
	}

	out, err := c.gather(c.loss.ID, inputs, outputs)
	if err != nil {
		return nil, err
	}
	if len(out) != len(inputs) {
		return nil, fmt.Errorf("%w: %d outputs for %d inputs", ErrRuntimeInconsistency, len(out), len(inputs))
	}
	return out, nil
}

// Call is Forward for a single tensor.
func (c *Container) Call(input *mat.Dense) (*mat.Dense, error) {
	out, err := c.Forward([]*mat.Dense{input})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// gather sums the contributions of every link flowing into target.
func (c *Container) gather(target int64, input []*mat.Dense, outputs map[int64][]*mat.Dense) ([]*mat.Dense, error) {
	var sum []*mat.Dense
	for _, l := range c.links {
		if l.Output != target {
			continue
		}
		var contrib []*mat.Dense
		if l.Input == c.source {
			contrib = input
		} else {
			out, ok := outputs[l.Input]
			if !ok {
				return nil, fmt.Errorf("%w: node %d read before node %d ran", ErrRuntimeInconsistency, target, l.Input)
			}
			contrib = out
		}
		if sum == nil {
			sum = clone(contrib)
			continue
		}
		if err := addInto(sum, contrib); err != nil {
			return nil, fmt.Errorf("neurons: inputs of node %d: %w", target, err)
		}
	}
	if sum == nil {
		return nil, fmt.Errorf("%w: node %d has no inputs", ErrRuntimeInconsistency, target)
	}
	return sum, nil
}

func clone(ts []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(ts))
	for i, t := range ts {
		out[i] = mat.DenseCopyOf(t)
	}
	return out
}

// addInto adds rhs element-wise into lhs.
func addInto(lhs, rhs []*mat.Dense) error {
	if len(lhs) != len(rhs) {
		return fmt.Errorf("%w: %d tensors plus %d tensors", ErrShapeMismatch, len(lhs), len(rhs))
	}
	for i := range lhs {
		lr, lc := lhs[i].Dims()
		rr, rc := rhs[i].Dims()
		if lr != rr || lc != rc {
			return fmt.Errorf("%w: %dx%d plus %dx%d", ErrShapeMismatch, lr, lc, rr, rc)
		}
		lhs[i].Add(lhs[i], rhs[i])
	}
	return nil
}

// Params returns the parameters of every computation node in order.
func (c *Container) Params() []*Param {
	var params []*Param
	for _, n := range c.modules {
		params = append(params, n.Module.Params()...)
	}
	return params
}

// ZeroGrad clears every parameter gradient.
func (c *Container) ZeroGrad() {
	for _, p := range c.Params() {
		p.ZeroGrad()
	}
}

// Train puts every computation node in training mode.
func (c *Container) Train() {
	for _, n := range c.modules {
		n.Module.Train()
	}
}

// Eval puts every computation node in evaluation mode.
func (c *Container) Eval() {
	for _, n := range c.modules {
		n.Module.Eval()
	}
}

// String lists the links, with the source and loss nodes written as input
// and output, then one line per computation node in evaluation order.
func (c *Container) String() string {
	var sb strings.Builder
	sb.WriteString("Network:\n[")
	for i, l := range c.links {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.endpoint(l.Input))
		sb.WriteString(" -> ")
		sb.WriteString(c.endpoint(l.Output))
	}
	sb.WriteString("]\n")
	for _, n := range c.modules {
		fmt.Fprintf(&sb, "(%d): %s\n", n.ID, n.Module.String())
	}
	return sb.String()
}

func (c *Container) endpoint(id int64) string {
	switch id {
	case c.source:
		return "input"
	case c.loss.ID:
		return "output"
	default:
		return fmt.Sprintf("(%d)", id)
	}
}
