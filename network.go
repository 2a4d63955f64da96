package neurons

import (
	"encoding/json"
	"fmt"
)

// LinkPolicy decides whether input may feed output. It runs after the
// structural checks of AddLink.
type LinkPolicy func(input, output *Node) bool

// AllowAll admits every link.
func AllowAll(input, output *Node) bool { return true }

// Option configures a Network.
type Option func(*Network)

// WithLinkPolicy replaces the default AllowAll policy. A nil policy is
// ignored.
func WithLinkPolicy(p LinkPolicy) Option {
	return func(n *Network) {
		if p != nil {
			n.policy = p
		}
	}
}

// Network is the editable graph. It owns its nodes; links refer to them by
// id. Nodes and links keep insertion order and draw ids from one counter.
//
// A Network is not safe for concurrent mutation. Containers built from it
// copy what they need, but share node modules, so the network must not be
// edited while one of its containers is training.
type Network struct {
	nodes  []*Node
	links  []Link
	nextID int64
	policy LinkPolicy
}

// NewNetwork returns an empty network.
func NewNetwork(opts ...Option) *Network {
	n := &Network{policy: AllowAll}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Network) allocID() int64 {
	id := n.nextID
	n.nextID++
	return id
}

// AddSource adds the source node. A network has one source, so when one
// exists it is returned unchanged.
func (n *Network) AddSource(ds *Dataset, params json.RawMessage) *Node {
	if src := n.Source(); src != nil {
		return src
	}
	node := &Node{ID: n.allocID(), Kind: Source, Params: params, Dataset: ds}
	n.nodes = append(n.nodes, node)
	return node
}

// AddNode adds a computation or loss node wrapping module.
func (n *Network) AddNode(kind Kind, module Module, params json.RawMessage) (*Node, error) {
	switch {
	case kind.IsSource():
		return nil, ErrSourceKind
	case kind.IsLoss() && n.Loss() != nil:
		return nil, ErrDuplicateLoss
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	node := &Node{ID: n.allocID(), Kind: kind, Params: params, Module: module}
	n.nodes = append(n.nodes, node)
	return node, nil
}

// AddLink links input to output.
func (n *Network) AddLink(input, output int64) (Link, error) {
	if input == output {
		return Link{}, ErrSelfLink
	}
	in := n.Node(input)
	if in == nil {
		return Link{}, fmt.Errorf("%w: %d", ErrNodeNotFound, input)
	}
	out := n.Node(output)
	if out == nil {
		return Link{}, fmt.Errorf("%w: %d", ErrNodeNotFound, output)
	}
	if !n.policy(in, out) {
		return Link{}, fmt.Errorf("%w: %d -> %d", ErrLinkRejected, input, output)
	}
	l := Link{ID: n.allocID(), Input: input, Output: output}
	n.links = append(n.links, l)
	return l, nil
}

// DeleteNode removes a node together with every link touching it.
func (n *Network) DeleteNode(id int64) error {
	idx := -1
	for i, node := range n.nodes {
		if node.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	n.nodes = append(n.nodes[:idx], n.nodes[idx+1:]...)

	kept := n.links[:0]
	for _, l := range n.links {
		if l.Input != id && l.Output != id {
			kept = append(kept, l)
		}
	}
	n.links = kept
	return nil
}

// DeleteLink removes a link.
func (n *Network) DeleteLink(id int64) error {
	for i, l := range n.links {
		if l.ID == id {
			n.links = append(n.links[:i], n.links[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrLinkNotFound, id)
}

// Node returns the node with the given id, or nil.
func (n *Network) Node(id int64) *Node {
	for _, node := range n.nodes {
		if node.ID == id {
			return node
		}
	}
	return nil
}

// Source returns the source node, or nil.
func (n *Network) Source() *Node {
	for _, node := range n.nodes {
		if node.Kind.IsSource() {
			return node
		}
	}
	return nil
}

// Loss returns the loss node, or nil.
func (n *Network) Loss() *Node {
	for _, node := range n.nodes {
		if node.Kind.IsLoss() {
			return node
		}
	}
	return nil
}

// Nodes returns a snapshot of the nodes in insertion order.
func (n *Network) Nodes() []*Node {
	return append([]*Node(nil), n.nodes...)
}

// Links returns a snapshot of the links in insertion order.
func (n *Network) Links() []Link {
	return append([]Link(nil), n.links...)
}

// Build validates the current snapshot and wraps it in a Container.
func (n *Network) Build() (*Container, error) {
	return NewContainer(n.Nodes(), n.Links())
}
