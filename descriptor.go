package neurons

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the serializable form of a network.
type Descriptor struct {
	ID    string           `json:"id"`
	Nodes []NodeDescriptor `json:"nodes"`
	Links []LinkDescriptor `json:"links"`
}

// NodeDescriptor describes one node. Ref is a temporary key used only while
// creating a network to wire links; it is never persisted.
type NodeDescriptor struct {
	ID     int64           `json:"id"`
	Ref    string          `json:"ref,omitempty"`
	Kind   Kind            `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// LinkDescriptor describes one link. InputRef / OutputRef are temporary keys
// used only while creating a network; they are never persisted.
type LinkDescriptor struct {
	ID        int64  `json:"id"`
	Input     int64  `json:"input"`
	Output    int64  `json:"output"`
	InputRef  string `json:"input_ref,omitempty"`
	OutputRef string `json:"output_ref,omitempty"`
}

// Factory instantiates node payloads from their kind and parameters.
type Factory interface {
	NewModule(kind Kind, params json.RawMessage) (Module, error)
	NewDataset(params json.RawMessage) (*Dataset, error)
}

// ResolveRefs gives every node and link a fresh id from next and rewrites
// link refs into node ids. Ids already present in the descriptor are
// discarded, so the result is a fresh graph with mutually unique ids.
func (d *Descriptor) ResolveRefs(next func() int64) error {
	refs := make(map[string]int64)
	old := make(map[int64]int64)
	for i := range d.Nodes {
		n := &d.Nodes[i]
		id := next()
		old[n.ID] = id
		n.ID = id
		if n.Ref != "" {
			refs[n.Ref] = id
		}
	}

	for i := range d.Links {
		l := &d.Links[i]
		l.ID = next()
		if l.InputRef != "" {
			id, ok := refs[l.InputRef]
			if !ok {
				return fmt.Errorf("%w: input_ref %q", ErrUnknownRef, l.InputRef)
			}
			l.Input = id
		} else if id, ok := old[l.Input]; ok {
			l.Input = id
		}
		if l.OutputRef != "" {
			id, ok := refs[l.OutputRef]
			if !ok {
				return fmt.Errorf("%w: output_ref %q", ErrUnknownRef, l.OutputRef)
			}
			l.Output = id
		} else if id, ok := old[l.Output]; ok {
			l.Output = id
		}
	}
	return nil
}

// Check verifies what a store needs before persisting d: a network id,
// known node kinds, unique node ids, and links between two distinct
// existing nodes. It does not validate the graph structure.
func (d *Descriptor) Check() error {
	if d.ID == "" {
		return fmt.Errorf("%w: network id is empty", ErrInvalidArgument)
	}
	nodes := make(map[int64]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if !n.Kind.Valid() {
			return fmt.Errorf("%w: node %d", ErrUnknownKind, n.ID)
		}
		if nodes[n.ID] {
			return fmt.Errorf("%w: duplicate node id %d", ErrInvalidArgument, n.ID)
		}
		nodes[n.ID] = true
	}
	for _, l := range d.Links {
		if l.Input == l.Output {
			return fmt.Errorf("%w: link %d", ErrSelfLink, l.ID)
		}
		if !nodes[l.Input] || !nodes[l.Output] {
			return fmt.Errorf("%w: link %d (%d -> %d)", ErrNodeNotFound, l.ID, l.Input, l.Output)
		}
	}
	return nil
}

// ClearRefs drops the temporary ref fields.
func (d *Descriptor) ClearRefs() {
	for i := range d.Nodes {
		d.Nodes[i].Ref = ""
	}
	for i := range d.Links {
		d.Links[i].InputRef = ""
		d.Links[i].OutputRef = ""
	}
}

// Describe returns the descriptor of the network's current state.
func (n *Network) Describe(id string) *Descriptor {
	d := &Descriptor{ID: id, Nodes: []NodeDescriptor{}, Links: []LinkDescriptor{}}
	for _, node := range n.nodes {
		d.Nodes = append(d.Nodes, NodeDescriptor{ID: node.ID, Kind: node.Kind, Params: node.Params})
	}
	for _, l := range n.links {
		d.Links = append(d.Links, LinkDescriptor{ID: l.ID, Input: l.Input, Output: l.Output})
	}
	return d
}

// Load instantiates every node of d through f and rebuilds the network with
// d's ids. Links are copied as they are: Load does not validate, so a stored
// graph that is mid-edit still loads and fails later in NewContainer.
func Load(d *Descriptor, f Factory, opts ...Option) (*Network, error) {
	n := NewNetwork(opts...)
	for _, nd := range d.Nodes {
		node := &Node{ID: nd.ID, Kind: nd.Kind, Params: nd.Params}
		if nd.Kind.IsSource() {
			ds, err := f.NewDataset(nd.Params)
			if err != nil {
				return nil, fmt.Errorf("neurons: node %d: %w", nd.ID, err)
			}
			node.Dataset = ds
		} else {
			m, err := f.NewModule(nd.Kind, nd.Params)
			if err != nil {
				return nil, fmt.Errorf("neurons: node %d: %w", nd.ID, err)
			}
			node.Module = m
		}
		n.nodes = append(n.nodes, node)
		if nd.ID >= n.nextID {
			n.nextID = nd.ID + 1
		}
	}
	for _, ld := range d.Links {
		n.links = append(n.links, Link{ID: ld.ID, Input: ld.Input, Output: ld.Output})
		if ld.ID >= n.nextID {
			n.nextID = ld.ID + 1
		}
	}
	return n, nil
}
