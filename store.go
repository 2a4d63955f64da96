package neurons

import (
	"context"
	"errors"
)

var (
	ErrNetworkNotFound = errors.New("neurons: network not found")
	ErrNodeNotFound    = errors.New("neurons: node not found")
	ErrLinkNotFound    = errors.New("neurons: link not found")
)

// Store defines the contract for persisting the editor's networks.
// Node and link ids are allocated per network from one counter.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Network (bulk operations)
	CreateNetwork(ctx context.Context, d *Descriptor) (*Descriptor, error)
	GetNetwork(ctx context.Context, networkID string) (*Descriptor, error)
	DeleteNetwork(ctx context.Context, networkID string) error

	// Nodes
	AddNode(ctx context.Context, networkID string, node *NodeDescriptor) (int64, error)
	GetNode(ctx context.Context, networkID string, nodeID int64) (*NodeDescriptor, error)
	UpdateNode(ctx context.Context, networkID string, node *NodeDescriptor) error
	DeleteNode(ctx context.Context, networkID string, nodeID int64) error
	ListNodes(ctx context.Context, networkID string) ([]NodeDescriptor, error)

	// Links
	AddLink(ctx context.Context, networkID string, link *LinkDescriptor) (int64, error)
	DeleteLink(ctx context.Context, networkID string, linkID int64) error
	ListLinks(ctx context.Context, networkID string) ([]LinkDescriptor, error)
}
