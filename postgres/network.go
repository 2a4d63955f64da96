package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/neurons"
)

// CreateNetwork saves a full network (nodes + links) in one transaction.
// An existing network with the same id is replaced and its id counter
// starts over. Every node and link gets a fresh id; link refs
// (InputRef/OutputRef) are resolved to the new node ids.
// Returns the descriptor with all ids filled in and refs cleared.
func (s *PGStore) CreateNetwork(ctx context.Context, d *neurons.Descriptor) (*neurons.Descriptor, error) {
	var next int64
	if err := d.ResolveRefs(func() int64 { next++; return next - 1 }); err != nil {
		return nil, err
	}
	if err := d.Check(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("neurons: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replace semantics: links and nodes go with the network row.
	if _, err := tx.Exec(ctx, `DELETE FROM networks WHERE id = $1`, d.ID); err != nil {
		return nil, fmt.Errorf("neurons: delete network: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO networks (id, next_id) VALUES ($1, $2)`, d.ID, next); err != nil {
		return nil, fmt.Errorf("neurons: insert network: %w", err)
	}

	for _, n := range d.Nodes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO network_nodes (network_id, id, kind, params) VALUES ($1, $2, $3, $4)`,
			d.ID, n.ID, n.Kind.String(), n.Params,
		); err != nil {
			return nil, fmt.Errorf("neurons: insert node %d: %w", n.ID, err)
		}
	}
	for _, l := range d.Links {
		if _, err := tx.Exec(ctx,
			`INSERT INTO network_links (network_id, id, input_id, output_id) VALUES ($1, $2, $3, $4)`,
			d.ID, l.ID, l.Input, l.Output,
		); err != nil {
			return nil, fmt.Errorf("neurons: insert link %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("neurons: commit: %w", err)
	}

	d.ClearRefs()
	return d, nil
}

// GetNetwork retrieves a full network by its id.
// Returns ErrNetworkNotFound if it doesn't exist.
func (s *PGStore) GetNetwork(ctx context.Context, networkID string) (*neurons.Descriptor, error) {
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM networks WHERE id = $1)`, networkID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("neurons: get network: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", neurons.ErrNetworkNotFound, networkID)
	}

	nodes, err := s.ListNodes(ctx, networkID)
	if err != nil {
		return nil, err
	}
	links, err := s.ListLinks(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return &neurons.Descriptor{ID: networkID, Nodes: nodes, Links: links}, nil
}

// DeleteNetwork removes a network with its nodes and links.
// No error if the network doesn't exist.
func (s *PGStore) DeleteNetwork(ctx context.Context, networkID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM networks WHERE id = $1`, networkID); err != nil {
		return fmt.Errorf("neurons: delete network: %w", err)
	}
	return nil
}
