package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/neurons"
)

// AddNode inserts a single node, giving it the network's next id.
// Returns the new id.
func (s *PGStore) AddNode(ctx context.Context, networkID string, node *neurons.NodeDescriptor) (int64, error) {
	if !node.Kind.Valid() {
		return 0, fmt.Errorf("%w: %d", neurons.ErrUnknownKind, int(node.Kind))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("neurons: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := allocIDs(ctx, tx, networkID, 1)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO network_nodes (network_id, id, kind, params) VALUES ($1, $2, $3, $4)`,
		networkID, id, node.Kind.String(), node.Params,
	); err != nil {
		return 0, fmt.Errorf("neurons: insert node: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("neurons: commit: %w", err)
	}

	node.ID = id
	node.Ref = ""
	return id, nil
}

// GetNode fetches a single node.
// Returns ErrNodeNotFound if it doesn't exist.
func (s *PGStore) GetNode(ctx context.Context, networkID string, nodeID int64) (*neurons.NodeDescriptor, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, kind, params FROM network_nodes WHERE network_id = $1 AND id = $2`, networkID, nodeID)
	n, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", neurons.ErrNodeNotFound, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("neurons: get node: %w", err)
	}
	return n, nil
}

// UpdateNode replaces the kind and params of an existing node.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *PGStore) UpdateNode(ctx context.Context, networkID string, node *neurons.NodeDescriptor) error {
	if !node.Kind.Valid() {
		return fmt.Errorf("%w: %d", neurons.ErrUnknownKind, int(node.Kind))
	}
	ct, err := s.db.Exec(ctx,
		`UPDATE network_nodes SET kind = $1, params = $2 WHERE network_id = $3 AND id = $4`,
		node.Kind.String(), node.Params, networkID, node.ID,
	)
	if err != nil {
		return fmt.Errorf("neurons: update node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", neurons.ErrNodeNotFound, node.ID)
	}
	return nil
}

// DeleteNode deletes a node.
// Links touching it are cascade-deleted by the DB.
// No error if the node doesn't exist.
func (s *PGStore) DeleteNode(ctx context.Context, networkID string, nodeID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM network_nodes WHERE network_id = $1 AND id = $2`, networkID, nodeID)
	if err != nil {
		return fmt.Errorf("neurons: delete node: %w", err)
	}
	return nil
}

// ListNodes returns all nodes of a network in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListNodes(ctx context.Context, networkID string) ([]neurons.NodeDescriptor, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, kind, params FROM network_nodes WHERE network_id = $1 ORDER BY id`, networkID)
	if err != nil {
		return nil, fmt.Errorf("neurons: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []neurons.NodeDescriptor{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("neurons: scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("neurons: rows nodes: %w", err)
	}
	return nodes, nil
}

func scanNode(row pgx.Row) (*neurons.NodeDescriptor, error) {
	var (
		n    neurons.NodeDescriptor
		kind string
	)
	if err := row.Scan(&n.ID, &kind, &n.Params); err != nil {
		return nil, err
	}
	k, err := neurons.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	n.Kind = k
	return &n, nil
}
