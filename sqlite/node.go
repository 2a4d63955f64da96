package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meikuraledutech/neurons"
)

func (s *Store) AddNode(ctx context.Context, networkID string, node *neurons.NodeDescriptor) (int64, error) {
	if !node.Kind.Valid() {
		return 0, fmt.Errorf("%w: %d", neurons.ErrUnknownKind, int(node.Kind))
	}
	var id int64
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = allocID(ctx, tx, networkID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO network_nodes (network_id, id, kind, params) VALUES (?, ?, ?, ?)`,
			networkID, id, node.Kind.String(), nullJSON(node.Params),
		); err != nil {
			return fmt.Errorf("neurons: insert node: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	node.ID = id
	node.Ref = ""
	return id, nil
}

func (s *Store) GetNode(ctx context.Context, networkID string, nodeID int64) (*neurons.NodeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, params FROM network_nodes WHERE network_id = ? AND id = ?`, networkID, nodeID)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", neurons.ErrNodeNotFound, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("neurons: get node: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateNode(ctx context.Context, networkID string, node *neurons.NodeDescriptor) error {
	if !node.Kind.Valid() {
		return fmt.Errorf("%w: %d", neurons.ErrUnknownKind, int(node.Kind))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE network_nodes SET kind = ?, params = ? WHERE network_id = ? AND id = ?`,
		node.Kind.String(), nullJSON(node.Params), networkID, node.ID,
	)
	if err != nil {
		return fmt.Errorf("neurons: update node: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", neurons.ErrNodeNotFound, node.ID)
	}
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, networkID string, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM network_nodes WHERE network_id = ? AND id = ?`, networkID, nodeID); err != nil {
		return fmt.Errorf("neurons: delete node: %w", err)
	}
	return nil
}

func (s *Store) ListNodes(ctx context.Context, networkID string) ([]neurons.NodeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, params FROM network_nodes WHERE network_id = ? ORDER BY id`, networkID)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*neurons.NodeDescriptor, error) {
	var (
		n      neurons.NodeDescriptor
		kind   string
		params sql.NullString
	)
	if err := row.Scan(&n.ID, &kind, &params); err != nil {
		return nil, err
	}
	k, err := neurons.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	n.Kind = k
	if params.Valid {
		n.Params = []byte(params.String)
	}
	return &n, nil
}
