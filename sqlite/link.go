package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meikuraledutech/neurons"
)

func (s *Store) AddLink(ctx context.Context, networkID string, link *neurons.LinkDescriptor) (int64, error) {
	if link.Input == link.Output {
		return 0, neurons.ErrSelfLink
	}
	var id int64
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = allocID(ctx, tx, networkID); err != nil {
			return err
		}
		var found int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM network_nodes WHERE network_id = ? AND id IN (?, ?)`,
			networkID, link.Input, link.Output,
		).Scan(&found); err != nil {
			return fmt.Errorf("neurons: find endpoints: %w", err)
		}
		if found != 2 {
			return fmt.Errorf("%w: link %d -> %d", neurons.ErrNodeNotFound, link.Input, link.Output)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO network_links (network_id, id, input_id, output_id) VALUES (?, ?, ?, ?)`,
			networkID, id, link.Input, link.Output,
		); err != nil {
			return fmt.Errorf("neurons: insert link: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	link.ID = id
	link.InputRef, link.OutputRef = "", ""
	return id, nil
}

func (s *Store) DeleteLink(ctx context.Context, networkID string, linkID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM network_links WHERE network_id = ? AND id = ?`, networkID, linkID); err != nil {
		return fmt.Errorf("neurons: delete link: %w", err)
	}
	return nil
}

func (s *Store) ListLinks(ctx context.Context, networkID string) ([]neurons.LinkDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_id, output_id FROM network_links WHERE network_id = ? ORDER BY id`, networkID)
	if err != nil {
		return nil, fmt.Errorf("neurons: list links: %w", err)
	}
	defer rows.Close()

	links := []neurons.LinkDescriptor{}
	for rows.Next() {
		var l neurons.LinkDescriptor
		if err := rows.Scan(&l.ID, &l.Input, &l.Output); err != nil {
			return nil, fmt.Errorf("neurons: scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("neurons: rows links: %w", err)
	}
	return links, nil
}
