package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/neurons"
)

// AddLink inserts a single link, giving it the network's next id.
// Both endpoints must exist and differ.
// Returns the new id.
func (s *PGStore) AddLink(ctx context.Context, networkID string, link *neurons.LinkDescriptor) (int64, error) {
	if link.Input == link.Output {
		return 0, neurons.ErrSelfLink
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

	var found int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM network_nodes WHERE network_id = $1 AND id IN ($2, $3)`,
		networkID, link.Input, link.Output,
	).Scan(&found); err != nil {
		return 0, fmt.Errorf("neurons: find endpoints: %w", err)
	}
	if found != 2 {
		return 0, fmt.Errorf("%w: link %d -> %d", neurons.ErrNodeNotFound, link.Input, link.Output)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO network_links (network_id, id, input_id, output_id) VALUES ($1, $2, $3, $4)`,
		networkID, id, link.Input, link.Output,
	); err != nil {
		return 0, fmt.Errorf("neurons: insert link: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("neurons: commit: %w", err)
	}

	link.ID = id
	link.InputRef, link.OutputRef = "", ""
	return id, nil
}

// DeleteLink deletes a link.
// No error if the link doesn't exist.
func (s *PGStore) DeleteLink(ctx context.Context, networkID string, linkID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM network_links WHERE network_id = $1 AND id = $2`, networkID, linkID)
	if err != nil {
		return fmt.Errorf("neurons: delete link: %w", err)
	}
	return nil
}

// ListLinks returns all links of a network in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListLinks(ctx context.Context, networkID string) ([]neurons.LinkDescriptor, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, input_id, output_id FROM network_links WHERE network_id = $1 ORDER BY id`, networkID)
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
