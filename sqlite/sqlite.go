// Package sqlite implements neurons.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/meikuraledutech/neurons"
	sync "github.com/sasha-s/go-deadlock"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS networks (
    id      TEXT PRIMARY KEY,
    next_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS network_nodes (
    network_id TEXT NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
    id         INTEGER NOT NULL,
    kind       TEXT NOT NULL,
    params     TEXT,
    PRIMARY KEY (network_id, id)
);

CREATE TABLE IF NOT EXISTS network_links (
    network_id TEXT NOT NULL,
    id         INTEGER NOT NULL,
    input_id   INTEGER NOT NULL,
    output_id  INTEGER NOT NULL,
    PRIMARY KEY (network_id, id),
    FOREIGN KEY (network_id, input_id)  REFERENCES network_nodes(network_id, id) ON DELETE CASCADE,
    FOREIGN KEY (network_id, output_id) REFERENCES network_nodes(network_id, id) ON DELETE CASCADE,
    CHECK (input_id <> output_id)
);
`

// Store implements neurons.Store using SQLite via database/sql.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ neurons.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at path with foreign
// keys enabled.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("neurons: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("neurons: open sqlite: %w", err)
	}
	return New(db), nil
}

// New wraps an open database. Foreign keys must be enabled on db for
// deletes to cascade.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
DROP TABLE IF EXISTS network_links;
DROP TABLE IF EXISTS network_nodes;
DROP TABLE IF EXISTS networks;`)
	return err
}

// tx runs f in a transaction under the store mutex.
func (s *Store) tx(ctx context.Context, f func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("neurons: begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("neurons: commit: %w", err)
	}
	return nil
}

func allocID(ctx context.Context, tx *sql.Tx, networkID string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT next_id FROM networks WHERE id = ?`, networkID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", neurons.ErrNetworkNotFound, networkID)
	}
	if err != nil {
		return 0, fmt.Errorf("neurons: allocate id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE networks SET next_id = ? WHERE id = ?`, id+1, networkID); err != nil {
		return 0, fmt.Errorf("neurons: allocate id: %w", err)
	}
	return id, nil
}

// nullJSON stores empty params as NULL.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (s *Store) CreateNetwork(ctx context.Context, d *neurons.Descriptor) (*neurons.Descriptor, error) {
	var next int64
	if err := d.ResolveRefs(func() int64 { next++; return next - 1 }); err != nil {
		return nil, err
	}
	if err := d.Check(); err != nil {
		return nil, err
	}

	err := s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM networks WHERE id = ?`, d.ID); err != nil {
			return fmt.Errorf("neurons: delete network: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO networks (id, next_id) VALUES (?, ?)`, d.ID, next); err != nil {
			return fmt.Errorf("neurons: insert network: %w", err)
		}
		for _, n := range d.Nodes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO network_nodes (network_id, id, kind, params) VALUES (?, ?, ?, ?)`,
				d.ID, n.ID, n.Kind.String(), nullJSON(n.Params),
			); err != nil {
				return fmt.Errorf("neurons: insert node %d: %w", n.ID, err)
			}
		}
		for _, l := range d.Links {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO network_links (network_id, id, input_id, output_id) VALUES (?, ?, ?, ?)`,
				d.ID, l.ID, l.Input, l.Output,
			); err != nil {
				return fmt.Errorf("neurons: insert link %d: %w", l.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.ClearRefs()
	return d, nil
}

func (s *Store) GetNetwork(ctx context.Context, networkID string) (*neurons.Descriptor, error) {
	s.mu.Lock()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM networks WHERE id = ?`, networkID).Scan(&n)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("neurons: get network: %w", err)
	}
	if n == 0 {
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

func (s *Store) DeleteNetwork(ctx context.Context, networkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM networks WHERE id = ?`, networkID); err != nil {
		return fmt.Errorf("neurons: delete network: %w", err)
	}
	return nil
}
