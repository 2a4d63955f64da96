package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/neurons"
)

// PGStore implements neurons.Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

var _ neurons.Store = (*PGStore)(nil)

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// allocIDs reserves n consecutive ids from the network's counter and
// returns the first one.
func allocIDs(ctx context.Context, tx pgx.Tx, networkID string, n int64) (int64, error) {
	var first int64
	err := tx.QueryRow(ctx,
		`UPDATE networks SET next_id = next_id + $2 WHERE id = $1 RETURNING next_id - $2`,
		networkID, n,
	).Scan(&first)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", neurons.ErrNetworkNotFound, networkID)
	}
	if err != nil {
		return 0, fmt.Errorf("neurons: allocate ids: %w", err)
	}
	return first, nil
}
