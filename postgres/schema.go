package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS networks (
    id         TEXT PRIMARY KEY,
    next_id    BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS network_nodes (
    network_id TEXT NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
    id         BIGINT NOT NULL,
    kind       TEXT NOT NULL,
    params     JSONB,
    PRIMARY KEY (network_id, id)
);

CREATE TABLE IF NOT EXISTS network_links (
    network_id TEXT NOT NULL,
    id         BIGINT NOT NULL,
    input_id   BIGINT NOT NULL,
    output_id  BIGINT NOT NULL,
    PRIMARY KEY (network_id, id),
    FOREIGN KEY (network_id, input_id)  REFERENCES network_nodes(network_id, id) ON DELETE CASCADE,
    FOREIGN KEY (network_id, output_id) REFERENCES network_nodes(network_id, id) ON DELETE CASCADE,
    CHECK (input_id <> output_id)
);

CREATE INDEX IF NOT EXISTS idx_network_links_input  ON network_links(network_id, input_id);
CREATE INDEX IF NOT EXISTS idx_network_links_output ON network_links(network_id, output_id);
`

// CreateSchema creates the networks, network_nodes and network_links tables
// if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops every table CreateSchema created.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS network_links, network_nodes, networks CASCADE;`)
	return err
}
