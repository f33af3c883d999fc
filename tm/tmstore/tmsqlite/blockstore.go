// Package tmsqlite implements [tmstore.BlockStore] on top of
// modernc.org/sqlite, kept (path-adjusted) from the teacher's tmsqlite
// package, which uses the same pure-Go sqlite driver for its stores.
// Unlike the teacher's header/proof-oriented schema, this package's
// schema holds exactly what spec §6.4 asks of a block store: a decided
// value's bytes and its commit certificate, keyed by height.
package tmsqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	height INTEGER PRIMARY KEY,
	value_bytes BLOB NOT NULL,
	cert_json TEXT NOT NULL
);
`

// BlockStore is a [tmstore.BlockStore] backed by a single sqlite
// database file (or ":memory:").
type BlockStore struct {
	db *sql.DB
}

var _ tmstore.BlockStore = (*BlockStore)(nil)

// Open opens or creates the sqlite database at dataSourceName and
// ensures its schema exists.
func Open(dataSourceName string) (*BlockStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("tmsqlite: opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tmsqlite: creating schema: %w", err)
	}

	return &BlockStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *BlockStore) Close() error {
	return s.db.Close()
}

func (s *BlockStore) SaveDecision(ctx context.Context, d tmstore.Decision) error {
	certJSON, err := json.Marshal(d.Cert)
	if err != nil {
		return fmt.Errorf("tmsqlite: marshaling certificate: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO decisions (height, value_bytes, cert_json) VALUES (?, ?, ?)
		 ON CONFLICT(height) DO UPDATE SET value_bytes = excluded.value_bytes, cert_json = excluded.cert_json`,
		int64(d.Height), d.ValueBytes, string(certJSON),
	)
	if err != nil {
		return fmt.Errorf("tmsqlite: saving decision for height %d: %w", d.Height, err)
	}
	return nil
}

func (s *BlockStore) LoadDecision(ctx context.Context, h tmconsensus.Height) (tmstore.Decision, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT value_bytes, cert_json FROM decisions WHERE height = ?`,
		int64(h),
	)

	var valueBytes []byte
	var certJSON string
	if err := row.Scan(&valueBytes, &certJSON); err != nil {
		if err == sql.ErrNoRows {
			return tmstore.Decision{}, tmstore.ErrHeightNotFound
		}
		return tmstore.Decision{}, fmt.Errorf("tmsqlite: loading decision for height %d: %w", h, err)
	}

	var cert tmcert.CommitCertificate
	if err := json.Unmarshal([]byte(certJSON), &cert); err != nil {
		return tmstore.Decision{}, fmt.Errorf("tmsqlite: unmarshaling certificate for height %d: %w", h, err)
	}

	return tmstore.Decision{Height: h, ValueBytes: valueBytes, Cert: cert}, nil
}

func (s *BlockStore) TipHeight(ctx context.Context) (tmconsensus.Height, error) {
	row := s.db.QueryRowContext(ctx, `SELECT MAX(height) FROM decisions`)

	var h sql.NullInt64
	if err := row.Scan(&h); err != nil {
		return 0, fmt.Errorf("tmsqlite: loading tip height: %w", err)
	}
	if !h.Valid {
		return 0, tmstore.ErrHeightNotFound
	}
	return tmconsensus.Height(h.Int64), nil
}

func (s *BlockStore) PruneBelow(ctx context.Context, retain tmconsensus.Height) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE height < ?`, int64(retain))
	if err != nil {
		return fmt.Errorf("tmsqlite: pruning below height %d: %w", retain, err)
	}
	return nil
}
