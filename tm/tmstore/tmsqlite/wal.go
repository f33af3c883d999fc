package tmsqlite

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmwal"
)

const walSchema = `
CREATE TABLE IF NOT EXISTS wal_meta (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	height INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS wal_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	entry BLOB NOT NULL
);
`

// WAL is a sqlite-backed write-ahead log holding one height's entries
// at a time, the database counterpart of [tmwal.FileWAL]: same entry
// codec, same replay-or-truncate StartHeight semantics, but with the
// durability characteristics of sqlite's journal instead of a raw
// fsynced file.
type WAL struct {
	db    *sql.DB
	codec tmwal.EntryCodec
}

// OpenWAL opens or creates the sqlite WAL at dataSourceName.
func OpenWAL(dataSourceName string, codec tmwal.EntryCodec) (*WAL, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("tmsqlite: opening wal database: %w", err)
	}

	if _, err := db.Exec(walSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tmsqlite: creating wal schema: %w", err)
	}

	return &WAL{db: db, codec: codec}, nil
}

// Close closes the underlying database handle.
func (w *WAL) Close() error {
	return w.db.Close()
}

// StartHeight replays the stored entries if the log's recorded height
// is h, and truncates to a fresh empty log for h otherwise.
func (w *WAL) StartHeight(h tmconsensus.Height) ([]tmwal.Entry, error) {
	var stored sql.NullInt64
	err := w.db.QueryRow(`SELECT height FROM wal_meta WHERE id = 0`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tmsqlite: reading wal height: %w", err)
	}

	if stored.Valid && tmconsensus.Height(stored.Int64) == h {
		return w.replay()
	}

	tx, err := w.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("tmsqlite: beginning wal truncation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM wal_entries`); err != nil {
		return nil, fmt.Errorf("tmsqlite: truncating wal entries: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO wal_meta (id, height) VALUES (0, ?)
		 ON CONFLICT(id) DO UPDATE SET height = excluded.height`,
		int64(h),
	); err != nil {
		return nil, fmt.Errorf("tmsqlite: recording wal height: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tmsqlite: committing wal truncation: %w", err)
	}

	return nil, nil
}

func (w *WAL) replay() ([]tmwal.Entry, error) {
	rows, err := w.db.Query(`SELECT entry FROM wal_entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("tmsqlite: reading wal entries: %w", err)
	}
	defer rows.Close()

	var entries []tmwal.Entry
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("tmsqlite: scanning wal entry: %w", err)
		}

		e, err := tmwal.ReadEntry(bytes.NewReader(b), w.codec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tmsqlite: truncated wal entry at seq %d", len(entries))
			}
			return nil, fmt.Errorf("tmsqlite: decoding wal entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Append encodes e and stores it as the next sequenced entry for the
// current height.
func (w *WAL) Append(e tmwal.Entry) error {
	var buf bytes.Buffer
	if err := tmwal.WriteEntry(&buf, w.codec, e); err != nil {
		return fmt.Errorf("tmsqlite: encoding wal entry: %w", err)
	}

	if _, err := w.db.Exec(`INSERT INTO wal_entries (entry) VALUES (?)`, buf.Bytes()); err != nil {
		return fmt.Errorf("tmsqlite: appending wal entry: %w", err)
	}
	return nil
}
