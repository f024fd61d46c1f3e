package ledger

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = &sqlDialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ledger_payloads (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		address BLOB NOT NULL,
		digest BLOB NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (address, digest)
	)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_payloads_address ON ledger_payloads(address, seq)`,
	},
	insert: `INSERT OR IGNORE INTO ledger_payloads (address, digest, payload) VALUES (?, ?, ?)`,
	load:   `SELECT payload FROM ledger_payloads WHERE address = ? ORDER BY seq`,
}

// SQLiteStore implements Store with an embedded SQLite database.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens or creates the database file at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an open SQLite handle.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	s, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}
