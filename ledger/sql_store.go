package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
)

const (
	queryTimeout   = 5 * time.Second
	migrateTimeout = 30 * time.Second
)

// sqlDialect holds the statements a SQL backend runs.
type sqlDialect struct {
	schema []string
	insert string
	load   string
}

// sqlStore implements Store over database/sql. Payloads are unique per
// (address, digest) and ordered by an auto-increment sequence.
type sqlStore struct {
	db      *sql.DB
	dialect *sqlDialect
}

func newSQLStore(db *sql.DB, dialect *sqlDialect) (*sqlStore, error) {
	s := &sqlStore{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *sqlStore) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append inserts payload unless the address already holds it.
func (s *sqlStore) Append(ctx context.Context, address crypto.Hash, payload []byte) (bool, error) {
	if err := checkPayload(payload); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	digest := payloadDigest(payload)
	res, err := s.db.ExecContext(ctx, s.dialect.insert, address.Bytes(), digest[:], payload)
	if err != nil {
		return false, fmt.Errorf("inserting payload at %s: %w", address, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Load returns the payloads at address in insertion order.
func (s *sqlStore) Load(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.dialect.load, address.Bytes())
	if err != nil {
		return nil, fmt.Errorf("loading payloads at %s: %w", address, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, protocol.ErrNotFound
	}
	return payloads, nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}
