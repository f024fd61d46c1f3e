package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = &sqlDialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ledger_payloads (
		seq BIGSERIAL PRIMARY KEY,
		address BYTEA NOT NULL,
		digest BYTEA NOT NULL,
		payload BYTEA NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE (address, digest)
	)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_payloads_address ON ledger_payloads(address, seq)`,
	},
	insert: `INSERT INTO ledger_payloads (address, digest, payload) VALUES ($1, $2, $3)
	ON CONFLICT (address, digest) DO NOTHING`,
	load: `SELECT payload FROM ledger_payloads WHERE address = $1 ORDER BY seq`,
}

// PostgresStore implements Store with PostgreSQL persistence.
type PostgresStore struct {
	*sqlStore
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore connects to PostgreSQL and creates the payload table.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return NewPostgresStoreFromDB(db)
}

// NewPostgresStoreFromDB wraps an open PostgreSQL handle.
func NewPostgresStoreFromDB(db *sql.DB) (*PostgresStore, error) {
	s, err := newSQLStore(db, postgresDialect)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{sqlStore: s}, nil
}
