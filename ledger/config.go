package ledger

import (
	"context"
	"fmt"
)

// Backend names accepted by NewStore.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend  string          `yaml:"backend"`
	SQLite   string          `yaml:"sqlite_path"`
	Postgres *PostgresConfig `yaml:"postgres"`
	Redis    *RedisConfig    `yaml:"redis"`
}

// NewStore creates the configured store. An empty backend selects memory.
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendPostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres backend requires postgres settings")
		}
		return NewPostgresStore(cfg.Postgres)
	case BackendSQLite:
		if cfg.SQLite == "" {
			return nil, fmt.Errorf("sqlite backend requires sqlite_path")
		}
		return NewSQLiteStore(cfg.SQLite)
	case BackendRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis backend requires redis settings")
		}
		return NewRedisStore(ctx, cfg.Redis)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
