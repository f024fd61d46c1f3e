// Command ledger runs a standalone mamchan ledger node.
//
// The ledger stores channel payloads by address. It is the transport that
// publishers attach to and readers fetch from.
//
// # Configuration File
//
//	http_addr: ":7900"
//	log:
//	  level: info
//	  json: false
//	ledger:
//	  backend: postgres
//	  postgres:
//	    host: localhost
//	    port: 5432
//	    user: mamchan
//	    password: secret
//	    database: mamchan
//	    ssl_mode: disable
//	ledger_node:
//	  publish_rate: 100
//	  publish_burst: 200
//
// Backends are memory, sqlite (sqlite_path), postgres and redis.
//
// # Endpoints
//
//   - POST /tx/{address} - Attach a payload
//   - GET /tx/{address} - List payloads at an address
//   - GET /livez, /readyz - Health checks
//
// # Usage
//
//	go run ./cmd/ledger --config=ledger.yaml
//	go run ./cmd/ledger --addr=:7900 --backend=sqlite --sqlite=ledger.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flashbots/mamchan/api/httpserver"
	"github.com/flashbots/mamchan/cmd/common"
	"github.com/flashbots/mamchan/ledger"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		addr         = flag.String("addr", ":7900", "HTTP listen address")
		backend      = flag.String("backend", "", "Storage backend (memory, sqlite, postgres, redis)")
		sqlitePath   = flag.String("sqlite", "", "SQLite database path")
		redisAddr    = flag.String("redis", "", "Redis address")
		publishRate  = flag.Float64("publish-rate", 0, "Accepted attaches per second")
		publishBurst = flag.Int("publish-burst", 0, "Attach burst size")
		logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logJSON      = flag.Bool("log-json", false, "Log in JSON")
	)
	flag.Parse()

	// isFlagSet checks if a flag was explicitly provided on command line
	isFlagSet := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if isFlagSet("addr") || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = *addr
	}
	if *backend != "" {
		cfg.Ledger.Backend = *backend
	}
	if *sqlitePath != "" {
		cfg.Ledger.SQLite = *sqlitePath
	}
	if *redisAddr != "" {
		if cfg.Ledger.Redis == nil {
			cfg.Ledger.Redis = &ledger.RedisConfig{}
		}
		cfg.Ledger.Redis.Addr = *redisAddr
	}
	if *publishRate != 0 {
		cfg.LedgerNode.PublishRate = *publishRate
	}
	if *publishBurst != 0 {
		cfg.LedgerNode.PublishBurst = *publishBurst
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if isFlagSet("log-json") {
		cfg.Log.JSON = *logJSON
	}

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(cfg *common.Config) error {
	log, err := common.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := ledger.NewStore(ctx, &cfg.Ledger)
	cancel()
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer store.Close()

	handler := ledger.NewHandler(&ledger.HandlerConfig{
		Store:        store,
		Log:          log,
		PublishRate:  cfg.LedgerNode.PublishRate,
		PublishBurst: cfg.LedgerNode.PublishBurst,
	})

	server, err := httpserver.New(cfg.ServerConfig(log), handler)
	if err != nil {
		return err
	}

	server.RunInBackground()
	log.Info("Ledger node running", "backend", cfg.Ledger.Backend, "addr", cfg.HTTPAddr)

	common.WaitForSignal()
	log.Info("Shutting down ledger node")
	server.Shutdown()
	return nil
}
