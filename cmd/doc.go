// Package cmd provides CLI commands for mamchan.
//
// # Commands
//
// ledger: Stores channel payloads by address and serves them over HTTP.
// Payloads live in memory, SQLite, PostgreSQL or Redis.
//
//	go run ./cmd/ledger --addr=:7900 --backend=sqlite --sqlite=ledger.db
//
// gateway: Holds channels and subscriptions for HTTP clients, attaching to a
// ledger node. Restricted channels can be keyed by X25519 agreement with the
// gateway's exchange key.
//
//	go run ./cmd/gateway --addr=:8888 --ledger=http://localhost:7900
//
// demo: Publishes Alice, Bob and Charlie on a channel and reads them back.
//
//	go run ./cmd/demo --mode=restricted --key=VERYSECRETKEY
//
// # Configuration
//
// The ledger and gateway commands read YAML configuration via --config.
// Command-line flags override config file values.
//
//	http_addr: ":8888"
//	log:
//	  level: debug
//	  json: true
//	server:
//	  drain_duration: 5s
//	  graceful_shutdown: 10s
//	ledger:
//	  backend: redis
//	  redis:
//	    addr: "localhost:6379"
//	    key_prefix: mamchan
//	gateway:
//	  ledger_url: "http://localhost:7900"
//	  epoch_size: 4
//	  growth: doubling
package cmd
