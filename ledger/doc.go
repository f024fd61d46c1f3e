// Package ledger provides address-indexed append-only payload stores and an
// HTTP ledger node.
//
// Every address holds an ordered list of payloads. Appending a payload that
// the address already holds is a no-op, so publishers may retry freely.
// Store implementations:
//
//   - MemoryStore: process memory, for tests and single-process demos.
//   - PostgresStore: PostgreSQL via lib/pq.
//   - SQLiteStore: embedded SQLite via modernc.org/sqlite.
//   - RedisStore: Redis lists with an atomic dedupe-append script.
//
// Handler serves a Store over HTTP:
//
//	POST /tx/{address}  raw payload body, 201 {"address","stored"}
//	GET  /tx/{address}  200 {"address","payloads":[base64...]} or 404
//
// Client is the matching protocol.Transport. StoreTransport exposes a Store
// directly as an in-process transport.
package ledger
