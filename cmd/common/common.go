// Package common provides shared utilities for the mamchan commands.
//
// The ledger node, the gateway and the demo share:
//
//   - YAML configuration with flag overrides
//   - slog logger construction
//   - Exchange key loading and generation
//   - HTTP server settings and signal handling
package common

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/flashbots/mamchan/api/httpserver"
	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/ledger"
	"github.com/flashbots/mamchan/protocol"
)

// SetupLogger builds the process logger. Levels are debug, info, warn and error.
func SetupLogger(cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil && cfg.Level != "" {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// LoadOrGenerateExchangeKey loads an X25519 private key from a hex string,
// or generates a new key if hexKey is empty.
func LoadOrGenerateExchangeKey(hexKey string) (crypto.ExchangePrivateKey, error) {
	if hexKey != "" {
		key, err := crypto.NewExchangePrivateKeyFromString(hexKey)
		if err != nil {
			return crypto.ExchangePrivateKey{}, fmt.Errorf("invalid exchange key: %w", err)
		}
		return key, nil
	}
	_, key, err := crypto.GenerateExchangeKeyPair()
	return key, err
}

// NewTransport returns a client for the ledger at ledgerURL, or a private
// in-memory ledger when ledgerURL is empty.
func NewTransport(ledgerURL string) protocol.Transport {
	if ledgerURL == "" {
		return &ledger.StoreTransport{Store: ledger.NewMemoryStore()}
	}
	return ledger.NewClient(ledgerURL, nil)
}

// ServerConfig builds the HTTP server settings of a command.
func (c *Config) ServerConfig(log *slog.Logger, middlewares ...func(http.Handler) http.Handler) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               c.HTTPAddr,
		EnablePprof:              c.Server.EnablePprof,
		Log:                      log,
		Middlewares:              middlewares,
		DrainDuration:            c.Server.DrainDuration,
		GracefulShutdownDuration: c.Server.GracefulShutdown,
		ReadTimeout:              c.Server.ReadTimeout,
		WriteTimeout:             c.Server.WriteTimeout,
	}
}

// WaitForSignal blocks until SIGINT or SIGTERM.
func WaitForSignal() os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	return <-sigChan
}
