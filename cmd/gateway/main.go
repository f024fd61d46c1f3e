// Command gateway runs a mamchan gateway.
//
// The gateway holds publisher channels and reader subscriptions on behalf of
// HTTP clients and attaches to a ledger node.
//
// # Configuration File
//
//	http_addr: ":8888"
//	gateway:
//	  ledger_url: "http://localhost:7900"
//	  exchange_key: ""
//	  security: 2
//	  epoch_size: 4
//	  growth: doubling
//	  max_epoch_size: 1024
//	  poll_interval: 5s
//	  max_buffered_messages: 1024
//	  allowed_origins: ["*"]
//
// # Endpoints
//
//   - GET /exchange-key - Gateway X25519 public key
//   - POST /channels - Create a channel
//   - GET /channels/{id} - Channel state
//   - POST /channels/{id}/mode - Change the channel mode
//   - POST /channels/{id}/messages - Publish a message
//   - POST /subscriptions - Subscribe to a channel
//   - GET /subscriptions/{id} - Collect received messages
//   - DELETE /subscriptions/{id} - Stop a subscription
//   - GET /fetch/{root} - One-shot read of a channel
//
// # Usage
//
//	go run ./cmd/gateway --config=gateway.yaml
//	go run ./cmd/gateway --addr=:8888 --ledger=http://localhost:7900
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flashbots/mamchan/api/httpserver"
	"github.com/flashbots/mamchan/cmd/common"
	"github.com/flashbots/mamchan/services"
	"github.com/go-chi/cors"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		addr         = flag.String("addr", ":8888", "HTTP listen address")
		ledgerURL    = flag.String("ledger", "", "Ledger node URL (empty for in-memory)")
		exchangeKey  = flag.String("exchange-key", "", "Hex X25519 private key")
		security     = flag.Int("security", 0, "Default channel security level")
		epochSize    = flag.Uint("epoch-size", 0, "Default channel epoch size")
		growth       = flag.String("growth", "", "Default growth policy (fixed, doubling)")
		pollInterval = flag.Duration("poll", 0, "Default subscription poll interval")
		logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
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

	applyFlagOverrides(cfg, *addr, *ledgerURL, *exchangeKey, *security,
		*epochSize, *growth, *pollInterval, *logLevel, isFlagSet("addr"))

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

func applyFlagOverrides(cfg *common.Config, addr, ledgerURL, exchangeKey string,
	security int, epochSize uint, growth string, pollInterval time.Duration,
	logLevel string, addrExplicit bool) {

	if addrExplicit || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = addr
	}
	if ledgerURL != "" {
		cfg.Gateway.LedgerURL = ledgerURL
	}
	if exchangeKey != "" {
		cfg.Gateway.ExchangeKey = exchangeKey
	}
	if security != 0 {
		cfg.Gateway.Security = security
	}
	if epochSize != 0 {
		cfg.Gateway.EpochSize = uint32(epochSize)
	}
	if growth != "" {
		cfg.Gateway.Growth = growth
	}
	if pollInterval != 0 {
		cfg.Gateway.PollInterval = pollInterval
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

func run(cfg *common.Config) error {
	log, err := common.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}

	channelDefaults, err := cfg.Gateway.ChannelDefaults()
	if err != nil {
		return err
	}

	exchangeKey, err := common.LoadOrGenerateExchangeKey(cfg.Gateway.ExchangeKey)
	if err != nil {
		return err
	}

	gateway, err := services.NewGateway(&services.GatewayConfig{
		Transport:           common.NewTransport(cfg.Gateway.LedgerURL),
		ExchangeKey:         exchangeKey,
		Channel:             channelDefaults,
		PollInterval:        cfg.Gateway.PollInterval,
		MaxEpochSize:        cfg.Gateway.MaxEpochSize,
		MaxBufferedMessages: cfg.Gateway.MaxBufferedMessages,
		Log:                 log,
	})
	if err != nil {
		return err
	}
	defer gateway.Close()

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Gateway.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", services.SideKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})

	server, err := httpserver.New(cfg.ServerConfig(log, corsHandler), gateway)
	if err != nil {
		return err
	}

	server.RunInBackground()
	if cfg.Gateway.LedgerURL == "" {
		log.Warn("No ledger configured, channels live in memory only")
	}
	log.Info("Gateway running",
		"addr", cfg.HTTPAddr,
		"ledger", cfg.Gateway.LedgerURL,
		"exchangeKey", gateway.ExchangePublicKey().String())

	common.WaitForSignal()
	log.Info("Shutting down gateway")
	server.Shutdown()
	return nil
}
