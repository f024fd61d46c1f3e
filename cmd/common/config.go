package common

import (
	"fmt"
	"os"
	"time"

	"github.com/flashbots/mamchan/ledger"
	"github.com/flashbots/mamchan/protocol"
	"github.com/flashbots/mamchan/services"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration shared by the ledger and gateway commands.
// Each command reads the sections it needs.
type Config struct {
	HTTPAddr string       `yaml:"http_addr"`
	Log      LogConfig    `yaml:"log"`
	Server   ServerConfig `yaml:"server"`

	Ledger     ledger.Config    `yaml:"ledger"`
	LedgerNode LedgerNodeConfig `yaml:"ledger_node"`
	Gateway    GatewayConfig    `yaml:"gateway"`
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig tunes the HTTP server.
type ServerConfig struct {
	EnablePprof      bool          `yaml:"enable_pprof"`
	DrainDuration    time.Duration `yaml:"drain_duration"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// LedgerNodeConfig limits writes accepted by a ledger node.
type LedgerNodeConfig struct {
	PublishRate  float64 `yaml:"publish_rate"`
	PublishBurst int     `yaml:"publish_burst"`
}

// GatewayConfig configures the gateway command.
type GatewayConfig struct {
	// LedgerURL is the ledger node the gateway attaches to. Empty runs the
	// gateway on a private in-memory store.
	LedgerURL string `yaml:"ledger_url"`

	// ExchangeKey is a hex X25519 private key. Empty generates one per start.
	ExchangeKey string `yaml:"exchange_key"`

	Security  int    `yaml:"security"`
	EpochSize uint32 `yaml:"epoch_size"`
	Growth    string `yaml:"growth"`

	// MaxEpochSize caps requested and grown epochs. Zero means the gateway default.
	MaxEpochSize uint32 `yaml:"max_epoch_size"`

	PollInterval        time.Duration `yaml:"poll_interval"`
	MaxBufferedMessages int           `yaml:"max_buffered_messages"`
	AllowedOrigins      []string      `yaml:"allowed_origins"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			DrainDuration:    5 * time.Second,
			GracefulShutdown: 10 * time.Second,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
		},
		Ledger: ledger.Config{Backend: ledger.BackendMemory},
		LedgerNode: LedgerNodeConfig{
			PublishRate:  100,
			PublishBurst: 200,
		},
		Gateway: GatewayConfig{
			Security:            protocol.DefaultSecurity,
			EpochSize:           protocol.DefaultEpochSize,
			MaxEpochSize:        services.DefaultMaxEpochSize,
			PollInterval:        protocol.DefaultPollInterval,
			MaxBufferedMessages: 1024,
			AllowedOrigins:      []string{"*"},
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ChannelDefaults converts the gateway section into channel defaults.
func (g *GatewayConfig) ChannelDefaults() (*protocol.ChannelConfig, error) {
	growth, err := services.ParseGrowth(g.Growth, g.MaxEpochSize)
	if err != nil {
		return nil, err
	}
	cfg := &protocol.ChannelConfig{
		Security:  g.Security,
		EpochSize: g.EpochSize,
		Growth:    growth,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
