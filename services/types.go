package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
)

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	// Transport attaches and fetches payloads.
	Transport protocol.Transport

	// ExchangeKey is the gateway's X25519 key. The zero key generates one.
	ExchangeKey crypto.ExchangePrivateKey

	// Channel holds the defaults for channels created without explicit parameters.
	Channel *protocol.ChannelConfig

	// PollInterval is the default subscription poll interval.
	PollInterval time.Duration

	// MaxEpochSize caps the epoch size of every channel the gateway hosts,
	// including epochs reached by growth. Zero means DefaultMaxEpochSize.
	MaxEpochSize uint32

	// MaxBufferedMessages caps the messages kept per subscription until
	// collected. Older messages are dropped first.
	MaxBufferedMessages int

	Log *slog.Logger
}

// KeyMaterial selects the side key of a restricted channel. SideKey is used
// verbatim (padded); PeerExchangeKey derives a key shared with the peer
// holding the matching X25519 private key.
type KeyMaterial struct {
	SideKey         string `json:"side_key,omitempty"`
	PeerExchangeKey string `json:"peer_exchange_key,omitempty"`
}

// CreateChannelRequest creates a publisher channel.
type CreateChannelRequest struct {
	Security  int           `json:"security,omitempty"`
	EpochSize uint32        `json:"epoch_size,omitempty"`
	Growth    string        `json:"growth,omitempty"`
	Mode      protocol.Mode `json:"mode"`
	KeyMaterial
}

// SetModeRequest changes a channel's mode.
type SetModeRequest struct {
	Mode protocol.Mode `json:"mode"`
	KeyMaterial
}

// ChannelResponse describes a publisher channel. The seed and side key are
// never returned.
type ChannelResponse struct {
	ID          string                `json:"id"`
	Root        crypto.Hash           `json:"root"`
	ExchangeKey string                `json:"exchange_key"`
	State       protocol.ChannelState `json:"state"`
}

// MessageResponse describes a published message.
type MessageResponse struct {
	Root      crypto.Hash `json:"root"`
	Address   crypto.Hash `json:"address"`
	NextRoot  crypto.Hash `json:"next_root"`
	LeafIndex uint64      `json:"leaf_index"`
}

// SubscribeRequest starts a subscription at Root.
type SubscribeRequest struct {
	Root           crypto.Hash   `json:"root"`
	Mode           protocol.Mode `json:"mode"`
	PollIntervalMs int64         `json:"poll_interval_ms,omitempty"`
	KeyMaterial
}

// SubscriptionResponse describes a subscription and the messages collected
// since the previous response.
type SubscriptionResponse struct {
	ID        string          `json:"id"`
	Mode      protocol.Mode   `json:"mode"`
	Position  protocol.Cursor `json:"position"`
	Active    bool            `json:"active"`
	Messages  [][]byte        `json:"messages"`
	Dropped   int             `json:"dropped,omitempty"`
	LastError string          `json:"last_error,omitempty"`
}

// FetchResponse is returned by a one-shot chain read. Error is set when the
// read stopped early; Messages then holds what was read before the failure.
type FetchResponse struct {
	*protocol.FetchResult
	Error string `json:"error,omitempty"`
}

// ExchangeKeyResponse carries the gateway's X25519 public key.
type ExchangeKeyResponse struct {
	ExchangeKey string `json:"exchange_key"`
}

// ParseGrowth returns the growth policy named by s. Doubling stops at
// maxEpochSize; zero means protocol.MaxEpochSize.
func ParseGrowth(s string, maxEpochSize uint32) (protocol.GrowthPolicy, error) {
	switch s {
	case "", "fixed":
		return protocol.FixedGrowth{}, nil
	case "doubling":
		return protocol.DoublingGrowth{Max: maxEpochSize}, nil
	}
	return nil, fmt.Errorf("%w: unknown growth policy %q", protocol.ErrConfig, s)
}
