package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
	"github.com/google/uuid"
)

const (
	defaultMaxBufferedMessages = 1024

	// DefaultMaxEpochSize bounds the trees a gateway builds on request.
	DefaultMaxEpochSize = 1 << 10
)

var sideKeyInfo = []byte("mamchan gateway side key")

var (
	ErrUnknownChannel      = errors.New("unknown channel")
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// Gateway hosts publisher channels and subscriptions on behalf of HTTP
// clients. Channels publish through the configured transport; every
// subscription is driven by its own listener.
type Gateway struct {
	transport       protocol.Transport
	reader          *protocol.Reader
	log             *slog.Logger
	channelDefaults protocol.ChannelConfig
	pollInterval    time.Duration
	maxBuffered     int
	maxEpochSize    uint32

	exchangeKey    crypto.ExchangePrivateKey
	exchangePubKey crypto.ExchangePublicKey

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	channels      map[string]*protocol.Publisher
	subscriptions map[string]*subscription
}

type subscription struct {
	id       string
	listener *protocol.Listener
	cancel   context.CancelFunc

	mu      sync.Mutex
	buffer  [][]byte
	dropped int
	lastErr error
}

// NewGateway creates a gateway. Close stops its subscriptions.
func NewGateway(cfg *GatewayConfig) (*Gateway, error) {
	if cfg.Transport == nil {
		return nil, errors.New("gateway requires a transport")
	}

	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	defaults := protocol.DefaultChannelConfig()
	if cfg.Channel != nil {
		defaults = cfg.Channel
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	maxEpochSize := cfg.MaxEpochSize
	if maxEpochSize == 0 {
		maxEpochSize = DefaultMaxEpochSize
	}
	if maxEpochSize > protocol.MaxEpochSize {
		return nil, fmt.Errorf("%w: gateway limit %d", protocol.ErrInvalidEpochSize, maxEpochSize)
	}
	if defaults.EpochSize > maxEpochSize {
		return nil, fmt.Errorf("%w: default %d exceeds gateway limit %d", protocol.ErrInvalidEpochSize, defaults.EpochSize, maxEpochSize)
	}

	exchangeKey := cfg.ExchangeKey
	if exchangeKey == (crypto.ExchangePrivateKey{}) {
		var err error
		if _, exchangeKey, err = crypto.GenerateExchangeKeyPair(); err != nil {
			return nil, fmt.Errorf("generating exchange key: %w", err)
		}
	}

	maxBuffered := cfg.MaxBufferedMessages
	if maxBuffered <= 0 {
		maxBuffered = defaultMaxBufferedMessages
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		transport:       cfg.Transport,
		reader:          protocol.NewReader(&protocol.ReaderConfig{Transport: cfg.Transport, Log: log}),
		log:             log,
		channelDefaults: *defaults,
		pollInterval:    cfg.PollInterval,
		maxBuffered:     maxBuffered,
		maxEpochSize:    maxEpochSize,
		exchangeKey:     exchangeKey,
		exchangePubKey:  exchangeKey.PublicKey(),
		ctx:             ctx,
		cancel:          cancel,
		channels:        make(map[string]*protocol.Publisher),
		subscriptions:   make(map[string]*subscription),
	}, nil
}

// ExchangePublicKey returns the key peers use to agree on side keys with
// this gateway.
func (g *Gateway) ExchangePublicKey() crypto.ExchangePublicKey {
	return g.exchangePubKey
}

// ResolveKey turns key material into a side key for mode. Public channels
// ignore key material; restricted channels require it.
func (g *Gateway) ResolveKey(mode protocol.Mode, km KeyMaterial) (crypto.SideKey, error) {
	if !mode.Valid() {
		return crypto.SideKey{}, fmt.Errorf("%w: %d", protocol.ErrInvalidMode, uint8(mode))
	}
	if mode == protocol.Public {
		return crypto.SideKey{}, nil
	}

	var key crypto.SideKey
	switch {
	case km.SideKey != "" && km.PeerExchangeKey != "":
		return key, fmt.Errorf("%w: side_key and peer_exchange_key are exclusive", protocol.ErrInvalidKey)
	case km.SideKey != "":
		var err error
		if key, err = crypto.NewSideKeyFromString(km.SideKey); err != nil {
			return key, fmt.Errorf("%w: %w", protocol.ErrInvalidKey, err)
		}
	case km.PeerExchangeKey != "":
		peer, err := crypto.NewExchangePublicKeyFromString(km.PeerExchangeKey)
		if err != nil {
			return key, fmt.Errorf("%w: %w", protocol.ErrInvalidKey, err)
		}
		if key, err = crypto.DeriveSideKey(g.exchangeKey, peer, sideKeyInfo); err != nil {
			return key, fmt.Errorf("%w: %w", protocol.ErrInvalidKey, err)
		}
	}

	if mode == protocol.Restricted && key.IsZero() {
		return key, protocol.ErrMissingKey
	}
	return key, nil
}

// CreateChannel creates a publisher channel with a fresh seed.
func (g *Gateway) CreateChannel(req *CreateChannelRequest) (*ChannelResponse, error) {
	cfg := g.channelDefaults
	cfg.Seed = nil
	if req.Security != 0 {
		cfg.Security = req.Security
	}
	if req.EpochSize != 0 {
		cfg.EpochSize = req.EpochSize
	}
	if cfg.EpochSize > g.maxEpochSize {
		return nil, fmt.Errorf("%w: %d exceeds gateway limit %d", protocol.ErrInvalidEpochSize, cfg.EpochSize, g.maxEpochSize)
	}
	if req.Growth != "" {
		growth, err := ParseGrowth(req.Growth, g.maxEpochSize)
		if err != nil {
			return nil, err
		}
		cfg.Growth = growth
	}
	if cfg.Growth != nil {
		cfg.Growth = cappedGrowth{policy: cfg.Growth, max: g.maxEpochSize}
	}

	key, err := g.ResolveKey(req.Mode, req.KeyMaterial)
	if err != nil {
		return nil, err
	}

	ch, err := protocol.NewChannel(&cfg)
	if err != nil {
		return nil, err
	}
	if err := ch.SetModeWithKey(req.Mode, key); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	g.mu.Lock()
	g.channels[id] = &protocol.Publisher{Channel: ch, Transport: g.transport}
	g.mu.Unlock()

	g.log.Info("channel created", "id", id, "mode", req.Mode, "security", cfg.Security, "epochSize", cfg.EpochSize)
	return g.describeChannel(id, ch)
}

// cappedGrowth keeps a growth policy within the gateway's epoch limit.
type cappedGrowth struct {
	policy protocol.GrowthPolicy
	max    uint32
}

func (c cappedGrowth) NextCount(current uint32) uint32 {
	if next := c.policy.NextCount(current); next < c.max {
		return next
	}
	return c.max
}

func (g *Gateway) publisher(id string) (*protocol.Publisher, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pub, ok := g.channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	return pub, nil
}

func (g *Gateway) describeChannel(id string, ch *protocol.Channel) (*ChannelResponse, error) {
	root, err := ch.Root()
	if err != nil {
		return nil, err
	}
	return &ChannelResponse{
		ID:          id,
		Root:        root,
		ExchangeKey: g.exchangePubKey.String(),
		State:       ch.State(),
	}, nil
}

// Channel describes the channel with the given id.
func (g *Gateway) Channel(id string) (*ChannelResponse, error) {
	pub, err := g.publisher(id)
	if err != nil {
		return nil, err
	}
	return g.describeChannel(id, pub.Channel)
}

// SetChannelMode changes the mode of a channel. Subsequent messages use it.
func (g *Gateway) SetChannelMode(id string, req *SetModeRequest) (*ChannelResponse, error) {
	pub, err := g.publisher(id)
	if err != nil {
		return nil, err
	}
	key, err := g.ResolveKey(req.Mode, req.KeyMaterial)
	if err != nil {
		return nil, err
	}
	if !pub.Channel.State().AtEpochStart() {
		g.log.Warn("mode changed inside an epoch, earlier messages of the epoch stay under the old mode", "id", id, "mode", req.Mode)
	}
	if err := pub.Channel.SetModeWithKey(req.Mode, key); err != nil {
		return nil, err
	}
	g.log.Info("channel mode changed", "id", id, "mode", req.Mode)
	return g.describeChannel(id, pub.Channel)
}

// Publish encodes body on a channel and attaches it to the ledger.
func (g *Gateway) Publish(ctx context.Context, id string, body []byte) (*MessageResponse, error) {
	pub, err := g.publisher(id)
	if err != nil {
		return nil, err
	}

	msg, err := pub.Publish(ctx, body)
	if err != nil {
		if msg != nil {
			g.log.Warn("message encoded but not attached", "id", id, "leaf", msg.LeafIndex, "err", err)
		}
		return nil, err
	}

	g.log.Debug("message published", "id", id, "leaf", msg.LeafIndex, "address", msg.Address)
	return &MessageResponse{
		Root:      msg.Root,
		Address:   msg.Address,
		NextRoot:  msg.NextRoot,
		LeafIndex: msg.LeafIndex,
	}, nil
}

// Fetch reads a chain once, starting at the given cursor.
func (g *Gateway) Fetch(ctx context.Context, from protocol.Cursor, mode protocol.Mode, km KeyMaterial) (*protocol.FetchResult, error) {
	key, err := g.ResolveKey(mode, km)
	if err != nil {
		return nil, err
	}
	return g.reader.FetchFrom(ctx, from, mode, key, nil)
}

// Subscribe starts a listener that polls the chain at req.Root.
func (g *Gateway) Subscribe(req *SubscribeRequest) (*SubscriptionResponse, error) {
	key, err := g.ResolveKey(req.Mode, req.KeyMaterial)
	if err != nil {
		return nil, err
	}

	interval := g.pollInterval
	if req.PollIntervalMs > 0 {
		interval = time.Duration(req.PollIntervalMs) * time.Millisecond
	}

	ps, err := protocol.NewSubscription(req.Root, req.Mode, key, interval)
	if err != nil {
		return nil, err
	}

	sub := &subscription{id: uuid.NewString()}
	sub.listener = protocol.NewListener(&protocol.ListenerConfig{
		Reader:       g.reader,
		Subscription: ps,
		OnMessages:   sub.deliver(g.maxBuffered),
		OnError:      sub.fail,
		Log:          g.log.With("subscription", sub.id),
	})

	ctx, cancel := context.WithCancel(g.ctx)
	sub.cancel = cancel

	g.mu.Lock()
	g.subscriptions[sub.id] = sub
	g.mu.Unlock()

	sub.listener.Start(ctx)
	g.log.Info("subscription started", "id", sub.id, "root", req.Root, "mode", req.Mode, "interval", ps.PollInterval())

	return sub.describe(false), nil
}

// Collect describes a subscription and hands over its buffered messages.
func (g *Gateway) Collect(id string) (*SubscriptionResponse, error) {
	g.mu.RLock()
	sub, ok := g.subscriptions[id]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}
	return sub.describe(true), nil
}

// Unsubscribe stops a subscription and waits for its last poll.
func (g *Gateway) Unsubscribe(id string) error {
	g.mu.Lock()
	sub, ok := g.subscriptions[id]
	delete(g.subscriptions, id)
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}

	sub.cancel()
	<-sub.listener.Done()
	g.log.Info("subscription stopped", "id", id)
	return nil
}

// Close stops every subscription.
func (g *Gateway) Close() {
	g.cancel()

	g.mu.Lock()
	subs := make([]*subscription, 0, len(g.subscriptions))
	for _, sub := range g.subscriptions {
		subs = append(subs, sub)
	}
	g.subscriptions = make(map[string]*subscription)
	g.mu.Unlock()

	for _, sub := range subs {
		<-sub.listener.Done()
	}
}

func (s *subscription) deliver(limit int) func([][]byte) {
	return func(msgs [][]byte) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.buffer = append(s.buffer, msgs...)
		if over := len(s.buffer) - limit; over > 0 {
			s.buffer = s.buffer[over:]
			s.dropped += over
		}
		s.lastErr = nil
	}
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *subscription) describe(drain bool) *SubscriptionResponse {
	ps := s.listener.Subscription()

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &SubscriptionResponse{
		ID:       s.id,
		Mode:     ps.Mode(),
		Position: ps.Position(),
		Active:   ps.Active(),
		Messages: [][]byte{},
		Dropped:  s.dropped,
	}
	if s.lastErr != nil {
		resp.LastError = s.lastErr.Error()
	}
	if drain {
		resp.Messages = append(resp.Messages, s.buffer...)
		s.buffer = nil
		s.dropped = 0
	}
	return resp
}
