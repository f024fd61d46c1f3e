package protocol

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ErrPollInFlight is returned by Listener.Poll while another poll of the same
// subscription is running.
var ErrPollInFlight = errors.New("poll already in flight")

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Reader       *Reader
	Subscription *Subscription

	// OnMessages receives the messages of every poll that read any, in chain order.
	OnMessages func(msgs [][]byte)

	// OnError receives decode and transport failures. Nil only logs them.
	OnError func(err error)

	Log *slog.Logger
}

// Listener is a timer-driven task that owns one subscription and polls it.
// Polls never overlap: a tick that fires while a poll is running is skipped.
type Listener struct {
	reader     *Reader
	sub        *Subscription
	onMessages func([][]byte)
	onError    func(error)
	log        *slog.Logger

	inFlight atomic.Bool
	started  atomic.Bool
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewListener creates a listener. It does nothing until Start or Poll.
func NewListener(cfg *ListenerConfig) *Listener {
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Listener{
		reader:     cfg.Reader,
		sub:        cfg.Subscription,
		onMessages: cfg.OnMessages,
		onError:    cfg.OnError,
		log:        log,
		done:       make(chan struct{}),
	}
}

// Subscription returns the subscription driven by the listener.
func (l *Listener) Subscription() *Subscription {
	return l.sub
}

// Start polls immediately and then every poll interval until ctx is done.
// Starting twice has no effect.
func (l *Listener) Start(ctx context.Context) {
	if l.started.Swap(true) {
		return
	}

	go func() {
		defer close(l.done)

		ticker := time.NewTicker(l.sub.PollInterval())
		defer ticker.Stop()

		l.trigger(ctx)
		for {
			select {
			case <-ctx.Done():
				l.wg.Wait()
				l.sub.setActive(false)
				return
			case <-ticker.C:
				l.trigger(ctx)
			}
		}
	}()
}

// Done is closed once a started listener has stopped and its last poll returned.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Poll reads new messages once, synchronously.
func (l *Listener) Poll(ctx context.Context) (*FetchResult, error) {
	if !l.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPollInFlight
	}
	defer l.inFlight.Store(false)
	return l.poll(ctx)
}

func (l *Listener) trigger(ctx context.Context) {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.log.Debug("poll skipped, previous poll still running", "root", l.sub.Position().Root)
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inFlight.Store(false)
		l.poll(ctx)
	}()
}

func (l *Listener) poll(ctx context.Context) (*FetchResult, error) {
	res, err := l.reader.FetchFrom(ctx, l.sub.Position(), l.sub.Mode(), l.sub.Key(), nil)
	if res != nil {
		l.sub.setPosition(res.Next())
		if len(res.Messages) > 0 && l.onMessages != nil {
			l.onMessages(res.Messages)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		l.log.Warn("poll failed", "root", l.sub.Position().Root, "err", err)
		if l.onError != nil {
			l.onError(err)
		}
	}
	return res, err
}
