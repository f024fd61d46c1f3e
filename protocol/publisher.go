package protocol

import (
	"context"
	"fmt"
)

// Attach publishes an encoded message at its address.
func Attach(ctx context.Context, transport Transport, msg *EncodedMessage) error {
	if err := transport.Publish(ctx, msg.Address, msg.Payload); err != nil {
		return fmt.Errorf("%w: publish at %s: %w", ErrTransport, msg.Address, err)
	}
	return nil
}

// Publisher encodes messages on a channel and attaches them to a ledger.
type Publisher struct {
	Channel   *Channel
	Transport Transport
}

// Publish encodes body and attaches it. If attaching fails the message has
// already consumed its leaf; the returned message can be re-attached with
// Attach.
func (p *Publisher) Publish(ctx context.Context, body []byte) (*EncodedMessage, error) {
	msg, err := p.Channel.Encode(body)
	if err != nil {
		return nil, err
	}
	if err := Attach(ctx, p.Transport, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// PublishMessage serializes obj as JSON and publishes it.
func PublishMessage[T any](ctx context.Context, p *Publisher, obj *T) (*EncodedMessage, error) {
	body, err := SerializeMessage(obj)
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}
	return p.Publish(ctx, body)
}
