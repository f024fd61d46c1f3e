package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/flashbots/mamchan/crypto"
)

// Cursor is a read position in a chain: a root and the offset of the next
// unread message within that root's epoch.
type Cursor struct {
	Root  crypto.Hash `json:"root"`
	Index uint32      `json:"index"`
}

// FetchResult holds the messages read by one sequential read and the
// position to resume from.
type FetchResult struct {
	Messages [][]byte `json:"messages"`

	// NextRoot is the last seen forward pointer, or the starting root when
	// nothing was read.
	NextRoot crypto.Hash `json:"next_root"`

	// NextIndex is the offset within NextRoot's epoch to resume at. It is
	// non-zero only while an epoch larger than one leaf is partially published.
	NextIndex uint32 `json:"next_index"`
}

// Next returns the resume position.
func (r *FetchResult) Next() Cursor {
	return Cursor{Root: r.NextRoot, Index: r.NextIndex}
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Transport Transport

	// Log receives debug output. Nil disables logging.
	Log *slog.Logger
}

// Reader walks message chains on a ledger.
type Reader struct {
	transport Transport
	log       *slog.Logger
}

// NewReader creates a reader over the configured transport.
func NewReader(cfg *ReaderConfig) *Reader {
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reader{transport: cfg.Transport, log: log}
}

// Fetch reads the chain starting at root until the ledger has no payload at
// the next address. onMessage, if set, is called once per message in chain
// order before the read advances.
//
// On a decode or transport failure the messages read so far are returned
// together with the error. Cancellation is checked between ledger lookups.
func (r *Reader) Fetch(ctx context.Context, root crypto.Hash, mode Mode, key crypto.SideKey, onMessage func([]byte)) (*FetchResult, error) {
	return r.FetchFrom(ctx, Cursor{Root: root}, mode, key, onMessage)
}

// FetchFrom is Fetch resuming at a cursor returned by an earlier read.
func (r *Reader) FetchFrom(ctx context.Context, from Cursor, mode Mode, key crypto.SideKey, onMessage func([]byte)) (*FetchResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, uint8(mode))
	}

	res := &FetchResult{Messages: [][]byte{}, NextRoot: from.Root, NextIndex: from.Index}
	cur := from

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		epoch, err := r.readEpoch(ctx, cur.Root, mode, key)
		if errors.Is(err, ErrNotFound) {
			r.log.Debug("chain end", "root", cur.Root, "messages", len(res.Messages))
			return res, nil
		}
		if err != nil {
			return res, err
		}

		rolledOver := false
		for {
			msg, ok := epoch[cur.Index]
			if !ok {
				break
			}
			if onMessage != nil {
				onMessage(msg.Payload)
			}
			res.Messages = append(res.Messages, msg.Payload)

			cur.Index++
			if cur.Index >= msg.EpochSize {
				cur = Cursor{Root: msg.NextRoot}
				rolledOver = true
				break
			}
		}

		res.NextRoot, res.NextIndex = cur.Root, cur.Index
		if !rolledOver {
			r.log.Debug("epoch partially published", "root", cur.Root, "index", cur.Index)
			return res, nil
		}
	}
}

// FetchSingle reads the first message stored at root.
func (r *Reader) FetchSingle(ctx context.Context, root crypto.Hash, mode Mode, key crypto.SideKey) (*DecodedMessage, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, uint8(mode))
	}

	epoch, err := r.readEpoch(ctx, root, mode, key)
	if err != nil {
		return nil, err
	}

	offsets := make([]uint32, 0, len(epoch))
	for offset := range epoch {
		offsets = append(offsets, offset)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return epoch[offsets[0]], nil
}

// readEpoch fetches and decodes every payload stored at root's address,
// keyed by leaf offset. The first valid payload for an offset wins. Anyone
// may append to an address, so payloads that fail to decode are skipped; the
// first decode error is returned only when no payload at the address is valid.
func (r *Reader) readEpoch(ctx context.Context, root crypto.Hash, mode Mode, key crypto.SideKey) (map[uint32]*DecodedMessage, error) {
	address := Address(root, mode)

	payloads, err := r.transport.Fetch(ctx, address)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrTransport, address, err)
	}
	if len(payloads) == 0 {
		return nil, ErrNotFound
	}

	var firstErr error
	epoch := make(map[uint32]*DecodedMessage, len(payloads))
	for i, payload := range payloads {
		msg, err := Decode(root, payload, key)
		if err != nil {
			r.log.Debug("skipping invalid payload", "address", address, "position", i, "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("decode payload %d at %s: %w", i, address, err)
			}
			continue
		}
		if _, seen := epoch[msg.Offset]; !seen {
			epoch[msg.Offset] = msg
		}
	}
	if len(epoch) == 0 {
		return nil, firstErr
	}
	return epoch, nil
}
