package protocol

import (
	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/merkle"
)

// DecodedMessage is an authenticated message body and its forward pointer.
type DecodedMessage struct {
	Payload  []byte      `json:"payload"`
	NextRoot crypto.Hash `json:"next_root"`

	Mode Mode `json:"mode"`

	// Offset is the leaf offset within the epoch authenticated by the root.
	Offset uint32 `json:"offset"`

	// EpochSize is the number of messages that share the root.
	EpochSize uint32 `json:"epoch_size"`
}

// Decode unmasks payload with key, verifies its one-time signature and its
// membership in the tree with the claimed root, and returns the body and the
// embedded next root. Public payloads ignore key; the zero key means none.
//
// Decode is pure and safe for concurrent use. Untrusted input yields
// ErrMalformedPayload or ErrSignatureInvalid, never a panic.
func Decode(root crypto.Hash, payload []byte, key crypto.SideKey) (*DecodedMessage, error) {
	p, err := parsePayload(payload)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(p.masked))
	copy(plain, p.masked)
	if p.header.mode != Public {
		crypto.MaskInplace(plain, key, root, p.header.offset)
	}

	leaf, err := crypto.RecoverPublicKey(p.header.security, signedData(p.raw, plain), p.signature)
	if err != nil {
		return nil, malformed("%v", err)
	}

	if !merkle.Verify(root, leaf, p.header.offset, p.path) {
		return nil, ErrSignatureInvalid
	}

	split := len(plain) - crypto.HashSize
	var nextRoot crypto.Hash
	copy(nextRoot[:], plain[split:])

	return &DecodedMessage{
		Payload:   plain[:split:split],
		NextRoot:  nextRoot,
		Mode:      p.header.mode,
		Offset:    p.header.offset,
		EpochSize: p.header.epochSize,
	}, nil
}
