// Package protocol implements a masked, authenticated, append-only message
// channel anchored in an address-indexed ledger.
//
// # Channels and Epochs
//
// A publisher owns a Channel. Every message is signed with a one-time
// Winternitz key (a leaf) and authenticated by the Merkle root of the epoch the
// leaf belongs to. Each message also carries the root of the following epoch,
// so a reader holding one root can walk the whole chain:
//
//	ch, _ := protocol.NewChannel(protocol.DefaultChannelConfig())
//	_ = ch.SetMode(protocol.Restricted, []byte("VERYSECRETKEY"))
//	msg, _ := ch.Encode([]byte(`{"name":"Alice"}`))
//	// attach msg.Payload at msg.Address
//
// Leaves are drawn from a global index space [start, start+count) per epoch
// and are never reused. When an epoch is exhausted the next one starts where
// it ended; its size is chosen by a GrowthPolicy (FixedGrowth by default).
//
// # Modes
//
//   - Public: payloads are not masked and are stored at the root itself.
//   - Private: payloads are masked with a stream keyed by the root and stored
//     at hash(root), so the ledger never reveals the root.
//   - Restricted: like Private, with the stream additionally keyed by a shared
//     side key.
//
// # Payload Format
//
// A payload is self-describing:
//
//	version | mode | security | depth | epoch size | leaf offset
//	authentication path (depth * 32 bytes)
//	signature (security * 35 * 32 bytes)
//	masked(body | next root)
//
// The signature covers the header, the body and the next root. Decode never
// panics on untrusted input; it returns ErrMalformedPayload for structural
// problems and ErrSignatureInvalid for anything that does not authenticate.
//
// # Reading
//
// Reader walks a chain through a Transport until the ledger has nothing at
// the next address. Listener drives a Subscription on a timer without ever
// running two reads of the same subscription at once.
package protocol
