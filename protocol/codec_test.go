package protocol

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/flashbots/mamchan/crypto"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	key, err := crypto.NewSideKeyFromString("VERYSECRETKEY")
	require.NoError(t, err)

	for _, mode := range []Mode{Public, Private, Restricted} {
		for security := crypto.MinSecurity; security <= crypto.MaxSecurity; security++ {
			t.Run(fmt.Sprintf("%s/security-%d", mode, security), func(t *testing.T) {
				ch := testChannel("round-trip", security, 1)
				sideKey := crypto.SideKey{}
				if mode == Restricted {
					sideKey = key
				}
				require.NoError(t, ch.SetModeWithKey(mode, sideKey))

				for _, body := range [][]byte{[]byte("hello channel"), {}, bytes.Repeat([]byte{0xab}, 700)} {
					msg, err := ch.Encode(body)
					require.NoError(t, err)
					require.Len(t, msg.Payload, payloadSize(security, 0, len(body)))

					decoded, err := Decode(msg.Root, msg.Payload, sideKey)
					require.NoError(t, err)
					require.Equal(t, body, decoded.Payload)
					require.Equal(t, msg.NextRoot, decoded.NextRoot)
					require.Equal(t, mode, decoded.Mode)
					require.Equal(t, uint32(0), decoded.Offset)
					require.Equal(t, uint32(1), decoded.EpochSize)
				}
			})
		}
	}
}

func TestEncodeDecodeTreeOfEight(t *testing.T) {
	ch := testChannel("tree-of-eight", 2, 8)

	for i := 0; i < 8; i++ {
		body := []byte(fmt.Sprintf("message number %d", i))
		msg, err := ch.Encode(body)
		require.NoError(t, err)
		require.Equal(t, msg.Root, msg.Address, "public payloads live at the root")
		require.Len(t, msg.Payload, payloadSize(2, 3, len(body)))

		decoded, err := Decode(msg.Root, msg.Payload, crypto.SideKey{})
		require.NoError(t, err)
		require.Equal(t, body, decoded.Payload)
		require.Equal(t, uint32(i), decoded.Offset)
		require.Equal(t, uint32(8), decoded.EpochSize)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	ch := testChannel("garbage", 1, 1)
	msg, err := ch.Encode([]byte("genuine"))
	require.NoError(t, err)

	prefixed := append([]byte("garbage"), msg.Payload...)
	_, err = Decode(msg.Root, prefixed, crypto.SideKey{})
	require.Error(t, err)

	_, err = Decode(msg.Root, nil, crypto.SideKey{})
	require.ErrorIs(t, err, ErrMalformedPayload)

	_, err = Decode(msg.Root, msg.Payload[:headerSize+10], crypto.SideKey{})
	require.ErrorIs(t, err, ErrMalformedPayload)

	_, err = Decode(msg.Root, msg.Payload[:len(msg.Payload)-crypto.HashSize-1], crypto.SideKey{})
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeDetectsTampering(t *testing.T) {
	ch := testChannel("tamper", 1, 1)
	msg, err := ch.Encode([]byte("integrity"))
	require.NoError(t, err)

	for i := range msg.Payload {
		tampered := bytes.Clone(msg.Payload)
		tampered[i] ^= 0x01
		_, err := Decode(msg.Root, tampered, crypto.SideKey{})
		require.Error(t, err, "flipped bit in byte %d went unnoticed", i)
	}

	root := msg.Root
	root[0] ^= 0x01
	_, err = Decode(root, msg.Payload, crypto.SideKey{})
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestDecodeTamperedPathInDeepTree(t *testing.T) {
	ch := testChannel("tamper-path", 1, 4)
	_, err := ch.Encode([]byte("first"))
	require.NoError(t, err)
	msg, err := ch.Encode([]byte("second"))
	require.NoError(t, err)

	for i := headerSize; i < headerSize+2*crypto.HashSize; i++ {
		tampered := bytes.Clone(msg.Payload)
		tampered[i] ^= 0x80
		_, err := Decode(msg.Root, tampered, crypto.SideKey{})
		require.ErrorIs(t, err, ErrSignatureInvalid)
	}
}

func TestDecodeWrongKey(t *testing.T) {
	ch := testChannel("wrong-key", 1, 1)
	require.NoError(t, ch.SetMode(Restricted, []byte("VERYSECRETKEY")))
	msg, err := ch.Encode([]byte("for key holders"))
	require.NoError(t, err)

	wrong, err := crypto.NewSideKeyFromString("NOTTHEKEY")
	require.NoError(t, err)
	_, err = Decode(msg.Root, msg.Payload, wrong)
	require.ErrorIs(t, err, ErrSignatureInvalid)

	_, err = Decode(msg.Root, msg.Payload, crypto.SideKey{})
	require.ErrorIs(t, err, ErrSignatureInvalid)

	right, err := crypto.NewSideKeyFromString("VERYSECRETKEY")
	require.NoError(t, err)
	decoded, err := Decode(msg.Root, msg.Payload, right)
	require.NoError(t, err)
	require.Equal(t, []byte("for key holders"), decoded.Payload)
}

func TestMaskedPayloadHidesBody(t *testing.T) {
	body := []byte("a body long enough to spot in the clear")

	for _, mode := range []Mode{Private, Restricted} {
		ch := testChannel("hidden", 1, 1)
		require.NoError(t, ch.SetMode(mode, []byte("K")))
		msg, err := ch.Encode(body)
		require.NoError(t, err)
		require.False(t, bytes.Contains(msg.Payload, body), "%s payload leaks the body", mode)
	}

	ch := testChannel("visible", 1, 1)
	msg, err := ch.Encode(body)
	require.NoError(t, err)
	require.True(t, bytes.Contains(msg.Payload, body))
}

func TestModeAddressSeparation(t *testing.T) {
	root := crypto.HashAddress(crypto.Hash{1, 2, 3})

	require.Equal(t, root, Address(root, Public))
	require.Equal(t, crypto.HashAddress(root), Address(root, Private))
	require.Equal(t, Address(root, Private), Address(root, Restricted))
	require.NotEqual(t, Address(root, Public), Address(root, Private))

	ch := testChannel("separation", 1, 1)
	first, err := ch.Encode([]byte("public"))
	require.NoError(t, err)
	require.NoError(t, ch.SetMode(Private, nil))
	second, err := ch.Encode([]byte("private"))
	require.NoError(t, err)

	require.Equal(t, first.Root, first.Address)
	require.Equal(t, crypto.HashAddress(second.Root), second.Address)
	require.Equal(t, first.NextRoot, second.Root)
}

func TestLeafUniqueness(t *testing.T) {
	ch := testChannel("uniqueness", 1, 3)

	seen := map[uint64]bool{}
	roots := map[string]int{}
	for i := 0; i < 20; i++ {
		if i == 7 {
			require.NoError(t, ch.SetMode(Restricted, []byte("K")))
		}
		msg, err := ch.Encode([]byte("same body"))
		require.NoError(t, err)
		require.False(t, seen[msg.LeafIndex], "leaf %d signed twice", msg.LeafIndex)
		seen[msg.LeafIndex] = true
		roots[msg.Root.String()]++
	}

	for root, n := range roots {
		require.LessOrEqual(t, n, 3, "root %s authenticated more messages than its epoch size", root)
	}
}
