package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/flashbots/mamchan/crypto"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string `json:"name"`
}

func TestFetchRestrictedChain(t *testing.T) {
	ctx := context.Background()
	transport := newMemTransport()

	ch := testChannel("alice-bob-charlie", 2, 1)
	require.NoError(t, ch.SetMode(Restricted, []byte("VERYSECRETKEY")))
	pub := &Publisher{Channel: ch, Transport: transport}

	var first *EncodedMessage
	for _, name := range []string{"Alice", "Bob", "Charlie"} {
		msg, err := PublishMessage(ctx, pub, &person{Name: name})
		require.NoError(t, err)
		if first == nil {
			first = msg
		}
	}
	fourthRoot, err := ch.Root()
	require.NoError(t, err)

	key, err := crypto.NewSideKeyFromString("VERYSECRETKEY")
	require.NoError(t, err)

	reader := NewReader(&ReaderConfig{Transport: transport})

	var streamed []string
	res, err := reader.Fetch(ctx, first.Root, Restricted, key, func(body []byte) {
		p, err := UnmarshalMessage[person](body)
		require.NoError(t, err)
		streamed = append(streamed, p.Name)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob", "Charlie"}, streamed)
	require.Len(t, res.Messages, 3)
	for i, name := range []string{"Alice", "Bob", "Charlie"} {
		p, err := UnmarshalMessage[person](res.Messages[i])
		require.NoError(t, err)
		require.Equal(t, name, p.Name)
	}
	require.Equal(t, fourthRoot, res.NextRoot)
	require.Equal(t, uint32(0), res.NextIndex)

	res, err = reader.Fetch(ctx, res.NextRoot, Restricted, key, nil)
	require.NoError(t, err)
	require.Empty(t, res.Messages)
	require.Equal(t, fourthRoot, res.NextRoot)
}

func TestFetchWrongModeReadsNothing(t *testing.T) {
	ctx := context.Background()
	transport := newMemTransport()

	ch := testChannel("wrong-mode", 1, 1)
	require.NoError(t, ch.SetMode(Private, nil))
	pub := &Publisher{Channel: ch, Transport: transport}
	msg, err := pub.Publish(ctx, []byte("hidden"))
	require.NoError(t, err)

	reader := NewReader(&ReaderConfig{Transport: transport})
	res, err := reader.Fetch(ctx, msg.Root, Public, crypto.SideKey{}, nil)
	require.NoError(t, err)
	require.Empty(t, res.Messages)

	res, err = reader.Fetch(ctx, msg.Root, Private, crypto.SideKey{}, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("hidden")}, res.Messages)

	_, err = reader.Fetch(ctx, msg.Root, Mode(9), crypto.SideKey{}, nil)
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestFetchReturnsPartialResultsOnDecodeError(t *testing.T) {
	ctx := context.Background()
	transport := newMemTransport()

	ch := testChannel("partial", 1, 1)
	pub := &Publisher{Channel: ch, Transport: transport}
	first, err := pub.Publish(ctx, []byte("one"))
	require.NoError(t, err)
	_, err = pub.Publish(ctx, []byte("two"))
	require.NoError(t, err)

	third, err := ch.Root()
	require.NoError(t, err)
	transport.put(third, []byte("not a payload"))

	reader := NewReader(&ReaderConfig{Transport: transport})
	res, err := reader.Fetch(ctx, first.Root, Public, crypto.SideKey{}, nil)
	require.ErrorIs(t, err, ErrMalformedPayload)
	require.Equal(t, [][]byte{[]byte("one"), []byte("two")}, res.Messages)
	require.Equal(t, third, res.NextRoot)
}

func TestFetchSkipsJunkAppendedToAnAddress(t *testing.T) {
	ctx := context.Background()

	t.Run("single leaf epochs", func(t *testing.T) {
		transport := newMemTransport()
		ch := testChannel("junk-single", 1, 1)
		pub := &Publisher{Channel: ch, Transport: transport}

		first, err := pub.Publish(ctx, []byte("one"))
		require.NoError(t, err)
		transport.put(first.Address, []byte("junk appended by a stranger"))
		_, err = pub.Publish(ctx, []byte("two"))
		require.NoError(t, err)

		reader := NewReader(&ReaderConfig{Transport: transport})
		res, err := reader.Fetch(ctx, first.Root, Public, crypto.SideKey{}, nil)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("one"), []byte("two")}, res.Messages)
	})

	t.Run("multi leaf epoch", func(t *testing.T) {
		transport := newMemTransport()
		ch := testChannel("junk-multi", 1, 4)
		pub := &Publisher{Channel: ch, Transport: transport}

		first, err := pub.Publish(ctx, []byte("a"))
		require.NoError(t, err)
		_, err = pub.Publish(ctx, []byte("b"))
		require.NoError(t, err)
		transport.put(first.Address, []byte{0x01})

		// A validly framed payload signed for another root is skipped too
		other := testChannel("junk-other", 1, 4)
		forged, err := other.Encode([]byte("forged"))
		require.NoError(t, err)
		transport.put(first.Address, forged.Payload)

		reader := NewReader(&ReaderConfig{Transport: transport})
		res, err := reader.Fetch(ctx, first.Root, Public, crypto.SideKey{}, nil)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, res.Messages)
		require.Equal(t, Cursor{Root: first.Root, Index: 2}, res.Next())

		_, err = pub.Publish(ctx, []byte("c"))
		require.NoError(t, err)
		res, err = reader.FetchFrom(ctx, res.Next(), Public, crypto.SideKey{}, nil)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("c")}, res.Messages)
	})
}

func TestFetchSurfacesTransportErrors(t *testing.T) {
	ctx := context.Background()
	transport := newMemTransport()
	transport.setFetchErr(errors.New("connection refused"))

	reader := NewReader(&ReaderConfig{Transport: transport})
	res, err := reader.Fetch(ctx, crypto.Hash{7}, Public, crypto.SideKey{}, nil)
	require.ErrorIs(t, err, ErrTransport)
	require.Empty(t, res.Messages)
	require.Equal(t, crypto.Hash{7}, res.NextRoot)
}

func TestFetchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := newMemTransport()

	ch := testChannel("cancel", 1, 1)
	pub := &Publisher{Channel: ch, Transport: transport}
	first, err := pub.Publish(ctx, []byte("one"))
	require.NoError(t, err)
	_, err = pub.Publish(ctx, []byte("two"))
	require.NoError(t, err)

	reader := NewReader(&ReaderConfig{Transport: transport})
	res, err := reader.Fetch(ctx, first.Root, Public, crypto.SideKey{}, func([]byte) {
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, [][]byte{[]byte("one")}, res.Messages)
	require.Equal(t, first.NextRoot, res.NextRoot)
}

func TestFetchResumesInsideEpoch(t *testing.T) {
	ctx := context.Background()
	transport := newMemTransport()

	ch := testChannel("resume", 1, 4)
	pub := &Publisher{Channel: ch, Transport: transport}

	first, err := pub.Publish(ctx, []byte("m0"))
	require.NoError(t, err)
	_, err = pub.Publish(ctx, []byte("m1"))
	require.NoError(t, err)

	reader := NewReader(&ReaderConfig{Transport: transport})
	res, err := reader.Fetch(ctx, first.Root, Public, crypto.SideKey{}, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("m0"), []byte("m1")}, res.Messages)
	require.Equal(t, Cursor{Root: first.Root, Index: 2}, res.Next())

	var last *EncodedMessage
	for _, body := range []string{"m2", "m3", "m4"} {
		last, err = pub.Publish(ctx, []byte(body))
		require.NoError(t, err)
	}

	res, err = reader.FetchFrom(ctx, res.Next(), Public, crypto.SideKey{}, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("m2"), []byte("m3"), []byte("m4")}, res.Messages)
	require.Equal(t, Cursor{Root: last.Root, Index: 1}, res.Next())
}

func TestFetchOrdersEpochByOffset(t *testing.T) {
	ctx := context.Background()
	transport := newMemTransport()

	ch := testChannel("ordering", 1, 2)
	a, err := ch.Encode([]byte("first"))
	require.NoError(t, err)
	b, err := ch.Encode([]byte("second"))
	require.NoError(t, err)

	require.NoError(t, Attach(ctx, transport, b))
	require.NoError(t, Attach(ctx, transport, a))
	require.NoError(t, Attach(ctx, transport, a))

	reader := NewReader(&ReaderConfig{Transport: transport})
	res, err := reader.Fetch(ctx, a.Root, Public, crypto.SideKey{}, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("first"), []byte("second")}, res.Messages)
	require.Equal(t, b.NextRoot, res.NextRoot)

	single, err := reader.FetchSingle(ctx, a.Root, Public, crypto.SideKey{})
	require.NoError(t, err)
	require.Equal(t, []byte("first"), single.Payload)
	require.Equal(t, uint32(0), single.Offset)

	_, err = reader.FetchSingle(ctx, b.NextRoot, Public, crypto.SideKey{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestModeChangeInsideEpochSplitsReaders(t *testing.T) {
	ctx := context.Background()

	t.Run("inside an epoch", func(t *testing.T) {
		transport := newMemTransport()
		ch := testChannel("split-epoch", 1, 2)
		pub := &Publisher{Channel: ch, Transport: transport}

		first, err := pub.Publish(ctx, []byte("public"))
		require.NoError(t, err)
		require.False(t, ch.State().AtEpochStart())
		require.NoError(t, ch.SetMode(Private, nil))
		_, err = pub.Publish(ctx, []byte("private"))
		require.NoError(t, err)

		reader := NewReader(&ReaderConfig{Transport: transport})
		res, err := reader.Fetch(ctx, first.Root, Public, crypto.SideKey{}, nil)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("public")}, res.Messages)
		require.Equal(t, Cursor{Root: first.Root, Index: 1}, res.Next())

		res, err = reader.Fetch(ctx, first.Root, Private, crypto.SideKey{}, nil)
		require.NoError(t, err)
		require.Empty(t, res.Messages, "offset 0 is not at the private address")
	})

	t.Run("at an epoch boundary", func(t *testing.T) {
		transport := newMemTransport()
		ch := testChannel("split-boundary", 1, 2)
		pub := &Publisher{Channel: ch, Transport: transport}

		first, err := pub.Publish(ctx, []byte("p1"))
		require.NoError(t, err)
		second, err := pub.Publish(ctx, []byte("p2"))
		require.NoError(t, err)
		require.True(t, ch.State().AtEpochStart())
		require.NoError(t, ch.SetMode(Private, nil))
		_, err = pub.Publish(ctx, []byte("q1"))
		require.NoError(t, err)

		reader := NewReader(&ReaderConfig{Transport: transport})
		res, err := reader.Fetch(ctx, first.Root, Public, crypto.SideKey{}, nil)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("p1"), []byte("p2")}, res.Messages)
		require.Equal(t, second.NextRoot, res.NextRoot)

		res, err = reader.FetchFrom(ctx, res.Next(), Private, crypto.SideKey{}, nil)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("q1")}, res.Messages)
	})
}
