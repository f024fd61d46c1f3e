package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/ledger"
	"github.com/flashbots/mamchan/protocol"
	"github.com/flashbots/mamchan/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func setupTestGateway(t *testing.T) (*Gateway, http.Handler, *ledger.MemoryStore) {
	t.Helper()

	store := ledger.NewMemoryStore()
	g, err := NewGateway(&GatewayConfig{
		Transport:    &ledger.StoreTransport{Store: store},
		Channel:      &protocol.ChannelConfig{Security: 1, EpochSize: 1},
		PollInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)

	r := chi.NewRouter()
	g.RegisterRoutes(r)
	return g, r, store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

func fetchWithKey(t *testing.T, h http.Handler, path, sideKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(SideKeyHeader, sideKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) *T {
	t.Helper()
	v, err := protocol.DecodeMessage[T](w.Body)
	require.NoError(t, err)
	return v
}

func TestGatewayChannelLifecycle(t *testing.T) {
	_, h, store := setupTestGateway(t)

	w := doJSON(t, h, http.MethodPost, "/channels", &CreateChannelRequest{Mode: protocol.Restricted, KeyMaterial: KeyMaterial{SideKey: "VERYSECRETKEY"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[ChannelResponse](t, w)
	require.NotEmpty(t, created.ID)
	require.Equal(t, protocol.Restricted, created.State.Mode)
	require.NotContains(t, w.Body.String(), "VERYSECRETKEY")

	var published []*MessageResponse
	for _, body := range []string{"one", "two"} {
		w = doJSON(t, h, http.MethodPost, "/channels/"+created.ID+"/messages", []byte(body))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		published = append(published, decodeBody[MessageResponse](t, w))
	}
	require.Equal(t, created.Root, published[0].Root)
	require.Equal(t, crypto.HashAddress(published[0].Root), published[0].Address)
	require.Equal(t, published[0].NextRoot, published[1].Root)

	stored, err := store.Load(t.Context(), published[1].Address)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	w = doJSON(t, h, http.MethodGet, "/channels/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeBody[ChannelResponse](t, w)
	require.Equal(t, uint64(2), info.State.Start)
	require.Equal(t, published[1].NextRoot, info.Root)

	w = fetchWithKey(t, h, "/fetch/"+created.Root.String()+"?mode=restricted", "VERYSECRETKEY")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fetched := decodeBody[FetchResponse](t, w)
	require.Equal(t, [][]byte{[]byte("one"), []byte("two")}, fetched.Messages)
	require.Equal(t, info.Root, fetched.NextRoot)

	w = fetchWithKey(t, h, "/fetch/"+created.Root.String()+"?mode=restricted", "WRONG")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	failed := decodeBody[FetchResponse](t, w)
	require.Empty(t, failed.Messages)
	require.NotEmpty(t, failed.Error)
}

func TestGatewaySetMode(t *testing.T) {
	_, h, _ := setupTestGateway(t)

	w := doJSON(t, h, http.MethodPost, "/channels", &CreateChannelRequest{})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[ChannelResponse](t, w)
	require.Equal(t, protocol.Public, created.State.Mode)

	w = doJSON(t, h, http.MethodPost, "/channels/"+created.ID+"/mode", &SetModeRequest{Mode: protocol.Restricted})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/channels/"+created.ID+"/mode", []byte(`{"mode":"secret"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/channels/"+created.ID+"/mode", &SetModeRequest{Mode: protocol.Private})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, protocol.Private, decodeBody[ChannelResponse](t, w).State.Mode)

	w = doJSON(t, h, http.MethodPost, "/channels/unknown/mode", &SetModeRequest{Mode: protocol.Private})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGatewayRejectsBadRequests(t *testing.T) {
	_, h, _ := setupTestGateway(t)

	w := doJSON(t, h, http.MethodPost, "/channels", &CreateChannelRequest{Security: 9})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/channels", &CreateChannelRequest{Growth: "tripling"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/channels", &CreateChannelRequest{
		Mode:        protocol.Restricted,
		KeyMaterial: KeyMaterial{SideKey: "a", PeerExchangeKey: "b"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/channels/missing/messages", []byte("x"))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodGet, "/fetch/zz", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodGet, "/fetch/"+crypto.Hash{1}.String()+"?mode=restricted", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodGet, "/fetch/"+crypto.Hash{1}.String()+"?mode=restricted&side_key=VERYSECRETKEY", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotContains(t, w.Body.String(), "VERYSECRETKEY")

	w = doJSON(t, h, http.MethodGet, "/subscriptions/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/subscriptions/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGatewaySubscription(t *testing.T) {
	g, h, _ := setupTestGateway(t)

	w := doJSON(t, h, http.MethodPost, "/channels", &CreateChannelRequest{Mode: protocol.Private})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[ChannelResponse](t, w)

	w = doJSON(t, h, http.MethodPost, "/subscriptions", &SubscribeRequest{Root: created.Root, Mode: protocol.Private, PollIntervalMs: 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decodeBody[SubscriptionResponse](t, w)
	require.True(t, sub.Active)

	for _, body := range []string{"alpha", "beta", "gamma"} {
		_, err := g.Publish(t.Context(), created.ID, []byte(body))
		require.NoError(t, err)
	}

	var collected [][]byte
	require.Eventually(t, func() bool {
		resp, err := g.Collect(sub.ID)
		if err != nil {
			return false
		}
		collected = append(collected, resp.Messages...)
		return len(collected) == 3
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}, collected)

	w = doJSON(t, h, http.MethodGet, "/subscriptions/"+sub.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decodeBody[SubscriptionResponse](t, w).Messages, "collected messages are not re-delivered")

	w = doJSON(t, h, http.MethodDelete, "/subscriptions/"+sub.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err := g.Collect(sub.ID)
	require.ErrorIs(t, err, ErrUnknownSubscription)
}

func TestSubscriptionBufferLimit(t *testing.T) {
	sub := &subscription{}
	deliver := sub.deliver(2)
	deliver([][]byte{[]byte("a"), []byte("b")})
	deliver([][]byte{[]byte("c")})

	require.Equal(t, [][]byte{[]byte("b"), []byte("c")}, sub.buffer)
	require.Equal(t, 1, sub.dropped)
}

func TestResolveKeyExchange(t *testing.T) {
	a, _, _ := setupTestGateway(t)
	b, _, _ := setupTestGateway(t)

	keyA, err := a.ResolveKey(protocol.Restricted, KeyMaterial{PeerExchangeKey: b.ExchangePublicKey().String()})
	require.NoError(t, err)
	keyB, err := b.ResolveKey(protocol.Restricted, KeyMaterial{PeerExchangeKey: a.ExchangePublicKey().String()})
	require.NoError(t, err)
	require.True(t, keyA.Equal(keyB))

	key, err := a.ResolveKey(protocol.Public, KeyMaterial{SideKey: "ignored"})
	require.NoError(t, err)
	require.True(t, key.IsZero())

	_, err = a.ResolveKey(protocol.Restricted, KeyMaterial{PeerExchangeKey: "not-hex"})
	require.ErrorIs(t, err, protocol.ErrInvalidKey)

	_, err = a.ResolveKey(protocol.Restricted, KeyMaterial{})
	require.ErrorIs(t, err, protocol.ErrMissingKey)
}

func TestGatewayTransportFailures(t *testing.T) {
	store := ledger.NewMemoryStore()
	recorder := testutil.NewRecordingTransport(&ledger.StoreTransport{Store: store})
	flaky := testutil.NewFlakyTransport(recorder, 1, 1)

	g, err := NewGateway(&GatewayConfig{
		Transport: flaky,
		Channel:   testutil.NewTestChannelConfig(testutil.WithEpochSize(2)),
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)

	r := chi.NewRouter()
	g.RegisterRoutes(r)

	w := doJSON(t, r, http.MethodPost, "/channels", &CreateChannelRequest{})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[ChannelResponse](t, w)

	w = doJSON(t, r, http.MethodPost, "/channels/"+created.ID+"/messages", []byte("lost"))
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Empty(t, recorder.Published(), "the failed publish never reached the ledger")

	w = doJSON(t, r, http.MethodPost, "/channels/"+created.ID+"/messages", []byte("kept"))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, []crypto.Hash{created.Root}, recorder.Published())

	w = doJSON(t, r, http.MethodGet, "/fetch/"+created.Root.String(), nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	w = doJSON(t, r, http.MethodGet, "/fetch/"+created.Root.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decodeBody[FetchResponse](t, w)
	require.Empty(t, fetched.Messages, "the unattached first leaf halts the read")
	require.Equal(t, created.Root, fetched.NextRoot)
	require.Equal(t, uint32(0), fetched.NextIndex)
	require.Equal(t, []crypto.Hash{created.Root}, recorder.Fetched())
}

func TestGatewayEpochSizeLimit(t *testing.T) {
	store := ledger.NewMemoryStore()
	g, err := NewGateway(&GatewayConfig{
		Transport:    &ledger.StoreTransport{Store: store},
		Channel:      &protocol.ChannelConfig{Security: 1, EpochSize: 1},
		MaxEpochSize: 4,
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)

	r := chi.NewRouter()
	g.RegisterRoutes(r)

	w := doJSON(t, r, http.MethodPost, "/channels", &CreateChannelRequest{EpochSize: protocol.MaxEpochSize})
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, err = g.CreateChannel(&CreateChannelRequest{EpochSize: 5})
	require.ErrorIs(t, err, protocol.ErrInvalidEpochSize)

	// Doubling growth stops at the gateway limit
	w = doJSON(t, r, http.MethodPost, "/channels", &CreateChannelRequest{EpochSize: 1, Growth: "doubling"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[ChannelResponse](t, w)

	var counts []uint32
	for i := 0; i < 16; i++ {
		_, err := g.Publish(t.Context(), created.ID, []byte{byte(i)})
		require.NoError(t, err)
		info, err := g.Channel(created.ID)
		require.NoError(t, err)
		counts = append(counts, info.State.Count)
	}
	for _, c := range counts {
		require.LessOrEqual(t, c, uint32(4))
	}
	require.Equal(t, uint32(4), counts[len(counts)-1])

	_, err = NewGateway(&GatewayConfig{
		Transport:    &ledger.StoreTransport{Store: store},
		Channel:      &protocol.ChannelConfig{Security: 1, EpochSize: 8},
		MaxEpochSize: 4,
	})
	require.ErrorIs(t, err, protocol.ErrInvalidEpochSize)

	growth, err := ParseGrowth("doubling", 4)
	require.NoError(t, err)
	require.Equal(t, uint32(4), growth.NextCount(4))
}
