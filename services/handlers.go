package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
	"github.com/go-chi/chi/v5"
)

// MaxMessageSize is the largest message body the gateway publishes.
const MaxMessageSize = 512 << 10

// RegisterRoutes registers the gateway endpoints.
func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get("/exchange-key", g.handleExchangeKey)

	r.Post("/channels", g.handleCreateChannel)
	r.Get("/channels/{id}", g.handleGetChannel)
	r.Post("/channels/{id}/mode", g.handleSetMode)
	r.Post("/channels/{id}/messages", g.handlePublish)

	r.Post("/subscriptions", g.handleSubscribe)
	r.Get("/subscriptions/{id}", g.handleCollect)
	r.Delete("/subscriptions/{id}", g.handleUnsubscribe)

	r.Get("/fetch/{root}", g.handleFetch)
}

// httpStatus maps gateway and protocol errors to response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownChannel), errors.Is(err, ErrUnknownSubscription):
		return http.StatusNotFound
	case errors.Is(err, protocol.ErrConfig), errors.Is(err, protocol.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, protocol.ErrSignatureInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, protocol.ErrKeyExhausted):
		return http.StatusConflict
	case errors.Is(err, protocol.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (g *Gateway) handleExchangeKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &ExchangeKeyResponse{ExchangeKey: g.exchangePubKey.String()})
}

func (g *Gateway) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := g.CreateChannel(&req)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (g *Gateway) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	resp, err := g.Channel(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := g.SetChannelMode(chi.URLParam(r, "id"), &req)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxMessageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := g.Publish(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (g *Gateway) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := g.Subscribe(&req)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (g *Gateway) handleCollect(w http.ResponseWriter, r *http.Request) {
	resp, err := g.Collect(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := g.Unsubscribe(chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SideKeyHeader carries the restricted side key of a fetch. Side keys are
// never accepted in the URL.
const SideKeyHeader = "X-Side-Key"

// handleFetch serves GET /fetch/{root}?mode=&index=&peer_exchange_key= with
// the side key, if any, in SideKeyHeader.
func (g *Gateway) handleFetch(w http.ResponseWriter, r *http.Request) {
	root, err := crypto.NewHashFromString(chi.URLParam(r, "root"))
	if err != nil {
		http.Error(w, "invalid root", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	mode := protocol.Public
	if m := query.Get("mode"); m != "" {
		if mode, err = protocol.ParseMode(m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var index uint64
	if i := query.Get("index"); i != "" {
		if index, err = strconv.ParseUint(i, 10, 32); err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
	}

	if query.Has("side_key") {
		http.Error(w, "side_key must be sent in the "+SideKeyHeader+" header", http.StatusBadRequest)
		return
	}

	km := KeyMaterial{SideKey: r.Header.Get(SideKeyHeader), PeerExchangeKey: query.Get("peer_exchange_key")}
	res, err := g.Fetch(r.Context(), protocol.Cursor{Root: root, Index: uint32(index)}, mode, km)
	if res == nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	resp := &FetchResponse{FetchResult: res}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = httpStatus(err)
	}
	writeJSON(w, status, resp)
}
