package ledger

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// PublishResponse is returned by POST /tx/{address}.
type PublishResponse struct {
	Address crypto.Hash `json:"address"`
	Stored  bool        `json:"stored"`
}

// FetchResponse is returned by GET /tx/{address}.
type FetchResponse struct {
	Address  crypto.Hash `json:"address"`
	Payloads [][]byte    `json:"payloads"`
}

// HandlerConfig configures a ledger node handler.
type HandlerConfig struct {
	Store Store
	Log   *slog.Logger

	// PublishRate limits POST requests per second. Zero disables limiting.
	PublishRate  float64
	PublishBurst int
}

// Handler serves a Store over HTTP.
type Handler struct {
	store   Store
	log     *slog.Logger
	limiter *rate.Limiter
}

// NewHandler creates a ledger node handler.
func NewHandler(cfg *HandlerConfig) *Handler {
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var limiter *rate.Limiter
	if cfg.PublishRate > 0 {
		burst := cfg.PublishBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.PublishRate), burst)
	}

	return &Handler{store: cfg.Store, log: log, limiter: limiter}
}

// RegisterRoutes registers the ledger endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/tx/{address}", h.handlePublish)
	r.Get("/tx/{address}", h.handleFetch)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	address, err := crypto.NewHashFromString(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored, err := h.store.Append(r.Context(), address, payload)
	if errors.Is(err, ErrInvalidPayload) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error("append failed", "address", address, "err", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	h.log.Debug("payload appended", "address", address, "bytes", len(payload), "stored", stored)
	writeJSON(w, http.StatusCreated, &PublishResponse{Address: address, Stored: stored})
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	address, err := crypto.NewHashFromString(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}

	payloads, err := h.store.Load(r.Context(), address)
	if errors.Is(err, protocol.ErrNotFound) {
		http.Error(w, "no payload at address", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("load failed", "address", address, "err", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, &FetchResponse{Address: address, Payloads: payloads})
}
