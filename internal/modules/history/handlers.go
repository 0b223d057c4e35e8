package history

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
)

// Handler handles history HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "history").Logger(),
	}
}

// RegisterRoutes registers all history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/", h.HandleListStored)

		r.Route("/{symbol}", func(r chi.Router) {
			r.Get("/", h.HandleGetCandles)
			r.Post("/sync", h.HandleSync)
			r.Delete("/", h.HandleDelete)
		})
	})
}

// HandleListStored handles GET / - symbols with stored history
func (h *Handler) HandleListStored(w http.ResponseWriter, r *http.Request) {
	stored, err := h.service.Stored()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stored history")
		http.Error(w, "Failed to list stored history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stored)
}

// HandleGetCandles handles GET /{symbol} - stored candles, oldest first.
// Supports limit=N for the most recent bars, or from/to (YYYY-MM-DD) for a
// date range.
func (h *Handler) HandleGetCandles(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !h.service.Store().Has(symbol) {
		http.Error(w, "No stored history for "+symbol, http.StatusNotFound)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = l
	}

	var from, to time.Time
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		t, err := time.ParseInLocation("2006-01-02", fromStr, time.UTC)
		if err != nil {
			http.Error(w, "Invalid from date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		from = t
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		t, err := time.ParseInLocation("2006-01-02", toStr, time.UTC)
		if err != nil {
			http.Error(w, "Invalid to date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		to = t
	}

	var (
		candles []domain.Candle
		err     error
	)
	if !from.IsZero() || !to.IsZero() {
		candles, err = h.service.Store().LoadRange(symbol, from, to)
	} else {
		candles, err = h.service.Store().Load(symbol, limit)
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load candles")
		http.Error(w, "Failed to load candles", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(candles)
}

// HandleSync handles POST /{symbol}/sync - fetch from the price source now.
// The period defaults to 10y and accepts any Yahoo range string.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "10y"
	}

	result, err := h.service.Sync(symbol, period)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to sync history")
		http.Error(w, "Failed to sync "+symbol+": "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleDelete handles DELETE /{symbol} - drop a symbol's history database
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !h.service.Store().Has(symbol) {
		http.Error(w, "No stored history for "+symbol, http.StatusNotFound)
		return
	}

	if err := h.service.Store().Delete(symbol); err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to delete history")
		http.Error(w, "Failed to delete history", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
