package history

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/events"
)

// PriceSource fetches daily candles for a symbol over a Yahoo period string
type PriceSource interface {
	HistoricalCandles(symbol, period string) ([]domain.Candle, error)
}

// SyncResult reports one symbol's sync outcome
type SyncResult struct {
	Symbol  string     `json:"symbol"`
	Fetched int        `json:"fetched"`
	Total   int        `json:"total"`
	Latest  *time.Time `json:"latest,omitempty"`
}

// Service syncs candles from a price source into the store and loads
// aligned series for the engine
type Service struct {
	store  *Store
	source PriceSource
	bus    *events.Bus
	log    zerolog.Logger
}

// NewService wires the history service
func NewService(store *Store, source PriceSource, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		source: source,
		bus:    bus,
		log:    log.With().Str("component", "history").Logger(),
	}
}

// Store exposes the underlying store
func (s *Service) Store() *Store {
	return s.store
}

// Sync fetches a symbol's history for the period and upserts it
func (s *Service) Sync(symbol, period string) (*SyncResult, error) {
	candles, err := s.source.HistoricalCandles(symbol, period)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}
	if err := s.store.Save(symbol, candles); err != nil {
		return nil, err
	}

	total, err := s.store.Count(symbol)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestDate(symbol)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Symbol: symbol, Fetched: len(candles), Total: total, Latest: latest}
	s.log.Info().
		Str("symbol", symbol).
		Str("period", period).
		Int("fetched", result.Fetched).
		Int("total", result.Total).
		Msg("history synced")

	if s.bus != nil {
		data := map[string]interface{}{
			"symbol":  symbol,
			"period":  period,
			"fetched": result.Fetched,
			"total":   result.Total,
		}
		if latest != nil {
			data["latest"] = latest.Format("2006-01-02")
		}
		s.bus.Emit(events.HistorySynced, "history", data)
	}
	return result, nil
}

// SyncAll syncs every symbol, collecting per-symbol failures instead of
// stopping at the first one
func (s *Service) SyncAll(symbols []string, period string) ([]SyncResult, map[string]error) {
	results := make([]SyncResult, 0, len(symbols))
	failures := make(map[string]error)

	for _, symbol := range symbols {
		res, err := s.Sync(symbol, period)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("sync failed")
			failures[symbol] = err
			continue
		}
		results = append(results, *res)
	}
	return results, failures
}

// Stored reports every symbol with a history database, with bar counts
// and latest dates
func (s *Service) Stored() ([]SyncResult, error) {
	symbols, err := s.store.Symbols()
	if err != nil {
		return nil, err
	}

	out := make([]SyncResult, 0, len(symbols))
	for _, symbol := range symbols {
		total, err := s.store.Count(symbol)
		if err != nil {
			return nil, err
		}
		latest, err := s.store.LatestDate(symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, SyncResult{Symbol: symbol, Total: total, Latest: latest})
	}
	return out, nil
}

// LoadSeries loads stored candles for each symbol, erroring on symbols with
// no usable history. A positive limit keeps only the most recent bars.
func (s *Service) LoadSeries(symbols []string, limit int) (map[string][]domain.Candle, error) {
	series := make(map[string][]domain.Candle, len(symbols))
	for _, symbol := range symbols {
		if !s.store.Has(symbol) {
			return nil, fmt.Errorf("no stored history for %s, sync it first", symbol)
		}
		candles, err := s.store.Load(symbol, limit)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("no stored history for %s, sync it first", symbol)
		}
		series[symbol] = candles
	}
	return series, nil
}
