package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/modules/history"
)

// HistoryRefreshJob tops up stored candles from the price source.
// Tracked symbols are refreshed explicitly; when none are configured the
// job refreshes whatever already has a history database. Symbols whose
// latest stored bar is already current are skipped.
type HistoryRefreshJob struct {
	service *history.Service
	symbols []string
	period  string
	log     zerolog.Logger
}

// NewHistoryRefreshJob creates a history refresh job. An empty period
// defaults to 3mo, enough to cover gaps after downtime without refetching
// full histories.
func NewHistoryRefreshJob(service *history.Service, symbols []string, period string, log zerolog.Logger) *HistoryRefreshJob {
	if period == "" {
		period = "3mo"
	}
	return &HistoryRefreshJob{
		service: service,
		symbols: symbols,
		period:  period,
		log:     log.With().Str("job", "history_refresh").Logger(),
	}
}

// Name returns the job name
func (j *HistoryRefreshJob) Name() string {
	return "history_refresh"
}

// Run refreshes every tracked symbol with stale history, collecting
// failures instead of stopping at the first one
func (j *HistoryRefreshJob) Run() error {
	symbols := j.symbols
	if len(symbols) == 0 {
		stored, err := j.service.Store().Symbols()
		if err != nil {
			return fmt.Errorf("failed to list stored symbols: %w", err)
		}
		symbols = stored
	}
	if len(symbols) == 0 {
		j.log.Info().Msg("No symbols to refresh")
		return nil
	}

	stale := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if j.stale(symbol) {
			stale = append(stale, symbol)
		}
	}
	if len(stale) == 0 {
		j.log.Info().Int("symbols", len(symbols)).Msg("All histories current, nothing to refresh")
		return nil
	}

	results, failures := j.service.SyncAll(stale, j.period)
	j.log.Info().
		Int("synced", len(results)).
		Int("failed", len(failures)).
		Int("skipped", len(symbols)-len(stale)).
		Str("period", j.period).
		Msg("History refresh finished")

	if len(failures) > 0 {
		return fmt.Errorf("history refresh failed for %d of %d symbols", len(failures), len(stale))
	}
	return nil
}

// stale reports whether a symbol needs a refresh: nothing stored yet, or
// the latest stored bar predates yesterday (UTC)
func (j *HistoryRefreshJob) stale(symbol string) bool {
	latest, err := j.service.Store().LatestDate(symbol)
	if err != nil || latest == nil {
		return true
	}
	now := time.Now().UTC()
	yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return latest.Before(yesterday)
}
