// Package yahoo fetches quotes and daily history from Yahoo Finance.
package yahoo

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/dca-lab/internal/domain"
)

// validPeriods are the history ranges Yahoo accepts
var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// Client wraps the go-yfinance ticker and batch APIs
type Client struct {
	log zerolog.Logger
}

// New creates a Yahoo Finance client
func New(log zerolog.Logger) *Client {
	return &Client{
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// Normalize uppercases and trims a ticker symbol
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// HistoricalCandles fetches daily OHLCV bars for one symbol over a Yahoo
// period string (1mo, 1y, 5y, max, ...). Dates are normalized to UTC
// midnight so bars from different symbols align by calendar day.
func (c *Client) HistoricalCandles(symbol, period string) ([]domain.Candle, error) {
	symbol = Normalize(symbol)
	if !validPeriods[period] {
		return nil, fmt.Errorf("invalid history period %q", period)
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker for %s: %w", symbol, err)
	}
	defer t.Close()

	bars, err := t.History(models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, bar := range bars {
		// Yahoo occasionally pads ranges with empty bars
		if bar.Close == 0 && bar.Open == 0 && bar.High == 0 && bar.Low == 0 {
			continue
		}
		adjClose := bar.AdjClose
		if adjClose == 0 {
			adjClose = bar.Close
		}
		volume := int64(bar.Volume)
		candles = append(candles, domain.Candle{
			Date:     midnightUTC(bar.Date),
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: adjClose,
			Volume:   &volume,
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("period", period).
		Int("count", len(candles)).
		Msg("fetched historical candles")
	return candles, nil
}

// CurrentPrice gets the latest price for a symbol with exponential-backoff
// retries. A nil price always comes with a non-nil error.
func (c *Client) CurrentPrice(symbol string, maxRetries int) (*float64, error) {
	symbol = Normalize(symbol)
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		price, err := c.quotePrice(symbol)
		if err == nil && price != nil && *price > 0 {
			return price, nil
		}
		if err != nil {
			lastErr = err
		}

		if attempt < maxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().Err(err).
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", waitTime).
				Msg("failed to get price, retrying")
			time.Sleep(waitTime)
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
	}
	return nil, fmt.Errorf("no valid price for %s after %d attempts", symbol, maxRetries)
}

func (c *Client) quotePrice(symbol string) (*float64, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err == nil && quote != nil {
		if quote.RegularMarketPrice > 0 {
			price := quote.RegularMarketPrice
			return &price, nil
		}
		if quote.PostMarketPrice > 0 {
			price := quote.PostMarketPrice
			return &price, nil
		}
	}

	info, err := t.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to get quote info: %w", err)
	}
	if info != nil {
		if info.CurrentPrice > 0 {
			price := info.CurrentPrice
			return &price, nil
		}
		if info.RegularMarketPreviousClose > 0 {
			price := info.RegularMarketPreviousClose
			return &price, nil
		}
	}
	return nil, nil
}

// BatchQuotes fetches last closes for several symbols in one download.
// Symbols that fail resolve to a missing map entry, not an error.
func (c *Client) BatchQuotes(symbols []string) (map[string]*float64, error) {
	if len(symbols) == 0 {
		return map[string]*float64{}, nil
	}

	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = Normalize(s)
	}

	params := models.DefaultDownloadParams()
	params.Symbols = normalized
	params.Period = "5d"
	params.Interval = "1d"

	result, err := multi.Download(normalized, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download batch quotes: %w", err)
	}

	quotes := make(map[string]*float64, len(normalized))
	for _, sym := range normalized {
		if bars, ok := result.Data[sym]; ok && len(bars) > 0 {
			price := bars[len(bars)-1].Close
			quotes[sym] = &price
		} else if ferr, ok := result.Errors[sym]; ok {
			c.log.Warn().Err(ferr).Str("symbol", sym).Msg("failed to get quote for symbol")
		}
	}
	return quotes, nil
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
