package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-lab/internal/database"
	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/pkg/logger"
	"github.com/aristath/dca-lab/internal/modules/charts"
	"github.com/aristath/dca-lab/internal/modules/history"
	"github.com/aristath/dca-lab/internal/modules/runs"
)

type stubSource struct {
	candles map[string][]domain.Candle
}

func (s *stubSource) HistoricalCandles(symbol, period string) ([]domain.Candle, error) {
	candles, ok := s.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return candles, nil
}

func seedCandles(bars int) []domain.Candle {
	base := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, bars)
	for i := range candles {
		price := 50 + float64(i)
		candles[i] = domain.Candle{
			Date:     base.AddDate(0, 0, i),
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
			AdjClose: price,
		}
	}
	return candles
}

func testServer(t *testing.T) *Server {
	t.Helper()

	log := logger.New(logger.Config{Level: "error"})
	bus := events.NewBus(log)

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "app.db"),
		Name: "app",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := history.NewStore(t.TempDir(), log)
	require.NoError(t, err)

	source := &stubSource{candles: map[string][]domain.Candle{
		"QQQ":  seedCandles(15),
		"NVDA": seedCandles(15),
	}}
	historySvc := history.NewService(store, source, bus, log)
	require.NoError(t, store.Save("QQQ", source.candles["QQQ"]))
	require.NoError(t, store.Save("NVDA", source.candles["NVDA"]))

	repo, err := runs.NewRepository(db.Conn(), log)
	require.NoError(t, err)
	runsSvc := runs.NewService(repo, historySvc, bus, log)

	return New(Config{
		Port:    0,
		Log:     log,
		DB:      db,
		Bus:     bus,
		Runs:    runs.NewHandler(runsSvc, charts.NewService(log), log),
		History: history.NewHandler(historySvc, log),
	})
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSystemStatusEndpoint(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, "GET", "/api/system/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "running", body["status"])
	assert.NotNil(t, body["memory"])

	dbStatus, ok := body["database"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, dbStatus["healthy"])
}

func TestSubmitRunOverHTTP(t *testing.T) {
	s := testServer(t)

	reqBody, err := json.Marshal(runs.Request{
		Name:     "http test",
		Strategy: runs.StrategyFixedDCA,
		Portfolio: []domain.PortfolioAsset{
			{Symbol: "QQQ", Weight: 0.6},
			{Symbol: "NVDA", Weight: 0.4},
		},
		StartCash: 10000,
		Amount:    500,
		Interval:  5,
	})
	require.NoError(t, err)

	w := doRequest(s, "POST", "/api/runs", reqBody)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var run runs.Run
	require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
	require.NotEmpty(t, run.ID)

	// the run executes in the background; poll until it finishes
	deadline := time.Now().Add(5 * time.Second)
	for {
		w = doRequest(s, "GET", "/api/runs/"+run.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result runs.Result
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		if result.Run.Status == runs.StatusCompleted {
			require.NotNil(t, result.Summary)
			assert.NotEmpty(t, result.Orders)
			break
		}
		require.NotEqual(t, runs.StatusFailed, result.Run.Status, result.Run.Error)
		if time.Now().After(deadline) {
			t.Fatalf("run did not complete, status %s", result.Run.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = doRequest(s, "GET", "/api/runs/"+run.ID+"/equity.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = doRequest(s, "GET", "/api/runs/"+run.ID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Final Portfolio Value:")
}

func TestSubmitRunRejectsBadRequests(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, "POST", "/api/runs", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	reqBody, err := json.Marshal(runs.Request{
		Strategy:  "martingale",
		Portfolio: []domain.PortfolioAsset{{Symbol: "QQQ", Weight: 1}},
		StartCash: 1000,
		Amount:    100,
		Interval:  5,
	})
	require.NoError(t, err)

	w = doRequest(s, "POST", "/api/runs", reqBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunNotFoundOverHTTP(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, "GET", "/api/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, "DELETE", "/api/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, "GET", "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stored []history.SyncResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stored))
	require.Len(t, stored, 2)

	w = doRequest(s, "GET", "/api/history/QQQ?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var candles []domain.Candle
	require.NoError(t, json.NewDecoder(w.Body).Decode(&candles))
	assert.Len(t, candles, 5)

	w = doRequest(s, "GET", "/api/history/ZZZ", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, "POST", "/api/history/NVDA/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res history.SyncResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, "NVDA", res.Symbol)
	assert.Equal(t, 15, res.Fetched)
}
