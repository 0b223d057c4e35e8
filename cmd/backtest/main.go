// Package main is the DCA Lab backtest CLI. It syncs candle history when
// needed, executes one strategy synchronously, prints the text report, and
// writes the run artifacts (report JSON, equity and drawdown PNGs).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/clients/yahoo"
	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/engine"
	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/internal/modules/charts"
	"github.com/aristath/dca-lab/internal/modules/history"
	"github.com/aristath/dca-lab/internal/modules/runs"
	"github.com/aristath/dca-lab/pkg/logger"
)

type preset struct {
	Assets    []domain.PortfolioAsset
	Frequency domain.Frequency
}

var growthAssets = []domain.PortfolioAsset{
	{Symbol: "QQQ", Weight: 0.25},
	{Symbol: "NVDA", Weight: 0.20},
	{Symbol: "MSFT", Weight: 0.20},
	{Symbol: "AAPL", Weight: 0.20},
	{Symbol: "GOOGL", Weight: 0.15},
}

// presets are ready-made portfolios for quick experiments. The weekly
// variant runs the same assets on weekly bars, which also selects the
// weekly signal thresholds.
var presets = map[string]preset{
	"growth":        {Assets: growthAssets, Frequency: domain.FrequencyDaily},
	"growth-weekly": {Assets: growthAssets, Frequency: domain.FrequencyWeekly},
}

func main() {
	var (
		symbolsFlag = flag.String("symbols", "", "portfolio as SYMBOL:WEIGHT pairs, e.g. QQQ:0.6,NVDA:0.4")
		presetFlag  = flag.String("preset", "", "portfolio preset: growth, growth-weekly")
		strategy    = flag.String("strategy", runs.StrategyDCA, "strategy: dca, fixed-dca, random, sma-cross")
		policy      = flag.String("policy", "", "dca policy: fixed, linear-momentum, linear-value, guarded, adaptive (default adaptive)")
		frequency   = flag.String("frequency", "daily", "bar frequency: daily or weekly")
		startCash   = flag.Float64("cash", 500000, "starting cash")
		amount      = flag.Float64("amount", 1000, "baseline amount invested per scheduled round")
		interval    = flag.Int("interval", 0, "bars between investment rounds (default 10 daily, 2 weekly)")
		deposit     = flag.Float64("deposit", 0, "external deposit credited each round")
		commission  = flag.Float64("commission", engine.DefaultCommission, "percent commission on notional")
		seed        = flag.Int64("seed", 1, "RNG seed for the random strategy")
		probability = flag.Float64("probability", 1.0, "per-round buy probability for the random strategy")
		bars        = flag.Int("bars", 0, "limit history to the most recent N bars (0 = all)")
		period      = flag.String("period", "10y", "Yahoo period for history sync: 1y, 5y, 10y, max, ...")
		sync        = flag.Bool("sync", false, "re-sync history from Yahoo even when stored")
		historyDir  = flag.String("history", "./data/history", "directory for per-symbol candle databases")
		outDir      = flag.String("out", "./data/runs", "directory for run artifacts, empty to skip writing")
		logLevel    = flag.String("log", "warn", "log level: debug, info, warn, error")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true})

	portfolio, presetFreq, err := resolvePortfolio(*presetFlag, *symbolsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		flag.Usage()
		os.Exit(2)
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	// A preset's frequency applies unless -frequency was passed
	freq := domain.Frequency(*frequency)
	if presetFreq != "" && !explicit["frequency"] {
		freq = presetFreq
	}
	if *interval == 0 {
		*interval = 10
		if freq == domain.FrequencyWeekly {
			*interval = 2
		}
	}

	req := runs.Request{
		Strategy:      *strategy,
		Policy:        *policy,
		Portfolio:     portfolio,
		StartCash:     *startCash,
		Amount:        *amount,
		Interval:      *interval,
		DepositAmount: *deposit,
		Commission:    commission,
		Frequency:     freq,
		Bars:          *bars,
		Seed:          *seed,
		Probability:   *probability,
	}
	if err := req.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid run configuration")
	}

	bus := events.NewBus(log)
	store, err := history.NewStore(*historyDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history store")
	}
	historySvc := history.NewService(store, yahoo.New(log), bus, log)

	// Fetch anything missing before the run; -sync refreshes everything
	for _, symbol := range req.Symbols() {
		if !*sync && store.Has(symbol) {
			continue
		}
		fmt.Printf("Syncing %s (%s)...\n", symbol, *period)
		if _, err := historySvc.Sync(symbol, *period); err != nil {
			log.Fatal().Err(err).Str("symbol", symbol).Msg("History sync failed")
		}
	}

	series, err := historySvc.LoadSeries(req.Symbols(), req.Bars)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load candle series")
	}

	strat, err := runs.BuildStrategy(req, bus, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build strategy")
	}

	eng, err := engine.New(engine.RunConfig{
		StartCash:  req.StartCash,
		Commission: *commission,
		Frequency:  req.Frequency,
		RiskFree:   req.RiskFree,
	}, bus, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid engine configuration")
	}

	result, err := eng.Run(context.Background(), series, strat)
	if err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}

	fmt.Println(result.Report())

	if *outDir != "" {
		dir, err := writeArtifacts(*outDir, result, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to write run artifacts")
		}
		fmt.Printf("Artifacts written to %s\n", dir)
	}
}

// resolvePortfolio builds the asset list from a preset name or a
// SYMBOL:WEIGHT flag value. Presets also carry a frequency; manual
// portfolios return an empty one.
func resolvePortfolio(presetName, symbols string) ([]domain.PortfolioAsset, domain.Frequency, error) {
	if presetName != "" && symbols != "" {
		return nil, "", fmt.Errorf("-preset and -symbols are mutually exclusive")
	}

	if presetName != "" {
		p, ok := presets[presetName]
		if !ok {
			return nil, "", fmt.Errorf("unknown preset %q", presetName)
		}
		return p.Assets, p.Frequency, nil
	}

	if symbols == "" {
		return nil, "", fmt.Errorf("a portfolio is required: pass -symbols or -preset")
	}

	var assets []domain.PortfolioAsset
	for _, pair := range strings.Split(symbols, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, weightStr, found := strings.Cut(pair, ":")
		if !found {
			return nil, "", fmt.Errorf("malformed portfolio entry %q, want SYMBOL:WEIGHT", pair)
		}
		weight, err := strconv.ParseFloat(weightStr, 64)
		if err != nil {
			return nil, "", fmt.Errorf("malformed weight in %q: %w", pair, err)
		}
		assets = append(assets, domain.PortfolioAsset{
			Symbol: yahoo.Normalize(sym),
			Weight: weight,
		})
	}
	return assets, "", nil
}

// writeArtifacts saves the full result JSON and both chart PNGs under a
// timestamped directory. Chart failures are logged, not fatal.
func writeArtifacts(outDir string, result *engine.RunResult, log zerolog.Logger) (string, error) {
	name := result.FinishedAt.UTC().Format("2006-01-02_150405") + "_" + result.Strategy
	dir := filepath.Join(outDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), raw, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	chartsSvc := charts.NewService(log)
	if png, err := chartsSvc.EquityChart(result.Strategy, result.EquityCurve); err != nil {
		log.Warn().Err(err).Msg("Equity chart render failed")
	} else if err := os.WriteFile(filepath.Join(dir, "equity.png"), png, 0644); err != nil {
		return "", fmt.Errorf("failed to write equity chart: %w", err)
	}

	if png, err := chartsSvc.DrawdownChart(result.Strategy, result.EquityCurve); err != nil {
		log.Warn().Err(err).Msg("Drawdown chart render failed")
	} else if err := os.WriteFile(filepath.Join(dir, "drawdown.png"), png, 0644); err != nil {
		return "", fmt.Errorf("failed to write drawdown chart: %w", err)
	}

	return dir, nil
}
