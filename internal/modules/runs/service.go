package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/engine"
	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/internal/modules/history"
)

// SeriesLoader loads stored candle series for the engine
type SeriesLoader interface {
	LoadSeries(symbols []string, limit int) (map[string][]domain.Candle, error)
}

var _ SeriesLoader = (*history.Service)(nil)

// Service executes backtest requests against stored history and persists
// the outcome
type Service struct {
	repo    *Repository
	history SeriesLoader
	bus     *events.Bus
	log     zerolog.Logger
}

// NewService wires the runs service
func NewService(repo *Repository, history SeriesLoader, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		history: history,
		bus:     bus,
		log:     log.With().Str("component", "runs").Logger(),
	}
}

// Execute runs a request synchronously and returns the full result.
// Failed runs stay in the table with their error message.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	run, err := s.create(&req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, *run, req)
}

// Submit stores a pending run and executes it in the background,
// returning immediately with the run row. Progress and completion are
// observable through the event bus and the runs table.
func (s *Service) Submit(req Request) (*Run, error) {
	run, err := s.create(&req)
	if err != nil {
		return nil, err
	}
	go func() {
		if _, err := s.run(context.Background(), *run, req); err != nil {
			s.log.Error().Err(err).Str("run_id", run.ID).Msg("background run failed")
		}
	}()
	return run, nil
}

// Rerun submits a stored run's request again as a new background run.
// Identical requests against identical history produce identical order logs.
func (s *Service) Rerun(id string) (*Run, error) {
	req, err := s.repo.GetRequest(id)
	if err != nil {
		return nil, err
	}
	return s.Submit(*req)
}

// create validates the request and inserts the pending row
func (s *Service) create(req *Request) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run := Run{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Strategy:  req.Strategy,
		Frequency: req.Frequency,
		Status:    StatusPending,
		StartCash: req.StartCash,
		CreatedAt: time.Now().UTC(),
	}
	if run.Name == "" {
		run.Name = run.Strategy + " " + run.CreatedAt.Format("2006-01-02 15:04")
	}

	if err := s.repo.Create(run, *req); err != nil {
		return nil, err
	}
	return &run, nil
}

// run drives the full lifecycle: running -> completed or failed, with
// events on every transition
func (s *Service) run(ctx context.Context, run Run, req Request) (*Result, error) {
	result, err := s.execute(ctx, &run, req)
	if err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(run.ID, err, now); markErr != nil {
			s.log.Error().Err(markErr).Str("run_id", run.ID).Msg("failed to record run failure")
		}
		if s.bus != nil {
			s.bus.Emit(events.RunFailed, "runs", map[string]interface{}{
				"run_id":   run.ID,
				"strategy": run.Strategy,
				"error":    err.Error(),
			})
		}
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return result, nil
}

func (s *Service) execute(ctx context.Context, run *Run, req Request) (*Result, error) {
	startedAt := time.Now().UTC()
	if err := s.repo.MarkRunning(run.ID, startedAt); err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.Emit(events.RunStarted, "runs", map[string]interface{}{
			"run_id":    run.ID,
			"name":      run.Name,
			"strategy":  run.Strategy,
			"frequency": string(run.Frequency),
		})
	}

	series, err := s.history.LoadSeries(req.Symbols(), req.Bars)
	if err != nil {
		return nil, err
	}

	strat, err := BuildStrategy(req, s.bus, s.log)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.RunConfig{
		StartCash:  req.StartCash,
		Commission: req.commission(),
		Frequency:  req.Frequency,
		RiskFree:   req.RiskFree,
	}, s.bus, s.log)
	if err != nil {
		return nil, err
	}

	runResult, err := eng.Run(ctx, series, strat)
	if err != nil {
		return nil, err
	}

	finishedAt := time.Now().UTC()
	if err := s.repo.SaveResult(run.ID, runResult.FinalValue, runResult.Bars,
		runResult.Summary, runResult.EquityCurve, runResult.Orders,
		runResult.Cashflows, finishedAt); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Emit(events.RunCompleted, "runs", map[string]interface{}{
			"run_id":      run.ID,
			"strategy":    runResult.Strategy,
			"final_value": runResult.FinalValue,
			"bars":        runResult.Bars,
			"orders":      len(runResult.Orders),
		})
	}
	s.log.Info().
		Str("run_id", run.ID).
		Str("strategy", runResult.Strategy).
		Float64("final_value", runResult.FinalValue).
		Int("orders", len(runResult.Orders)).
		Msg("run completed")

	run.Status = StatusCompleted
	run.FinalValue = &runResult.FinalValue
	run.Bars = &runResult.Bars
	run.StartedAt = &startedAt
	run.FinishedAt = &finishedAt

	return &Result{
		Run:       *run,
		Request:   req,
		Summary:   runResult.Summary,
		Curve:     runResult.EquityCurve,
		Orders:    runResult.Orders,
		Cashflows: runResult.Cashflows,
	}, nil
}

// Get returns a run row without its stored series
func (s *Service) Get(id string) (*Run, error) {
	return s.repo.Get(id)
}

// Result returns a run with its stored series and summary
func (s *Service) Result(id string) (*Result, error) {
	return s.repo.GetResult(id)
}

// List returns runs newest first
func (s *Service) List(limit int) ([]Run, error) {
	return s.repo.List(limit)
}

// Delete removes a stored run
func (s *Service) Delete(id string) error {
	return s.repo.Delete(id)
}

// BuildStrategy constructs the strategy named by the request
func BuildStrategy(req Request, bus *events.Bus, log zerolog.Logger) (engine.Strategy, error) {
	portfolio, err := domain.NewPortfolio(req.Portfolio)
	if err != nil {
		return nil, err
	}

	switch req.Strategy {
	case StrategyDCA:
		return engine.NewDCA(engine.DCAConfig{
			Portfolio:     *portfolio,
			Baseline:      req.Amount,
			Interval:      req.Interval,
			DepositAmount: req.DepositAmount,
			Reserve:       req.Reserve,
			Policy:        req.Policy,
			Params:        req.params(),
			Signals:       req.signalConfig(),
		}, bus, log)

	case StrategyFixedDCA:
		return engine.NewFixedDCA(engine.FixedDCAConfig{
			Portfolio:     *portfolio,
			Amount:        req.Amount,
			Interval:      req.Interval,
			DepositAmount: req.DepositAmount,
			Reserve:       req.Reserve,
		}, bus, log)

	case StrategyRandom:
		return engine.NewRandom(engine.RandomConfig{
			Portfolio:   *portfolio,
			Baseline:    req.Amount,
			Interval:    req.Interval,
			Probability: req.Probability,
			Seed:        req.Seed,
		}, log)

	case StrategySMACross:
		return engine.NewSMACross(engine.SMACrossConfig{
			Portfolio:    *portfolio,
			InvestAmount: req.Amount,
			Reserve:      req.Reserve,
		}, log)

	default:
		return nil, domain.NewConfigError("strategy", "unknown strategy "+req.Strategy)
	}
}
