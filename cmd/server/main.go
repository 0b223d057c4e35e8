// Package main is the entry point for the DCA Lab server. It wires the
// run engine, history store, scheduler, and HTTP API, then blocks until
// shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/clients/yahoo"
	"github.com/aristath/dca-lab/internal/config"
	"github.com/aristath/dca-lab/internal/database"
	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/internal/modules/charts"
	"github.com/aristath/dca-lab/internal/modules/history"
	"github.com/aristath/dca-lab/internal/modules/runs"
	"github.com/aristath/dca-lab/internal/scheduler"
	"github.com/aristath/dca-lab/internal/server"
	"github.com/aristath/dca-lab/internal/services/export"
	"github.com/aristath/dca-lab/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting DCA Lab")

	bus := events.NewBus(log)

	// App database holds runs and their stored results
	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "app.db"),
		Name: "app",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open app database")
	}
	defer db.Close()

	// Per-symbol candle databases, fed from Yahoo Finance
	store, err := history.NewStore(cfg.HistoryDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history store")
	}
	historySvc := history.NewService(store, yahoo.New(log), bus, log)

	repo, err := runs.NewRepository(db.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runs repository")
	}
	runsSvc := runs.NewService(repo, historySvc, bus, log)
	chartsSvc := charts.NewService(log)

	// File backups are always on; S3 export only with a configured bucket
	exportSvc, err := export.NewService(context.Background(), export.Config{
		BackupDir: cfg.BackupDir,
		Keep:      cfg.BackupKeep,
		S3: export.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		},
	}, db, store, bus, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize export service")
	}

	// Completed runs push report and charts to the bucket. The handler
	// spawns a goroutine because bus handlers must not block.
	if exportSvc.ExportEnabled() {
		bus.Subscribe(events.RunCompleted, func(e *events.Event) {
			runID, _ := e.Data["run_id"].(string)
			if runID == "" {
				return
			}
			go exportRun(exportSvc, runsSvc, chartsSvc, runID, log)
		})
	}

	// Background jobs
	sched := scheduler.New(bus, log)
	if err := registerJobs(sched, cfg, historySvc, exportSvc, db, store, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		DB:        db,
		Bus:       bus,
		Scheduler: sched,
		DevMode:   cfg.DevMode,
		Runs:      runs.NewHandler(runsSvc, chartsSvc, log),
		History:   history.NewHandler(historySvc, log),
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// registerJobs schedules the recurring background work: nightly candle
// refresh for tracked symbols, daily backups, and weekly database
// maintenance.
func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	historySvc *history.Service,
	exportSvc *export.Service,
	db *database.DB,
	store *history.Store,
	log zerolog.Logger,
) error {
	refresh := scheduler.NewHistoryRefreshJob(historySvc, cfg.TrackedSymbols, "", log)
	if err := sched.AddJob(cfg.RefreshSchedule, refresh); err != nil {
		return err
	}

	if err := sched.AddJob(cfg.BackupSchedule, export.NewBackupJob(exportSvc)); err != nil {
		return err
	}

	maintenance := scheduler.NewMaintenanceJob(db, store, log)
	if err := sched.AddJob("0 0 4 * * SUN", maintenance); err != nil {
		return err
	}
	return nil
}

// exportRun renders a completed run's charts and uploads them with the
// full result. Chart failures degrade to a report-only export.
func exportRun(
	exportSvc *export.Service,
	runsSvc *runs.Service,
	chartsSvc *charts.Service,
	runID string,
	log zerolog.Logger,
) {
	result, err := runsSvc.Result(runID)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Cannot export run, result not loadable")
		return
	}

	equity, err := chartsSvc.EquityChart(result.Run.Name, result.Curve)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Equity chart render failed")
	}
	drawdown, err := chartsSvc.DrawdownChart(result.Run.Name, result.Curve)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Drawdown chart render failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := exportSvc.ExportRun(ctx, runID, result, equity, drawdown); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Run export failed")
	}
}
