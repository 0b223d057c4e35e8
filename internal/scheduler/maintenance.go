package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/database"
	"github.com/aristath/dca-lab/internal/modules/history"
)

// MaintenanceJob keeps the SQLite files healthy. It verifies the app
// database, truncates its WAL, and deletes corrupted history databases
// so the next sync rebuilds them.
type MaintenanceJob struct {
	appDB *database.DB
	store *history.Store
	log   zerolog.Logger
}

// NewMaintenanceJob creates a new database maintenance job
func NewMaintenanceJob(appDB *database.DB, store *history.Store, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		appDB: appDB,
		store: store,
		log:   log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes the maintenance pass
func (j *MaintenanceJob) Run() error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// App database corruption is critical, nothing can rebuild it.
	if err := j.appDB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("app database failed health check: %w", err)
	}

	if err := j.appDB.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	j.checkHistoryDatabases()

	j.log.Info().
		Dur("duration", time.Since(start)).
		Msg("Database maintenance completed")
	return nil
}

// checkHistoryDatabases deletes corrupted per-symbol databases. History
// is re-fetchable from the source, so deletion is the recovery path.
func (j *MaintenanceJob) checkHistoryDatabases() {
	symbols, err := j.store.Symbols()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to list history databases")
		return
	}

	corrupted := 0
	for _, symbol := range symbols {
		err := j.store.Verify(symbol)
		if err == nil {
			continue
		}

		corrupted++
		j.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("History database corrupted, deleting for rebuild")

		if err := j.store.Delete(symbol); err != nil {
			j.log.Error().
				Err(err).
				Str("symbol", symbol).
				Msg("Failed to delete corrupted database")
		}
	}

	if corrupted > 0 {
		j.log.Warn().
			Int("corrupted", corrupted).
			Msg("History database corruption detected and recovered")
	}
}
