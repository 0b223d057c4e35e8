// Package export backs up the application databases to disk and optionally
// pushes run artifacts to an S3-compatible bucket.
package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/database"
	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/internal/modules/history"
)

const defaultKeep = 14

// Config holds backup and export settings
type Config struct {
	BackupDir string
	Keep      int // timestamped backup sets to retain, default 14
	S3        S3Config
}

// Service copies the app database and every history database into
// timestamped backup sets, verifies them, and rotates old sets. When a
// bucket is configured it also exports run artifacts.
type Service struct {
	cfg      Config
	appDB    *database.DB
	store    *history.Store
	bus      *events.Bus
	uploader *Uploader // nil when no bucket is configured
	log      zerolog.Logger
}

// NewService wires the export service. S3 setup failures disable exports
// rather than failing startup.
func NewService(ctx context.Context, cfg Config, appDB *database.DB, store *history.Store, bus *events.Bus, log zerolog.Logger) (*Service, error) {
	if cfg.BackupDir == "" {
		return nil, fmt.Errorf("backup directory not configured")
	}
	if cfg.Keep <= 0 {
		cfg.Keep = defaultKeep
	}

	s := &Service{
		cfg:   cfg,
		appDB: appDB,
		store: store,
		bus:   bus,
		log:   log.With().Str("service", "export").Logger(),
	}

	if cfg.S3.Bucket != "" {
		uploader, err := NewUploader(ctx, cfg.S3, log)
		if err != nil {
			s.log.Warn().Err(err).Msg("S3 export disabled")
		} else {
			s.uploader = uploader
			s.log.Info().Str("bucket", cfg.S3.Bucket).Msg("S3 export enabled")
		}
	}

	return s, nil
}

// ExportEnabled reports whether S3 export is configured
func (s *Service) ExportEnabled() bool {
	return s.uploader != nil
}

// Backup writes one timestamped backup set: the app database plus every
// history database, each verified after the copy. Old sets beyond the
// retention count are removed.
func (s *Service) Backup() error {
	start := time.Now()
	setDir := filepath.Join(s.cfg.BackupDir, start.UTC().Format("2006-01-02_150405"))
	if err := os.MkdirAll(setDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	copied := 0

	appPath := filepath.Join(setDir, s.appDB.Name()+".db")
	if err := s.backupAppDB(appPath); err != nil {
		return err
	}
	copied++

	symbols, err := s.store.Symbols()
	if err != nil {
		return fmt.Errorf("failed to list history databases: %w", err)
	}
	for _, symbol := range symbols {
		destPath := filepath.Join(setDir, "history_"+symbol+".db")
		if err := s.backupHistoryDB(symbol, destPath); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("History backup failed")
			continue
		}
		copied++
	}

	if err := s.rotate(); err != nil {
		s.log.Error().Err(err).Msg("Backup rotation failed")
	}

	duration := time.Since(start)
	s.log.Info().
		Str("dir", setDir).
		Int("databases", copied).
		Dur("duration_ms", duration).
		Msg("Backup completed")

	if s.bus != nil {
		s.bus.Emit(events.BackupCompleted, "export", map[string]interface{}{
			"dir":         setDir,
			"databases":   copied,
			"duration_ms": duration.Milliseconds(),
		})
	}
	return nil
}

func (s *Service) backupAppDB(destPath string) error {
	if _, err := s.appDB.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("failed to back up app database: %w", err)
	}
	if err := verifyBackup(destPath); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("app database backup verification failed: %w", err)
	}
	return nil
}

func (s *Service) backupHistoryDB(symbol, destPath string) error {
	if err := s.store.BackupTo(symbol, destPath); err != nil {
		return err
	}
	if err := verifyBackup(destPath); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("verification failed for %s: %w", symbol, err)
	}
	return nil
}

// verifyBackup opens the copy and runs an integrity check
func verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// rotate removes the oldest backup sets beyond the retention count.
// Set directories sort chronologically by name.
func (s *Service) rotate() error {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	var sets []string
	for _, entry := range entries {
		if entry.IsDir() {
			sets = append(sets, entry.Name())
		}
	}
	if len(sets) <= s.cfg.Keep {
		return nil
	}

	sort.Strings(sets)
	for _, name := range sets[:len(sets)-s.cfg.Keep] {
		path := filepath.Join(s.cfg.BackupDir, name)
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old backup set")
			continue
		}
		s.log.Debug().Str("path", path).Msg("Deleted old backup set")
	}
	return nil
}

// ExportRun uploads a run's report JSON and chart PNGs. A nil PNG skips
// that chart. No-op when S3 export is not configured.
func (s *Service) ExportRun(ctx context.Context, runID string, report interface{}, equityPNG, drawdownPNG []byte) error {
	if s.uploader == nil {
		s.log.Debug().Str("run_id", runID).Msg("S3 export not configured, skipping")
		return nil
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	base := path.Join("runs", runID)
	uploads := []struct {
		key         string
		body        []byte
		contentType string
	}{
		{base + "/report.json", reportJSON, "application/json"},
		{base + "/equity.png", equityPNG, "image/png"},
		{base + "/drawdown.png", drawdownPNG, "image/png"},
	}

	uploaded := 0
	for _, u := range uploads {
		if len(u.body) == 0 {
			continue
		}
		if err := s.uploader.Upload(ctx, u.key, bytes.NewReader(u.body), u.contentType); err != nil {
			return err
		}
		uploaded++
	}

	s.log.Info().Str("run_id", runID).Int("objects", uploaded).Msg("Run exported")
	if s.bus != nil {
		s.bus.Emit(events.ExportCompleted, "export", map[string]interface{}{
			"run_id":  runID,
			"objects": uploaded,
		})
	}
	return nil
}

// BackupJob wraps Service.Backup for the scheduler
type BackupJob struct {
	service *Service
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *Service) *BackupJob {
	return &BackupJob{service: service}
}

// Run executes the backup
func (j *BackupJob) Run() error {
	return j.service.Backup()
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "daily_backup"
}
