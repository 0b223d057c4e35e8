// Package history persists per-symbol daily candles in SQLite, one
// database file per symbol, and syncs them from a price source.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
)

const dailySchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	date        TEXT PRIMARY KEY,
	open_price  REAL NOT NULL,
	high_price  REAL NOT NULL,
	low_price   REAL NOT NULL,
	close_price REAL NOT NULL,
	adj_close   REAL NOT NULL,
	volume      INTEGER
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
`

// Store reads and writes per-symbol history databases under one directory.
// Symbol FOO is stored at <dir>/FOO.db with dots mapped to underscores.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates the history directory if needed
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, domain.NewConfigError("history_dir", "must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Store{
		dir: dir,
		log: log.With().Str("component", "history_store").Logger(),
	}, nil
}

// Dir returns the directory holding the per-symbol databases
func (s *Store) Dir() string {
	return s.dir
}

// dbPath maps a symbol to its database file
func (s *Store) dbPath(symbol string) string {
	name := strings.ReplaceAll(strings.ToUpper(symbol), ".", "_")
	return filepath.Join(s.dir, name+".db")
}

// Has reports whether a history database exists for the symbol.
// It never creates one.
func (s *Store) Has(symbol string) bool {
	_, err := os.Stat(s.dbPath(symbol))
	return err == nil
}

func (s *Store) open(symbol string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", s.dbPath(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to open history database for %s: %w", symbol, err)
	}
	if _, err := db.Exec(dailySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema for %s: %w", symbol, err)
	}
	return db, nil
}

// Save upserts candles for a symbol in one transaction
func (s *Store) Save(symbol string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	db, err := s.open(symbol)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
		(date, open_price, high_price, low_price, close_price, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		var volume interface{}
		if c.Volume != nil {
			volume = *c.Volume
		}
		if _, err := stmt.Exec(
			c.Date.Format("2006-01-02"),
			c.Open, c.High, c.Low, c.Close, c.AdjClose,
			volume,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert candle for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candles for %s: %w", symbol, err)
	}

	s.log.Debug().
		Str("symbol", symbol).
		Int("count", len(candles)).
		Msg("candles saved")
	return nil
}

// Load returns candles in ascending date order. A positive limit keeps only
// the most recent bars.
func (s *Store) Load(symbol string, limit int) ([]domain.Candle, error) {
	db, err := s.open(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `
		SELECT date, open_price, high_price, low_price, close_price, adj_close, volume
		FROM daily_prices
		ORDER BY date ASC
	`
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows, symbol)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// LoadRange returns candles with dates inside [from, to], ascending.
// A zero from or to leaves that side unbounded.
func (s *Store) LoadRange(symbol string, from, to time.Time) ([]domain.Candle, error) {
	db, err := s.open(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `
		SELECT date, open_price, high_price, low_price, close_price, adj_close, volume
		FROM daily_prices
		WHERE 1=1
	`
	var args []interface{}
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, from.UTC().Format("2006-01-02"))
	}
	if !to.IsZero() {
		query += " AND date <= ?"
		args = append(args, to.UTC().Format("2006-01-02"))
	}
	query += " ORDER BY date ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows, symbol)
}

func scanCandles(rows *sql.Rows, symbol string) ([]domain.Candle, error) {
	var candles []domain.Candle
	for rows.Next() {
		var (
			dateStr string
			c       domain.Candle
			volume  sql.NullInt64
		)
		if err := rows.Scan(&dateStr, &c.Open, &c.High, &c.Low, &c.Close, &c.AdjClose, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad date %q for %s: %w", dateStr, symbol, err)
		}
		c.Date = date
		if volume.Valid {
			v := volume.Int64
			c.Volume = &v
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return candles, nil
}

// LatestDate returns the most recent stored bar date, or nil when the
// symbol has no history yet
func (s *Store) LatestDate(symbol string) (*time.Time, error) {
	db, err := s.open(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var dateStr sql.NullString
	if err := db.QueryRow(`SELECT MAX(date) FROM daily_prices`).Scan(&dateStr); err != nil {
		return nil, fmt.Errorf("failed to query latest date for %s: %w", symbol, err)
	}
	if !dateStr.Valid || dateStr.String == "" {
		return nil, nil
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("bad latest date %q for %s: %w", dateStr.String, symbol, err)
	}
	return &date, nil
}

// Count returns the stored bar count for a symbol
func (s *Store) Count(symbol string) (int, error) {
	db, err := s.open(symbol)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM daily_prices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count daily prices for %s: %w", symbol, err)
	}
	return n, nil
}

// Symbols lists the symbols with a history database on disk
func (s *Store) Symbols() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".db") {
			continue
		}
		symbol := strings.ReplaceAll(strings.TrimSuffix(name, ".db"), "_", ".")
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Delete removes a symbol's history database
func (s *Store) Delete(symbol string) error {
	err := os.Remove(s.dbPath(symbol))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history for %s: %w", symbol, err)
	}
	return nil
}

// BackupTo writes an atomic copy of a symbol's database to destPath.
// VACUUM INTO produces a compacted file with no WAL sidecar.
func (s *Store) BackupTo(symbol, destPath string) error {
	db, err := s.open(symbol)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("failed to back up history for %s: %w", symbol, err)
	}
	return nil
}

// Verify runs SQLite's integrity check against a symbol's database
// without touching its schema.
func (s *Store) Verify(symbol string) error {
	db, err := sql.Open("sqlite3", s.dbPath(symbol))
	if err != nil {
		return fmt.Errorf("failed to open history database for %s: %w", symbol, err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", symbol, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check for %s returned: %s", symbol, result)
	}
	return nil
}
