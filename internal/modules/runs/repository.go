package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/dca-lab/internal/database"
	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/modules/analytics"
)

// ErrNotFound is returned when a run id does not exist
var ErrNotFound = errors.New("run not found")

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	frequency   TEXT NOT NULL,
	status      TEXT NOT NULL,
	request     TEXT NOT NULL,
	start_cash  REAL NOT NULL,
	final_value REAL,
	bars        INTEGER,
	error       TEXT NOT NULL DEFAULT '',
	summary     TEXT,
	curve       BLOB,
	orders      BLOB,
	cashflows   BLOB,
	created_at  TEXT NOT NULL,
	started_at  TEXT,
	finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Repository stores runs in the app database. Equity curves, orders, and
// cashflows are msgpack blobs; the request and summary are JSON for
// inspectability.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates the repository and ensures the schema exists
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(runsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure runs schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}, nil
}

// Create inserts a pending run with its request
func (r *Repository) Create(run Run, req Request) error {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO runs (id, name, strategy, frequency, status, request, start_cash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Name, run.Strategy, string(run.Frequency), string(run.Status),
		string(reqJSON), run.StartCash, run.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	r.log.Debug().Str("run_id", run.ID).Str("strategy", run.Strategy).Msg("run created")
	return nil
}

// MarkRunning flips a run to the running state
func (r *Repository) MarkRunning(id string, startedAt time.Time) error {
	res, err := r.db.Exec(`UPDATE runs SET status = ?, started_at = ? WHERE id = ?`,
		string(StatusRunning), startedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	return checkAffected(res)
}

// MarkFailed records a failure message and finishes the run
func (r *Repository) MarkFailed(id string, runErr error, finishedAt time.Time) error {
	res, err := r.db.Exec(`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(StatusFailed), runErr.Error(), finishedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return checkAffected(res)
}

// SaveResult stores the outcome of a completed run in one transaction
func (r *Repository) SaveResult(id string, finalValue float64, bars int,
	summary *analytics.Summary, curve []domain.EquityPoint,
	orders []domain.Order, cashflows []domain.CashFlow, finishedAt time.Time) error {

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	curveBlob, err := msgpack.Marshal(curve)
	if err != nil {
		return fmt.Errorf("failed to marshal equity curve: %w", err)
	}
	ordersBlob, err := msgpack.Marshal(orders)
	if err != nil {
		return fmt.Errorf("failed to marshal orders: %w", err)
	}
	flowsBlob, err := msgpack.Marshal(cashflows)
	if err != nil {
		return fmt.Errorf("failed to marshal cashflows: %w", err)
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE runs
			SET status = ?, final_value = ?, bars = ?, summary = ?,
			    curve = ?, orders = ?, cashflows = ?, finished_at = ?
			WHERE id = ?
		`,
			string(StatusCompleted), finalValue, bars, string(summaryJSON),
			curveBlob, ordersBlob, flowsBlob,
			finishedAt.UTC().Format(time.RFC3339), id,
		)
		if err != nil {
			return err
		}
		return checkAffected(res)
	})
}

// Get loads one run without its blobs
func (r *Repository) Get(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, name, strategy, frequency, status, start_cash,
		       final_value, bars, error, created_at, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// GetRequest loads the original request of a run
func (r *Repository) GetRequest(id string) (*Request, error) {
	var reqJSON string
	err := r.db.QueryRow(`SELECT request FROM runs WHERE id = ?`, id).Scan(&reqJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run request: %w", err)
	}

	var req Request
	if err := json.Unmarshal([]byte(reqJSON), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run request: %w", err)
	}
	return &req, nil
}

// GetResult loads a completed run with its series and summary
func (r *Repository) GetResult(id string) (*Result, error) {
	run, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	req, err := r.GetRequest(id)
	if err != nil {
		return nil, err
	}

	result := &Result{Run: *run, Request: *req}

	var (
		summaryJSON sql.NullString
		curveBlob   []byte
		ordersBlob  []byte
		flowsBlob   []byte
	)
	err = r.db.QueryRow(`SELECT summary, curve, orders, cashflows FROM runs WHERE id = ?`, id).
		Scan(&summaryJSON, &curveBlob, &ordersBlob, &flowsBlob)
	if err != nil {
		return nil, fmt.Errorf("failed to load run result: %w", err)
	}

	if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
		var summary analytics.Summary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
		result.Summary = &summary
	}
	if len(curveBlob) > 0 {
		if err := msgpack.Unmarshal(curveBlob, &result.Curve); err != nil {
			return nil, fmt.Errorf("failed to unmarshal equity curve: %w", err)
		}
	}
	if len(ordersBlob) > 0 {
		if err := msgpack.Unmarshal(ordersBlob, &result.Orders); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
		}
	}
	if len(flowsBlob) > 0 {
		if err := msgpack.Unmarshal(flowsBlob, &result.Cashflows); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cashflows: %w", err)
		}
	}
	return result, nil
}

// List returns runs newest first, without blobs
func (r *Repository) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT id, name, strategy, frequency, status, start_cash,
		       final_value, bars, error, created_at, started_at, finished_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}

// Delete removes a run
func (r *Repository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return checkAffected(res)
}

// Count returns the number of stored runs
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		frequency  string
		status     string
		finalValue sql.NullFloat64
		bars       sql.NullInt64
		createdAt  string
		startedAt  sql.NullString
		finishedAt sql.NullString
	)
	err := row.Scan(&run.ID, &run.Name, &run.Strategy, &frequency, &status,
		&run.StartCash, &finalValue, &bars, &run.Error,
		&createdAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Frequency = domain.Frequency(frequency)
	run.Status = Status(status)
	if finalValue.Valid {
		run.FinalValue = &finalValue.Float64
	}
	if bars.Valid {
		n := int(bars.Int64)
		run.Bars = &n
	}

	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = created
	if t := parseNullTime(startedAt); t != nil {
		run.StartedAt = t
	}
	if t := parseNullTime(finishedAt); t != nil {
		run.FinishedAt = t
	}
	return &run, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
