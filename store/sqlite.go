// Package store keeps a history of analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/OpenLEDEval/OLE-Toolset/analysis"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
	"github.com/OpenLEDEval/OLE-Toolset/measurement"
)

// ErrNotFound is returned for an unknown run ID
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed width so that created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed run history
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run is one stored analysis
type Run struct {
	ID            string
	CreatedAt     time.Time
	Name          string
	Transfer      string
	Samples       int
	Excluded      int
	Estimated     bool
	Matrix        matrix.Matrix3x3
	WhiteX        float64
	WhiteY        float64
	PeakLuminance float64
	BlackLevel    float64
	ContrastRatio float64
	Metadata      measurement.Metadata
	Metrics       []analysis.MetricSummary
}

// Metric returns the stored summary of m
func (r Run) Metric(m analysis.Metric) (analysis.MetricSummary, bool) {
	for _, ms := range r.Metrics {
		if ms.Metric == m {
			return ms, true
		}
	}
	return analysis.MetricSummary{}, false
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// Open opens or creates the history database at dataSourceName
func Open(dataSourceName string) (*Store, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}
	if dbDir := filepath.Dir(dbPath); dbDir != "." && dbDir != "" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        created_at TEXT NOT NULL,
        name TEXT NOT NULL,
        transfer TEXT NOT NULL,
        samples INTEGER NOT NULL,
        excluded INTEGER NOT NULL,
        estimated INTEGER NOT NULL DEFAULT 0,
        primary_matrix TEXT NOT NULL,
        white_x REAL,
        white_y REAL,
        peak_luminance REAL,
        black_level REAL,
        contrast_ratio REAL,
        metadata TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
    `

	createMetricsTable := `
    CREATE TABLE IF NOT EXISTS metrics (
        run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
        metric TEXT NOT NULL,
        count INTEGER NOT NULL,
        mean REAL,
        median REAL,
        p95 REAL,
        max REAL,
        PRIMARY KEY (run_id, metric)
    );
    `

	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("runs table: %w", err)
	}
	if _, err := db.Exec(createMetricsTable); err != nil {
		return fmt.Errorf("metrics table: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// nullable maps NaN to SQL NULL
func nullable(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func fromNull(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

// Save records cpa under runID in one transaction
func (s *Store) Save(ctx context.Context, runID string, cpa *analysis.ColourPrecisionAnalysis) error {
	if cpa == nil {
		return errors.New("no analysis to save")
	}
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	npm := cpa.PrimaryMatrix()
	matrixJSON, err := json.Marshal(npm)
	if err != nil {
		return fmt.Errorf("encode primary matrix: %w", err)
	}
	metaJSON, err := json.Marshal(cpa.Metadata())
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	w := cpa.White()
	sum := cpa.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, name, transfer, samples, excluded, estimated,
            primary_matrix, white_x, white_y, peak_luminance, black_level, contrast_ratio, metadata)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.now().UTC().Format(timeLayout), cpa.ShortName(), cpa.Transfer(),
		sum.Samples, sum.Excluded, cpa.Estimate() != nil, string(matrixJSON),
		nullable(w.Chromaticity.X), nullable(w.Chromaticity.Y), nullable(w.PeakLuminance()),
		nullable(w.BlackLevel), nullable(w.ContrastRatio), string(metaJSON))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO metrics (run_id, metric, count, mean, median, p95, max) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare metrics: %w", err)
	}
	defer stmt.Close()
	for _, m := range sum.Metrics {
		if _, err := stmt.ExecContext(ctx, runID, string(m.Metric), m.Count,
			nullable(m.Mean), nullable(m.Median), nullable(m.P95), nullable(m.Max)); err != nil {
			return fmt.Errorf("insert metric %s: %w", m.Metric, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, created_at, name, transfer, samples, excluded, estimated,
    primary_matrix, white_x, white_y, peak_luminance, black_level, contrast_ratio, metadata`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                         Run
		created, matrixJSON       string
		metaJSON                  sql.NullString
		wx, wy, peak, black, cont sql.NullFloat64
	)
	if err := row.Scan(&r.ID, &created, &r.Name, &r.Transfer, &r.Samples, &r.Excluded, &r.Estimated,
		&matrixJSON, &wx, &wy, &peak, &black, &cont, &metaJSON); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, created, err)
	}
	r.CreatedAt = t
	if err := json.Unmarshal([]byte(matrixJSON), &r.Matrix); err != nil {
		return Run{}, fmt.Errorf("run %s: decode primary matrix: %w", r.ID, err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &r.Metadata); err != nil {
			return Run{}, fmt.Errorf("run %s: decode metadata: %w", r.ID, err)
		}
	}
	r.WhiteX, r.WhiteY = fromNull(wx), fromNull(wy)
	r.PeakLuminance, r.BlackLevel, r.ContrastRatio = fromNull(peak), fromNull(black), fromNull(cont)
	return r, nil
}

func (s *Store) metrics(ctx context.Context, runID string) ([]analysis.MetricSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT metric, count, mean, median, p95, max FROM metrics WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	byName := make(map[analysis.Metric]analysis.MetricSummary)
	for rows.Next() {
		var (
			ms                     analysis.MetricSummary
			name                   string
			mean, med, p95, maxVal sql.NullFloat64
		)
		if err := rows.Scan(&name, &ms.Count, &mean, &med, &p95, &maxVal); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		ms.Metric = analysis.Metric(name)
		ms.Mean, ms.Median, ms.P95, ms.Max = fromNull(mean), fromNull(med), fromNull(p95), fromNull(maxVal)
		byName[ms.Metric] = ms
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]analysis.MetricSummary, 0, len(byName))
	for _, m := range analysis.Metrics {
		if ms, ok := byName[m]; ok {
			out = append(out, ms)
		}
	}
	return out, nil
}

// Get returns one run with its metrics
func (s *Store) Get(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	if r.Metrics, err = s.metrics(ctx, runID); err != nil {
		return Run{}, err
	}
	return r, nil
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Metrics, err = s.metrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Delete removes a run and its metrics
func (s *Store) Delete(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM metrics WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete metrics: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return tx.Commit()
}
