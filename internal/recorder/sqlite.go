package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"SeriesKeeper/internal/model"
)

// SQLiteRecorder persists the refresh audit trail to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets status queries read while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refresh_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			series_kind TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			currency    TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			points      INTEGER,
			fetched     INTEGER,
			watermark   TEXT,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_series ON refresh_events(series_kind, symbol, currency, id)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_ts ON refresh_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRefresh(rep *model.RefreshReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := rep.At
	if at.IsZero() {
		at = time.Now()
	}
	var watermark string
	if !rep.Watermark.IsZero() {
		watermark = rep.Watermark.Format(model.DayLayout)
	}

	_, err := r.db.Exec(`INSERT INTO refresh_events
		(timestamp, series_kind, symbol, currency, outcome, points, fetched, watermark, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		at.Unix(), rep.Kind, rep.Key.Symbol, rep.Key.Currency, string(rep.Outcome),
		rep.Points, rep.Fetched, watermark, rep.Err,
	)
	return err
}

func (r *SQLiteRecorder) LastRefreshes() ([]model.RefreshReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT e.timestamp, e.series_kind, e.symbol, e.currency, e.outcome,
			e.points, e.fetched, e.watermark, e.error
		FROM refresh_events e
		WHERE e.id = (
			SELECT MAX(id) FROM refresh_events
			WHERE series_kind = e.series_kind AND symbol = e.symbol AND currency = e.currency)
		ORDER BY e.series_kind, e.symbol, e.currency`)
	if err != nil {
		return nil, fmt.Errorf("query last refreshes: %w", err)
	}
	defer rows.Close()

	var out []model.RefreshReport
	for rows.Next() {
		var (
			rep       model.RefreshReport
			ts        int64
			outcome   string
			watermark sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(&ts, &rep.Kind, &rep.Key.Symbol, &rep.Key.Currency, &outcome,
			&rep.Points, &rep.Fetched, &watermark, &errText); err != nil {
			return nil, fmt.Errorf("scan refresh event: %w", err)
		}
		rep.At = time.Unix(ts, 0)
		rep.Outcome = model.Outcome(outcome)
		rep.Err = errText.String
		if watermark.String != "" {
			if rep.Watermark, err = model.ParseDay(watermark.String); err != nil {
				return nil, err
			}
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
