package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dataset_loads (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			source         TEXT,
			rows_read      INTEGER,
			rows_kept      INTEGER,
			rows_dropped   INTEGER,
			level_warnings INTEGER,
			error          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loads_ts ON dataset_loads(timestamp)`,

		`CREATE TABLE IF NOT EXISTS analyst_exchanges (
			id           TEXT PRIMARY KEY,
			timestamp    INTEGER NOT NULL,
			kind         TEXT NOT NULL,
			question     TEXT,
			answer       TEXT,
			confidence   TEXT,
			model        TEXT,
			dataset_rows INTEGER,
			cached       INTEGER,
			error        TEXT,
			duration_ms  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_ts ON analyst_exchanges(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordLoad(evt *LoadEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO dataset_loads
		(timestamp, source, rows_read, rows_kept, rows_dropped, level_warnings, error)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Source, evt.RowsRead, evt.RowsKept,
		evt.Dropped, evt.LevelWarnings, evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordExchange(ex *Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := ex.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO analyst_exchanges
		(id, timestamp, kind, question, answer, confidence, model, dataset_rows, cached, error, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		ex.ID, created.UnixMilli(), ex.Kind, ex.Question, ex.Answer, ex.Confidence,
		ex.Model, ex.DatasetRows, ex.Cached, ex.Error, ex.Duration.Milliseconds(),
	)
	return err
}

// RecentExchanges returns up to limit exchanges, newest first.
func (r *SQLiteRecorder) RecentExchanges(limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT id, timestamp, kind, question, answer, confidence,
		model, dataset_rows, cached, error, duration_ms
		FROM analyst_exchanges ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	out := []Exchange{}
	for rows.Next() {
		var (
			ex       Exchange
			ts, ms   int64
			question sql.NullString
			conf     sql.NullString
			errText  sql.NullString
		)
		if err := rows.Scan(&ex.ID, &ts, &ex.Kind, &question, &ex.Answer, &conf,
			&ex.Model, &ex.DatasetRows, &ex.Cached, &errText, &ms); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.Question, ex.Confidence, ex.Error = question.String, conf.String, errText.String
		ex.CreatedAt = time.UnixMilli(ts)
		ex.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
