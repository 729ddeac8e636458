package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"embednotify/internal/config"
)

const defaultListLimit = 50

// timestampLayout has fixed-width fractions so stored values sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the attempt journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("history requires config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// dsn carries the pragmas in the query string so the driver applies them to
// every pooled connection, not just the first. Concurrent writers then wait
// on busy_timeout instead of failing with SQLITE_BUSY.
func dsn(dbPath string) string {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Set("_txlock", "immediate")
	return dbPath + "?" + params.Encode()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an attempt and returns its row id.
func (s *Store) Record(ctx context.Context, attempt Attempt) (int64, error) {
	if strings.TrimSpace(string(attempt.Outcome)) == "" {
		return 0, errors.New("record attempt: outcome is required")
	}
	startedAt := attempt.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO attempts (
            datasource_id, request_id, url, outcome, status_code, error_message, started_at, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.DatasourceID,
		attempt.RequestID,
		attempt.URL,
		string(attempt.Outcome),
		nullableInt(attempt.StatusCode),
		nullableString(attempt.Error),
		startedAt.UTC().Format(timestampLayout),
		attempt.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns the newest attempts first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	return s.query(ctx, `SELECT id, datasource_id, request_id, url, outcome, status_code, error_message, started_at, duration_ms
        FROM attempts ORDER BY started_at DESC, id DESC LIMIT ?`, normalizeLimit(limit))
}

// ForDatasource returns the newest attempts for a single datasource.
func (s *Store) ForDatasource(ctx context.Context, datasourceID string, limit int) ([]Attempt, error) {
	return s.query(ctx, `SELECT id, datasource_id, request_id, url, outcome, status_code, error_message, started_at, duration_ms
        FROM attempts WHERE datasource_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`, datasourceID, normalizeLimit(limit))
}

// Prune deletes attempts that started before cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM attempts WHERE started_at < ?", cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(rows *sql.Rows) (Attempt, error) {
	var (
		attempt    Attempt
		outcome    string
		statusCode sql.NullInt64
		errMessage sql.NullString
		startedAt  string
		durationMS int64
	)
	if err := rows.Scan(
		&attempt.ID,
		&attempt.DatasourceID,
		&attempt.RequestID,
		&attempt.URL,
		&outcome,
		&statusCode,
		&errMessage,
		&startedAt,
		&durationMS,
	); err != nil {
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	ts, err := time.Parse(timestampLayout, startedAt)
	if err != nil {
		return Attempt{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	attempt.Outcome = Outcome(outcome)
	attempt.StatusCode = int(statusCode.Int64)
	attempt.Error = errMessage.String
	attempt.StartedAt = ts
	attempt.Duration = time.Duration(durationMS) * time.Millisecond
	return attempt, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}
