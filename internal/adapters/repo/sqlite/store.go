// Package sqlite stores the history cache in a SQLite database, for hosts
// where several pttsync processes share one cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"

	_ "modernc.org/sqlite"
)

const dirMode = 0o700

type Store struct {
	db *sql.DB
}

var _ ports.HistoryStore = (*Store)(nil)

// New opens (or creates) the database in WAL mode and applies the schema.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("create history cache directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history_records (
		position            INTEGER NOT NULL,
		id                  TEXT PRIMARY KEY,
		status              TEXT NOT NULL,
		created_at          INTEGER NOT NULL,
		started_at          INTEGER,
		completed_at        INTEGER,
		service_group_name  TEXT NOT NULL DEFAULT '',
		handler_name        TEXT NOT NULL DEFAULT '',
		requester_name      TEXT NOT NULL DEFAULT '',
		wait_time_seconds   INTEGER,
		locally_modified_at INTEGER,
		needs_sync          INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_history_position ON history_records(position);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Load(ctx context.Context) ([]domain.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, created_at, started_at, completed_at, service_group_name,
		        handler_name, requester_name, wait_time_seconds, locally_modified_at, needs_sync
		 FROM history_records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history records: %w", err)
	}
	return records, nil
}

// Save replaces the stored list in a single transaction.
func (s *Store) Save(ctx context.Context, records []domain.HistoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_records`); err != nil {
		return fmt.Errorf("clear history records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO history_records (position, id, status, created_at, started_at, completed_at,
		   service_group_name, handler_name, requester_name, wait_time_seconds, locally_modified_at, needs_sync)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for i, record := range records {
		_, err := stmt.ExecContext(ctx,
			i, record.ID, string(record.Status), record.CreatedAt,
			nullInt(record.StartedAt), nullInt(record.CompletedAt),
			record.ServiceGroupName, record.HandlerName, record.RequesterName,
			nullInt(record.WaitTimeSeconds), nullInt(record.LocallyModifiedAt),
			boolToInt(record.NeedsSync),
		)
		if err != nil {
			return fmt.Errorf("insert history record %q: %w", record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (domain.HistoryRecord, error) {
	var (
		record                                         domain.HistoryRecord
		status                                         string
		startedAt, completedAt, waitTime, lastModified sql.NullInt64
		needsSync                                      int
	)
	err := rows.Scan(
		&record.ID, &status, &record.CreatedAt, &startedAt, &completedAt,
		&record.ServiceGroupName, &record.HandlerName, &record.RequesterName,
		&waitTime, &lastModified, &needsSync,
	)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("scan history record: %w", err)
	}

	record.Status = domain.HistoryStatus(status)
	record.StartedAt = fromNullInt(startedAt)
	record.CompletedAt = fromNullInt(completedAt)
	record.WaitTimeSeconds = fromNullInt(waitTime)
	record.LocallyModifiedAt = fromNullInt(lastModified)
	record.NeedsSync = needsSync != 0
	return record, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
