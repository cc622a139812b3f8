package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"

	_ "modernc.org/sqlite"
)

const sortableDate = "2006-01-02"

// Store persists history in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the database at path, creating it and applying migrations.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure database: %w", err)
		}
	}
	if err := RunMigrations(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// SaveReading inserts or replaces entry.
func (s *Store) SaveReading(ctx context.Context, entry billing.ReadingHistoryEntry) (billing.ReadingHistoryEntry, error) {
	if s == nil || s.db == nil {
		return billing.ReadingHistoryEntry{}, errors.New("sqlite store: nil db")
	}
	prepared, err := history.PrepareEntry(entry)
	if err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	if err := upsertReading(ctx, s.db, prepared); err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	return prepared, nil
}

// GetAllReadings returns every entry, oldest first.
func (s *Store) GetAllReadings(ctx context.Context) ([]billing.ReadingHistoryEntry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT payload
FROM readings
ORDER BY reading_date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []billing.ReadingHistoryEntry{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry billing.ReadingHistoryEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("sqlite store: decode reading: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	billing.SortEntries(result)
	return result, nil
}

// GetMostRecentReading returns the latest entry or nil.
func (s *Store) GetMostRecentReading(ctx context.Context) (*billing.ReadingHistoryEntry, error) {
	entries, err := s.GetAllReadings(ctx)
	if err != nil {
		return nil, err
	}
	return billing.MostRecent(entries), nil
}

// GetSetting returns the value for key or fallback.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("sqlite store: nil db")
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SaveSetting stores value under key.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: nil db")
	}
	return upsertSetting(ctx, s.db, key, value)
}

// Settings returns every setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

// ReplaceAll swaps every reading and setting in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, readings []billing.ReadingHistoryEntry, settings map[string]string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: nil db")
	}
	prepared := make([]billing.ReadingHistoryEntry, 0, len(readings))
	for _, e := range readings {
		p, err := history.PrepareEntry(e)
		if err != nil {
			return err
		}
		prepared = append(prepared, p)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM readings`); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, e := range prepared {
		if err := upsertReading(ctx, tx, e); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	for k, v := range settings {
		if err := upsertSetting(ctx, tx, k, v); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertReading(ctx context.Context, db execer, entry billing.ReadingHistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO readings (id, reading_date, created_at, payload)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	reading_date = excluded.reading_date,
	created_at = excluded.created_at,
	payload = excluded.payload`,
		entry.ID, entry.ReadingDate().Format(sortableDate), entry.CreatedAt.UTC().Format(time.RFC3339Nano), string(payload))
	return err
}

func upsertSetting(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}
