package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store persists history in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveReading inserts or replaces entry.
func (s *Store) SaveReading(ctx context.Context, entry billing.ReadingHistoryEntry) (billing.ReadingHistoryEntry, error) {
	if s == nil || s.db == nil {
		return billing.ReadingHistoryEntry{}, errors.New("postgres store: nil db")
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
		return nil, errors.New("postgres store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT payload
FROM meter_readings
ORDER BY reading_date ASC, created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []billing.ReadingHistoryEntry{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry billing.ReadingHistoryEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("postgres store: decode reading: %w", err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
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
		return "", errors.New("postgres store: nil db")
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meter_settings WHERE key = $1`, key).Scan(&value)
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
		return errors.New("postgres store: nil db")
	}
	return upsertSetting(ctx, s.db, key, value)
}

// Settings returns every setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("postgres store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meter_settings`)
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
		return errors.New("postgres store: nil db")
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM meter_readings`); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meter_settings`); err != nil {
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
INSERT INTO meter_readings (id, reading_date, created_at, payload)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	reading_date = EXCLUDED.reading_date,
	created_at = EXCLUDED.created_at,
	payload = EXCLUDED.payload`,
		entry.ID, entry.ReadingDate(), entry.CreatedAt.UTC(), string(payload))
	return err
}

func upsertSetting(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO meter_settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}
