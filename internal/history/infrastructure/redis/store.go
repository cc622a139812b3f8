package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"
)

const defaultPrefix = "meterbill"

// Store keeps readings and settings in two Redis hashes:
// <prefix>:readings (id -> JSON entry) and <prefix>:settings (key -> value).
type Store struct {
	client *goredis.Client
	prefix string
}

// Open connects to addr and pings the server.
func Open(ctx context.Context, addr, prefix string) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis store: empty addr")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	return NewStore(client, prefix)
}

// NewStore wraps an existing client.
func NewStore(client *goredis.Client, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis store: nil client")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) readingsKey() string { return s.prefix + ":readings" }

func (s *Store) settingsKey() string { return s.prefix + ":settings" }

// SaveReading stores entry under its ID.
func (s *Store) SaveReading(ctx context.Context, entry billing.ReadingHistoryEntry) (billing.ReadingHistoryEntry, error) {
	prepared, err := history.PrepareEntry(entry)
	if err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	payload, err := json.Marshal(prepared)
	if err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	if err := s.client.HSet(ctx, s.readingsKey(), prepared.ID, payload).Err(); err != nil {
		return billing.ReadingHistoryEntry{}, fmt.Errorf("redis store: save reading: %w", err)
	}
	return prepared, nil
}

// GetAllReadings returns every entry, oldest first.
func (s *Store) GetAllReadings(ctx context.Context) ([]billing.ReadingHistoryEntry, error) {
	raw, err := s.client.HGetAll(ctx, s.readingsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: load readings: %w", err)
	}
	result := make([]billing.ReadingHistoryEntry, 0, len(raw))
	for id, payload := range raw {
		var entry billing.ReadingHistoryEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("redis store: decode reading %s: %w", id, err)
		}
		result = append(result, entry)
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
	value, err := s.client.HGet(ctx, s.settingsKey(), key).Result()
	if errors.Is(err, goredis.Nil) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("redis store: get setting: %w", err)
	}
	return value, nil
}

// SaveSetting stores value under key.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.settingsKey(), key, value).Err(); err != nil {
		return fmt.Errorf("redis store: save setting: %w", err)
	}
	return nil
}

// Settings returns every setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	settings, err := s.client.HGetAll(ctx, s.settingsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: load settings: %w", err)
	}
	return settings, nil
}

// ReplaceAll swaps both hashes in a single MULTI/EXEC.
func (s *Store) ReplaceAll(ctx context.Context, readings []billing.ReadingHistoryEntry, settings map[string]string) error {
	encoded := make(map[string]any, len(readings))
	for _, e := range readings {
		prepared, err := history.PrepareEntry(e)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(prepared)
		if err != nil {
			return err
		}
		encoded[prepared.ID] = payload
	}
	values := make(map[string]any, len(settings))
	for k, v := range settings {
		values[k] = v
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.readingsKey(), s.settingsKey())
		if len(encoded) > 0 {
			pipe.HSet(ctx, s.readingsKey(), encoded)
		}
		if len(values) > 0 {
			pipe.HSet(ctx, s.settingsKey(), values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store: replace: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
