package memory

import (
	"context"
	"sync"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"
)

// Store is an in-memory history store for demo/testing.
type Store struct {
	mu       sync.RWMutex
	readings map[string]billing.ReadingHistoryEntry
	settings map[string]string
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		readings: make(map[string]billing.ReadingHistoryEntry),
		settings: make(map[string]string),
	}
}

// SaveReading stores a copy of entry.
func (s *Store) SaveReading(ctx context.Context, entry billing.ReadingHistoryEntry) (billing.ReadingHistoryEntry, error) {
	_ = ctx
	prepared, err := history.PrepareEntry(entry)
	if err != nil {
		return billing.ReadingHistoryEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[prepared.ID] = prepared
	return prepared.Clone(), nil
}

// GetAllReadings returns copies of every entry, oldest first.
func (s *Store) GetAllReadings(ctx context.Context) ([]billing.ReadingHistoryEntry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]billing.ReadingHistoryEntry, 0, len(s.readings))
	for _, e := range s.readings {
		result = append(result, e.Clone())
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
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.settings[key]; ok {
		return v, nil
	}
	return fallback, nil
}

// SaveSetting stores value under key.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// Settings returns a copy of every setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

// ReplaceAll swaps the whole content of the store.
func (s *Store) ReplaceAll(ctx context.Context, readings []billing.ReadingHistoryEntry, settings map[string]string) error {
	_ = ctx
	nextReadings := make(map[string]billing.ReadingHistoryEntry, len(readings))
	for _, e := range readings {
		prepared, err := history.PrepareEntry(e)
		if err != nil {
			return err
		}
		nextReadings[prepared.ID] = prepared
	}
	nextSettings := make(map[string]string, len(settings))
	for k, v := range settings {
		nextSettings[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = nextReadings
	s.settings = nextSettings
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
