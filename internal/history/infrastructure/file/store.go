package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"
)

// document is the on-disk layout.
type document struct {
	Readings []billing.ReadingHistoryEntry `json:"readings"`
	Settings map[string]string             `json:"settings"`
}

// Store keeps history in a single JSON file. Every write replaces the file
// through a temporary file in the same directory.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore opens or creates the file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file store: create directory: %w", err)
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(document{Settings: map[string]string{}}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("file store: stat: %w", err)
	}
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveReading appends or replaces entry by ID.
func (s *Store) SaveReading(ctx context.Context, entry billing.ReadingHistoryEntry) (billing.ReadingHistoryEntry, error) {
	_ = ctx
	prepared, err := history.PrepareEntry(entry)
	if err != nil {
		return billing.ReadingHistoryEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	replaced := false
	for i := range doc.Readings {
		if doc.Readings[i].ID == prepared.ID {
			doc.Readings[i] = prepared
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Readings = append(doc.Readings, prepared)
	}
	if err := s.write(doc); err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	return prepared.Clone(), nil
}

// GetAllReadings returns every entry, oldest first.
func (s *Store) GetAllReadings(ctx context.Context) ([]billing.ReadingHistoryEntry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	result := doc.Readings
	if result == nil {
		result = []billing.ReadingHistoryEntry{}
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
	settings, err := s.Settings(ctx)
	if err != nil {
		return "", err
	}
	if v, ok := settings[key]; ok {
		return v, nil
	}
	return fallback, nil
}

// SaveSetting stores value under key.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc.Settings == nil {
		doc.Settings = map[string]string{}
	}
	doc.Settings[key] = value
	return s.write(doc)
}

// Settings returns every setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.Settings == nil {
		return map[string]string{}, nil
	}
	return doc.Settings, nil
}

// ReplaceAll rewrites the file with readings and settings.
func (s *Store) ReplaceAll(ctx context.Context, readings []billing.ReadingHistoryEntry, settings map[string]string) error {
	_ = ctx
	doc := document{
		Readings: make([]billing.ReadingHistoryEntry, 0, len(readings)),
		Settings: make(map[string]string, len(settings)),
	}
	for _, e := range readings {
		prepared, err := history.PrepareEntry(e)
		if err != nil {
			return err
		}
		doc.Readings = append(doc.Readings, prepared)
	}
	for k, v := range settings {
		doc.Settings[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(doc)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return document{}, fmt.Errorf("file store: read: %w", err)
	}
	var doc document
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("file store: decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.json")
	if err != nil {
		return fmt.Errorf("file store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: rename: %w", err)
	}
	return nil
}
