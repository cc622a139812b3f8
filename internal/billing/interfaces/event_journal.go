package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"meterbill/internal/billing/application"
)

// ReadingSavedEventType names ReadingSaved records in the journal.
const ReadingSavedEventType = "billing.reading_saved"

const journalSchemaVersion = 1

// JournalRecord is one line of the event journal.
type JournalRecord struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    string          `json:"occurred_at"`
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

type readingSavedPayload struct {
	ID        string  `json:"id"`
	Date      string  `json:"date"`
	MainUsage float64 `json:"main_usage"`
	Total     float64 `json:"total"`
}

// EventJournal logs ReadingSaved events and, when it has a path, appends each
// one to that file as a JSON line for downstream consumers.
type EventJournal struct {
	logger *log.Logger
	path   string
	mu     sync.Mutex
}

// NewEventJournal constructs a journal. An empty path only logs.
func NewEventJournal(path string, logger *log.Logger) *EventJournal {
	if logger == nil {
		logger = log.Default()
	}
	return &EventJournal{logger: logger, path: path}
}

// PublishReadingSaved records event.
func (j *EventJournal) PublishReadingSaved(ctx context.Context, event application.ReadingSaved) error {
	if j == nil {
		return errors.New("event journal: nil journal")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	j.logger.Printf("reading saved: id=%s date=%s usage=%.2f total=%.2f", event.ID, event.Date, event.MainUsage, event.Total)
	if j.path == "" {
		return nil
	}

	payload, err := json.Marshal(readingSavedPayload{
		ID:        event.ID,
		Date:      event.Date,
		MainUsage: event.MainUsage,
		Total:     event.Total,
	})
	if err != nil {
		return err
	}
	line, err := json.Marshal(JournalRecord{
		EventID:       uuid.NewString(),
		EventType:     ReadingSavedEventType,
		OccurredAt:    event.OccurredAt.UTC().Format(time.RFC3339),
		SchemaVersion: journalSchemaVersion,
		Payload:       payload,
	})
	if err != nil {
		return err
	}
	return j.append(append(line, '\n'))
}

func (j *EventJournal) append(line []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(j.path), 0o750); err != nil {
		return fmt.Errorf("event journal: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("event journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("event journal: %w", err)
	}
	return f.Close()
}
