package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	billing "meterbill/internal/billing/domain"
)

var (
	// ErrSnapshotChecksum is returned when a snapshot's checksum does not match its content.
	ErrSnapshotChecksum = errors.New("history: snapshot checksum mismatch")
	// ErrInvalidSnapshot is returned when a snapshot fails structural checks.
	ErrInvalidSnapshot = errors.New("history: invalid snapshot")
	// ErrNilEntry is returned when a store is asked to save an empty entry.
	ErrNilEntry = errors.New("history: nil entry")
	// ErrReadingNotFound is returned when a reading id is unknown.
	ErrReadingNotFound = errors.New("history: reading not found")
	// ErrSubMeterMismatch is returned when an entry's per sub-meter figures have different lengths.
	ErrSubMeterMismatch = errors.New("history: sub-meter figures do not line up")
)

// Store persists saved readings and user settings.
type Store interface {
	// SaveReading assigns an ID when missing and stores the entry.
	SaveReading(ctx context.Context, entry billing.ReadingHistoryEntry) (billing.ReadingHistoryEntry, error)
	// GetAllReadings returns every entry, oldest first.
	GetAllReadings(ctx context.Context) ([]billing.ReadingHistoryEntry, error)
	// GetMostRecentReading returns the latest entry, or nil when history is empty.
	GetMostRecentReading(ctx context.Context) (*billing.ReadingHistoryEntry, error)
	// GetSetting returns the stored value for key, or fallback when unset.
	GetSetting(ctx context.Context, key, fallback string) (string, error)
	SaveSetting(ctx context.Context, key, value string) error
	// Settings returns every stored setting.
	Settings(ctx context.Context) (map[string]string, error)
	// ReplaceAll swaps the store's content for the given readings and settings.
	ReplaceAll(ctx context.Context, readings []billing.ReadingHistoryEntry, settings map[string]string) error
	Close() error
}

// FindReading returns the entry with id, or ErrReadingNotFound.
func FindReading(ctx context.Context, store Store, id string) (billing.ReadingHistoryEntry, error) {
	entries, err := store.GetAllReadings(ctx)
	if err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return billing.ReadingHistoryEntry{}, ErrReadingNotFound
}

// ExportAll captures the whole store as a checksummed snapshot.
func ExportAll(ctx context.Context, store Store, clock Clock) (Snapshot, error) {
	readings, err := store.GetAllReadings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	settings, err := store.Settings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(readings, settings, clock.Now())
}

// ImportAll verifies snap and replaces the store's content with it.
func ImportAll(ctx context.Context, store Store, snap Snapshot) error {
	if err := VerifySnapshot(snap); err != nil {
		return err
	}
	return store.ReplaceAll(ctx, snap.Readings, snap.Settings)
}

// PrepareEntry validates entry and assigns a new ID when it has none.
// Every store calls it before persisting.
func PrepareEntry(entry billing.ReadingHistoryEntry) (billing.ReadingHistoryEntry, error) {
	if entry.Date == "" && entry.CreatedAt.IsZero() {
		return billing.ReadingHistoryEntry{}, ErrNilEntry
	}
	if err := validate.Struct(entry); err != nil {
		return billing.ReadingHistoryEntry{}, fmt.Errorf("history: invalid entry: %w", err)
	}
	if err := checkSubMeters(entry); err != nil {
		return billing.ReadingHistoryEntry{}, err
	}
	out := entry.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	return out, nil
}

// checkSubMeters requires one previous reading, usage and cost per current
// sub-meter reading. Labels may be absent; SubMeterLabel fills them in.
func checkSubMeters(e billing.ReadingHistoryEntry) error {
	n := len(e.SubReadings)
	labels := len(e.SubMeterLabels)
	if len(e.PreviousSubReadings) != n || len(e.Usages.SubMeters) != n || len(e.Costs.SubMeters) != n || (labels != 0 && labels != n) {
		return fmt.Errorf("%w: reading %s has %d current, %d previous, %d usages, %d costs and %d labels",
			ErrSubMeterMismatch, e.ID, n, len(e.PreviousSubReadings), len(e.Usages.SubMeters), len(e.Costs.SubMeters), labels)
	}
	return nil
}
