package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	billing "meterbill/internal/billing/domain"
)

// SnapshotVersion is the current snapshot format.
const SnapshotVersion = 1

// Snapshot is a full export of saved readings and settings.
type Snapshot struct {
	Version    int                           `json:"version" validate:"required,gte=1"`
	ExportedAt time.Time                     `json:"exportedAt"`
	Readings   []billing.ReadingHistoryEntry `json:"readings" validate:"dive"`
	Settings   map[string]string             `json:"settings"`
	Checksum   string                        `json:"checksum" validate:"required,len=64,hexadecimal"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewSnapshot builds a snapshot with readings oldest first and a checksum over
// version, readings and settings. ExportedAt is not covered.
func NewSnapshot(readings []billing.ReadingHistoryEntry, settings map[string]string, exportedAt time.Time) (Snapshot, error) {
	sorted := make([]billing.ReadingHistoryEntry, len(readings))
	for i, r := range readings {
		sorted[i] = r.Clone()
	}
	billing.SortEntries(sorted)
	copied := make(map[string]string, len(settings))
	for k, v := range settings {
		copied[k] = v
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: exportedAt.UTC(),
		Readings:   sorted,
		Settings:   copied,
	}
	sum, err := computeChecksum(snap)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Checksum = sum
	return snap, nil
}

// VerifySnapshot checks structure and checksum.
func VerifySnapshot(snap Snapshot) error {
	if err := validate.Struct(snap); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.Version > SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, snap.Version)
	}
	for _, r := range snap.Readings {
		if err := checkSubMeters(r); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	sum, err := computeChecksum(snap)
	if err != nil {
		return err
	}
	if sum != snap.Checksum {
		return ErrSnapshotChecksum
	}
	return nil
}

func computeChecksum(snap Snapshot) (string, error) {
	payload := struct {
		Version  int                           `json:"version"`
		Readings []billing.ReadingHistoryEntry `json:"readings"`
		Settings map[string]string             `json:"settings"`
	}{
		Version:  snap.Version,
		Readings: snap.Readings,
		Settings: snap.Settings,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
