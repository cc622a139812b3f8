package history

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	billing "meterbill/internal/billing/domain"
)

func sampleEntry(id, date string) billing.ReadingHistoryEntry {
	return billing.ReadingHistoryEntry{
		ID:                  id,
		Date:                date,
		PreviousDate:        "01-01-2025",
		MainReading:         1300,
		PreviousMainReading: 1000,
		SubReadings:         []float64{650},
		PreviousSubReadings: []float64{500},
		SubMeterLabels:      []string{"Shop"},
		Usages:              billing.Usages{Main: 300, Property: 150, SubMeters: []float64{150}, Total: 300},
		Costs: billing.Costs{
			Property:  billing.MeterCost{Usage: 150},
			SubMeters: []billing.MeterCost{{Label: "Shop", Usage: 150}},
		},
		PeriodDays: 30,
		CreatedAt:  time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewSnapshot_ChecksumIgnoresOrderAndExportTime(t *testing.T) {
	a := sampleEntry("a", "31-01-2025")
	b := sampleEntry("b", "28-02-2025")
	settings := map[string]string{"ratePerKwh": "28", "propertyName": "Old Mill"}

	first, err := NewSnapshot([]billing.ReadingHistoryEntry{b, a}, settings, time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	second, err := NewSnapshot([]billing.ReadingHistoryEntry{a, b}, settings, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if first.Checksum != second.Checksum {
		t.Fatalf("checksum depends on input order or export time")
	}
	if first.Readings[0].ID != "a" {
		t.Fatalf("expected readings oldest first")
	}
	if err := VerifySnapshot(first); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifySnapshot_SurvivesJSON(t *testing.T) {
	snap, err := NewSnapshot([]billing.ReadingHistoryEntry{sampleEntry("a", "31-01-2025")}, nil, time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := VerifySnapshot(decoded); err != nil {
		t.Fatalf("verify decoded: %v", err)
	}
}

func TestVerifySnapshot_Rejects(t *testing.T) {
	snap, err := NewSnapshot([]billing.ReadingHistoryEntry{sampleEntry("a", "31-01-2025")}, nil, time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	tampered := snap
	tampered.Readings = []billing.ReadingHistoryEntry{sampleEntry("a", "31-01-2025")}
	tampered.Readings[0].MainReading = 9999
	if err := VerifySnapshot(tampered); !errors.Is(err, ErrSnapshotChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}

	noVersion := snap
	noVersion.Version = 0
	if err := VerifySnapshot(noVersion); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected invalid snapshot, got %v", err)
	}

	future := snap
	future.Version = SnapshotVersion + 1
	if err := VerifySnapshot(future); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected unsupported version, got %v", err)
	}

	missingDate := snap
	missingDate.Readings = []billing.ReadingHistoryEntry{sampleEntry("a", "")}
	if err := VerifySnapshot(missingDate); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected invalid reading, got %v", err)
	}

	mismatched := snap
	mismatched.Readings = []billing.ReadingHistoryEntry{sampleEntry("a", "31-01-2025")}
	mismatched.Readings[0].SubReadings = nil
	if err := VerifySnapshot(mismatched); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected sub-meter mismatch, got %v", err)
	}

	shapes := map[string]func(*billing.ReadingHistoryEntry){
		"no usages":    func(e *billing.ReadingHistoryEntry) { e.Usages.SubMeters = nil },
		"no costs":     func(e *billing.ReadingHistoryEntry) { e.Costs.SubMeters = nil },
		"extra labels": func(e *billing.ReadingHistoryEntry) { e.SubMeterLabels = []string{"Shop", "Flat"} },
	}
	for name, mutate := range shapes {
		entry := sampleEntry("a", "31-01-2025")
		mutate(&entry)
		bad, err := NewSnapshot([]billing.ReadingHistoryEntry{entry}, nil, time.Now())
		if err != nil {
			t.Fatalf("%s: snapshot: %v", name, err)
		}
		if err := VerifySnapshot(bad); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("%s: expected invalid snapshot, got %v", name, err)
		}
	}
}

func TestPrepareEntry(t *testing.T) {
	if _, err := PrepareEntry(billing.ReadingHistoryEntry{}); !errors.Is(err, ErrNilEntry) {
		t.Fatalf("expected nil entry, got %v", err)
	}
	entry := sampleEntry("", "31-01-2025")
	prepared, err := PrepareEntry(entry)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(prepared.ID) != 36 {
		t.Fatalf("expected uuid, got %q", prepared.ID)
	}
	keep, err := PrepareEntry(sampleEntry("fixed", "31-01-2025"))
	if err != nil || keep.ID != "fixed" {
		t.Fatalf("expected existing id to be kept, got %q %v", keep.ID, err)
	}
	short := sampleEntry("", "31-01-2025")
	short.Usages.SubMeters = nil
	if _, err := PrepareEntry(short); !errors.Is(err, ErrSubMeterMismatch) {
		t.Fatalf("expected sub-meter mismatch, got %v", err)
	}
	unlabelled := sampleEntry("", "31-01-2025")
	unlabelled.SubMeterLabels = nil
	if _, err := PrepareEntry(unlabelled); err != nil {
		t.Fatalf("entries without labels are allowed: %v", err)
	}
	negative := sampleEntry("", "31-01-2025")
	negative.MainReading = -1
	if _, err := PrepareEntry(negative); err == nil {
		t.Fatalf("expected validation error for negative reading")
	}
}
