// Package historytest holds a behavioural test suite shared by every history store.
package historytest

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"
)

// Entry builds a saved reading for date (DD-MM-YYYY) with the given main reading.
func Entry(date string, mainReading float64, createdAt time.Time) billing.ReadingHistoryEntry {
	return billing.ReadingHistoryEntry{
		Date:                date,
		PreviousDate:        "01-01-2025",
		MainReading:         mainReading,
		PreviousMainReading: 1000,
		SubReadings:         []float64{600},
		PreviousSubReadings: []float64{500},
		SubMeterLabels:      []string{"Shop"},
		Usages:              billing.Usages{Main: mainReading - 1000, Property: mainReading - 1100, SubMeters: []float64{100}, Total: mainReading - 1000},
		Costs: billing.Costs{
			Property:  billing.MeterCost{Usage: mainReading - 1100},
			SubMeters: []billing.MeterCost{{Label: "Shop", Usage: 100}},
		},
		Rates:      billing.Rates{RatePerKWh: 28, StandingCharge: 140, StandingChargeSplit: billing.SplitNameEqual},
		PeriodDays: 30,
		CreatedAt:  createdAt,
	}
}

// RunStoreContract exercises store, which must start empty.
func RunStoreContract(t *testing.T, store history.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

	latest, err := store.GetMostRecentReading(ctx)
	if err != nil {
		t.Fatalf("most recent on empty store: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no reading in empty store, got %+v", latest)
	}

	if _, err := store.SaveReading(ctx, billing.ReadingHistoryEntry{}); !errors.Is(err, history.ErrNilEntry) {
		t.Fatalf("expected nil entry error, got %v", err)
	}

	march, err := store.SaveReading(ctx, Entry("31-03-2025", 1400, base))
	if err != nil {
		t.Fatalf("save march: %v", err)
	}
	if march.ID == "" {
		t.Fatalf("expected an id to be assigned")
	}
	if _, err := store.SaveReading(ctx, Entry("30-04-2025", 1700, base.Add(time.Hour))); err != nil {
		t.Fatalf("save april: %v", err)
	}
	if _, err := store.SaveReading(ctx, Entry("28-02-2025", 1200, base.Add(2*time.Hour))); err != nil {
		t.Fatalf("save february: %v", err)
	}

	all, err := store.GetAllReadings(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(all))
	}
	wantOrder := []string{"28-02-2025", "31-03-2025", "30-04-2025"}
	for i, date := range wantOrder {
		if all[i].Date != date {
			t.Fatalf("position %d: expected %s, got %s", i, date, all[i].Date)
		}
	}
	if all[1].ID != march.ID || all[1].SubMeterLabels[0] != "Shop" || all[1].SubReadings[0] != 600 {
		t.Fatalf("reading did not round trip: %+v", all[1])
	}
	if !all[1].CreatedAt.Equal(base) {
		t.Fatalf("created at mismatch: %v", all[1].CreatedAt)
	}

	latest, err = store.GetMostRecentReading(ctx)
	if err != nil {
		t.Fatalf("most recent: %v", err)
	}
	if latest == nil || latest.Date != "30-04-2025" || latest.MainReading != 1700 {
		t.Fatalf("unexpected most recent: %+v", latest)
	}

	march.MainReading = 1450
	if _, err := store.SaveReading(ctx, march); err != nil {
		t.Fatalf("resave march: %v", err)
	}
	found, err := history.FindReading(ctx, store, march.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.MainReading != 1450 {
		t.Fatalf("expected updated reading, got %v", found.MainReading)
	}
	if _, err := history.FindReading(ctx, store, "missing"); !errors.Is(err, history.ErrReadingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	value, err := store.GetSetting(ctx, "ratePerKwh", "24.5")
	if err != nil || value != "24.5" {
		t.Fatalf("expected fallback, got %q %v", value, err)
	}
	if err := store.SaveSetting(ctx, "ratePerKwh", "28"); err != nil {
		t.Fatalf("save setting: %v", err)
	}
	if err := store.SaveSetting(ctx, "ratePerKwh", "29"); err != nil {
		t.Fatalf("overwrite setting: %v", err)
	}
	value, err = store.GetSetting(ctx, "ratePerKwh", "24.5")
	if err != nil || value != "29" {
		t.Fatalf("expected stored value, got %q %v", value, err)
	}

	clock := history.FixedClock{At: base.Add(24 * time.Hour)}
	snap, err := history.ExportAll(ctx, store, clock)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(snap.Readings) != 3 || snap.Settings["ratePerKwh"] != "29" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if _, err := store.SaveReading(ctx, Entry("31-05-2025", 1900, base.Add(3*time.Hour))); err != nil {
		t.Fatalf("save may: %v", err)
	}
	if err := store.SaveSetting(ctx, "propertyName", "Old Mill"); err != nil {
		t.Fatalf("save setting: %v", err)
	}

	if err := history.ImportAll(ctx, store, snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	all, err = store.GetAllReadings(ctx)
	if err != nil {
		t.Fatalf("get all after import: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("import must replace history, got %d readings", len(all))
	}
	if value, _ := store.GetSetting(ctx, "propertyName", "none"); value != "none" {
		t.Fatalf("import must replace settings, got %q", value)
	}

	again, err := history.ExportAll(ctx, store, clock)
	if err != nil {
		t.Fatalf("export again: %v", err)
	}
	if again.Checksum != snap.Checksum {
		t.Fatalf("export after import differs: %s vs %s", again.Checksum, snap.Checksum)
	}

	tampered := snap
	tampered.Settings = map[string]string{"ratePerKwh": "1"}
	if err := history.ImportAll(ctx, store, tampered); !errors.Is(err, history.ErrSnapshotChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
}
