package application

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"
	"meterbill/internal/history/infrastructure/memory"
)

type recordingPublisher struct {
	events []ReadingSaved
	err    error
}

func (p *recordingPublisher) PublishReadingSaved(ctx context.Context, event ReadingSaved) error {
	_ = ctx
	p.events = append(p.events, event)
	return p.err
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

var serviceNow = time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)

func testDefaults() Defaults {
	return Defaults{
		RatePerKWh:            "28",
		StandingCharge:        "140",
		StandingChargeSplit:   billing.SplitNameEqual,
		CustomSplitPercentage: "50",
		RoundedValues:         true,
		RoundTo:               2,
		PropertyName:          "Old Mill",
	}
}

func newTestService(t *testing.T, publisher ReadingPublisher) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc, err := NewService(store, publisher, history.FixedClock{At: serviceNow}, testDefaults(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func januaryInput() billing.ReadingInput {
	return billing.ReadingInput{
		PrevDate:       "01-01-2025",
		CurrDate:       "31-01-2025",
		PrevMain:       "1000",
		CurrMain:       "1300",
		PrevSub:        []billing.Figure{"500"},
		CurrSub:        []billing.Figure{"650"},
		SubMeterLabels: []string{"Shop"},
	}
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(nil, nil, nil, Defaults{}, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestCalculateUsesDefaultsAndSaves(t *testing.T) {
	publisher := &recordingPublisher{}
	svc, store := newTestService(t, publisher)
	ctx := context.Background()

	outcome, err := svc.Calculate(ctx, januaryInput())
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if outcome.Calculation == nil || !near(outcome.Calculation.Costs.Total, 126) {
		t.Fatalf("unexpected calculation: %+v", outcome.Calculation)
	}
	if outcome.Input.RatePerKWh != "28" || outcome.Input.StandingChargeSplit != billing.SplitNameEqual {
		t.Fatalf("defaults not applied: %+v", outcome.Input)
	}

	saved, err := svc.SaveCurrent(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" || !saved.CreatedAt.Equal(serviceNow) {
		t.Fatalf("unexpected saved entry: %+v", saved)
	}
	if len(publisher.events) != 1 || publisher.events[0].ID != saved.ID || !near(publisher.events[0].Total, 126) {
		t.Fatalf("unexpected events: %+v", publisher.events)
	}
	all, _ := store.GetAllReadings(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one stored reading, got %d", len(all))
	}
}

func TestCalculateValidationFailure(t *testing.T) {
	svc, _ := newTestService(t, nil)
	in := januaryInput()
	in.CurrDate = in.PrevDate

	outcome, err := svc.Calculate(context.Background(), in)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if outcome.Calculation != nil || outcome.Validation.IsValid {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	calc, result := svc.Current()
	if calc != nil || len(result.Errors) == 0 {
		t.Fatalf("expected no current calculation and stored errors")
	}
	if _, err := svc.SaveCurrent(context.Background()); !errors.Is(err, ErrNoCalculation) {
		t.Fatalf("expected no calculation, got %v", err)
	}
	if _, err := svc.Formatted(context.Background()); !errors.Is(err, ErrNoCalculation) {
		t.Fatalf("expected no calculation, got %v", err)
	}
}

func TestCalculateRejectsFutureDate(t *testing.T) {
	svc, _ := newTestService(t, nil)
	in := januaryInput()
	in.CurrDate = "04-02-2025"
	if _, err := svc.Calculate(context.Background(), in); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected future date to fail against the injected clock, got %v", err)
	}
}

func TestPrepareInputPrefillsFromLatestReading(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Calculate(ctx, januaryInput()); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if _, err := svc.SaveCurrent(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	next := billing.ReadingInput{
		CurrDate: "02-02-2025",
		CurrMain: "1320",
		CurrSub:  []billing.Figure{"660"},
	}
	prepared, err := svc.PrepareInput(ctx, next)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if prepared.PrevDate != "31-01-2025" || prepared.PrevMain != "1300" || prepared.PrevSub[0] != "650" {
		t.Fatalf("expected previous values from history, got %+v", prepared)
	}
	if prepared.SubMeterLabels[0] != "Shop" {
		t.Fatalf("expected labels from history, got %v", prepared.SubMeterLabels)
	}
	if len(next.PrevSub) != 0 {
		t.Fatalf("caller input was modified")
	}
}

func TestSettingsOverrideDefaults(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.SaveSetting(ctx, SettingStandingChargeSplit, "custom"); err != nil {
		t.Fatalf("save split: %v", err)
	}
	if err := svc.SaveSetting(ctx, SettingCustomSplitPercentage, "70"); err != nil {
		t.Fatalf("save percentage: %v", err)
	}
	outcome, err := svc.Calculate(ctx, januaryInput())
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !near(outcome.Calculation.Costs.Property.StandingCharge, 29.4) || !near(outcome.Calculation.Costs.Property.Total, 71.4) {
		t.Fatalf("custom split from settings not applied: %+v", outcome.Calculation.Costs)
	}

	if err := svc.SaveSetting(ctx, "colour", "red"); !errors.Is(err, ErrUnknownSetting) {
		t.Fatalf("expected unknown setting, got %v", err)
	}
	if err := svc.SaveSetting(ctx, SettingRatePerKWh, "-3"); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected invalid rate, got %v", err)
	}
	if err := svc.SaveSetting(ctx, SettingStandingChargeSplit, "floor-area"); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected invalid split, got %v", err)
	}
	if err := svc.SaveSetting(ctx, SettingRoundTo, "x"); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected invalid round to, got %v", err)
	}
	name, _, err := svc.Property(ctx)
	if err != nil || name != "Old Mill" {
		t.Fatalf("expected default property name, got %q %v", name, err)
	}
}

func TestFormattedHonoursRoundingSettings(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	in := januaryInput()
	in.CurrMain = "1300.456"
	if _, err := svc.Calculate(ctx, in); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	shown, err := svc.Formatted(ctx)
	if err != nil {
		t.Fatalf("formatted: %v", err)
	}
	if shown.Usages.Main != 300.46 {
		t.Fatalf("expected rounding to 2 places, got %v", shown.Usages.Main)
	}

	if err := svc.SaveSetting(ctx, SettingRoundedValues, "false"); err != nil {
		t.Fatalf("save setting: %v", err)
	}
	shown, err = svc.Formatted(ctx)
	if err != nil {
		t.Fatalf("formatted: %v", err)
	}
	calc, _ := svc.Current()
	if shown.Usages.Main != calc.Usages.Main {
		t.Fatalf("expected raw figures when rounding is off")
	}
}

func TestPublisherErrorDoesNotFailSave(t *testing.T) {
	svc, _ := newTestService(t, &recordingPublisher{err: errors.New("broker down")})
	ctx := context.Background()
	if _, err := svc.Calculate(ctx, januaryInput()); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if _, err := svc.SaveCurrent(ctx); err != nil {
		t.Fatalf("save must succeed when publishing fails: %v", err)
	}
}

func TestExportImport(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Calculate(ctx, januaryInput()); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	saved, err := svc.SaveCurrent(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.SaveSetting(ctx, SettingPropertyName, "Mill House"); err != nil {
		t.Fatalf("save setting: %v", err)
	}
	snap, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	other, _ := newTestService(t, nil)
	if err := other.Import(ctx, snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	found, err := other.FindReading(ctx, saved.ID)
	if err != nil || !near(found.Costs.Total, 126) {
		t.Fatalf("expected imported reading, got %+v %v", found, err)
	}
	name, _, _ := other.Property(ctx)
	if name != "Mill House" {
		t.Fatalf("expected imported setting, got %q", name)
	}

	snap.Checksum = "0000000000000000000000000000000000000000000000000000000000000000"
	if err := other.Import(ctx, snap); !errors.Is(err, history.ErrSnapshotChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestImportRejectsSettingsThatSaveSettingRejects(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Calculate(ctx, januaryInput()); err != nil {
		t.Fatalf("calculate: %v", err)
	}

	cases := []struct {
		settings map[string]string
		want     error
	}{
		{map[string]string{SettingRoundTo: "400"}, ErrInvalidSetting},
		{map[string]string{SettingStandingChargeSplit: "floor-area"}, ErrInvalidSetting},
		{map[string]string{SettingRatePerKWh: "-1"}, ErrInvalidSetting},
		{map[string]string{SettingPropertyName: "Mill House", "colour": "red"}, ErrUnknownSetting},
	}
	for _, tc := range cases {
		snap, err := history.NewSnapshot(nil, tc.settings, serviceNow)
		if err != nil {
			t.Fatalf("new snapshot: %v", err)
		}
		if err := svc.Import(ctx, snap); !errors.Is(err, tc.want) {
			t.Fatalf("import %v: expected %v, got %v", tc.settings, tc.want, err)
		}
	}

	shown, err := svc.Formatted(ctx)
	if err != nil {
		t.Fatalf("formatted: %v", err)
	}
	if math.IsNaN(shown.Costs.Total) || !near(shown.Costs.Total, 126) {
		t.Fatalf("expected settings to be untouched, got total %v", shown.Costs.Total)
	}
	name, _, _ := svc.Property(ctx)
	if name != "Old Mill" {
		t.Fatalf("rejected import changed property name to %q", name)
	}
}

func TestFormatOptionsIgnoresOutOfRangeRoundTo(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	if err := store.SaveSetting(ctx, SettingRoundTo, "400"); err != nil {
		t.Fatalf("save setting: %v", err)
	}
	opts, err := svc.FormatOptions(ctx)
	if err != nil {
		t.Fatalf("format options: %v", err)
	}
	if opts.RoundTo != billing.DefaultRoundTo {
		t.Fatalf("expected default precision, got %d", opts.RoundTo)
	}
}
