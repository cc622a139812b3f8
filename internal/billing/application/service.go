package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	billing "meterbill/internal/billing/domain"
	history "meterbill/internal/history/domain"
	"meterbill/internal/observability/metrics"
)

var (
	// ErrValidationFailed is returned with a ValidationResult that carries hard errors.
	ErrValidationFailed = errors.New("billing service: validation failed")
	// ErrNoCalculation is returned when an operation needs a current calculation and there is none.
	ErrNoCalculation = errors.New("billing service: no current calculation")
	// ErrUnknownSetting is returned for setting keys the service does not manage.
	ErrUnknownSetting = errors.New("billing service: unknown setting")
	// ErrInvalidSetting is returned when a setting value does not parse.
	ErrInvalidSetting = errors.New("billing service: invalid setting value")
)

// ReadingSaved is emitted after a calculation is saved to history.
type ReadingSaved struct {
	ID         string
	Date       string
	MainUsage  float64
	Total      float64
	OccurredAt time.Time
}

// ReadingPublisher emits reading saved events.
type ReadingPublisher interface {
	PublishReadingSaved(ctx context.Context, event ReadingSaved) error
}

// Outcome is the result of Calculate. Calculation is nil when validation failed.
type Outcome struct {
	Input       billing.ReadingInput
	Validation  billing.ValidationResult
	Calculation *billing.BillCalculation
}

// Service runs the validate, calculate and save flow and keeps the current calculation.
type Service struct {
	store     history.Store
	publisher ReadingPublisher
	clock     history.Clock
	defaults  Defaults
	logger    *log.Logger

	mu         sync.Mutex
	current    *billing.BillCalculation
	validation billing.ValidationResult
}

// NewService constructs the service.
func NewService(store history.Store, publisher ReadingPublisher, clock history.Clock, defaults Defaults, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("billing service: nil store")
	}
	if clock == nil {
		clock = history.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		clock:     clock,
		defaults:  defaults,
		logger:    logger,
	}, nil
}

// PrepareInput fills blank fields of in. Rates, split and labels come from stored
// settings, then defaults. A blank previous date and previous readings are taken
// from the current values of the most recent saved reading.
func (s *Service) PrepareInput(ctx context.Context, in billing.ReadingInput) (billing.ReadingInput, error) {
	out := in
	out.PrevSub = append([]billing.Figure(nil), in.PrevSub...)
	out.CurrSub = append([]billing.Figure(nil), in.CurrSub...)
	out.SubMeterLabels = append([]string(nil), in.SubMeterLabels...)

	settings, err := s.Settings(ctx)
	if err != nil {
		return billing.ReadingInput{}, err
	}
	if out.RatePerKWh.IsBlank() {
		out.RatePerKWh = billing.Figure(settings[SettingRatePerKWh])
	}
	if out.StandingCharge.IsBlank() {
		out.StandingCharge = billing.Figure(settings[SettingStandingCharge])
	}
	if strings.TrimSpace(out.StandingChargeSplit) == "" {
		out.StandingChargeSplit = settings[SettingStandingChargeSplit]
	}
	if out.CustomSplitPercentage.IsBlank() {
		out.CustomSplitPercentage = billing.Figure(settings[SettingCustomSplitPercentage])
	}
	if len(out.SubMeterLabels) == 0 {
		out.SubMeterLabels = splitLabels(settings[SettingSubMeterLabels])
	}

	latest, err := s.store.GetMostRecentReading(ctx)
	if err != nil {
		return billing.ReadingInput{}, err
	}
	if latest == nil {
		return out, nil
	}
	if strings.TrimSpace(out.PrevDate) == "" {
		out.PrevDate = latest.Date
	}
	if out.PrevMain.IsBlank() {
		out.PrevMain = billing.FigureOf(latest.MainReading)
	}
	if len(out.PrevSub) == 0 && len(latest.SubReadings) > 0 && (len(out.CurrSub) == 0 || len(out.CurrSub) == len(latest.SubReadings)) {
		out.PrevSub = billing.FiguresOf(latest.SubReadings)
	}
	if len(out.SubMeterLabels) == 0 {
		out.SubMeterLabels = append([]string(nil), latest.SubMeterLabels...)
	}
	s.logger.Printf("input prefilled from history: id=%s prevDate=%s", latest.ID, out.PrevDate)
	return out, nil
}

// Calculate prepares and validates in, then calculates the bill and makes it current.
// When validation fails the outcome carries the result and ErrValidationFailed is returned.
func (s *Service) Calculate(ctx context.Context, in billing.ReadingInput) (Outcome, error) {
	prepared, err := s.PrepareInput(ctx, in)
	if err != nil {
		return Outcome{}, err
	}

	result := billing.ValidateReadingSet(prepared, s.clock.Now())
	metrics.ObserveValidation(result.IsValid, len(result.Errors), len(result.Warnings))
	outcome := Outcome{Input: prepared, Validation: result}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.validation = result
	if !result.IsValid {
		s.current = nil
		s.logger.Printf("validation failed: errors=%d warnings=%d", len(result.Errors), len(result.Warnings))
		return outcome, ErrValidationFailed
	}

	start := time.Now()
	calc, err := billing.CalculateBill(prepared)
	if err != nil {
		s.current = nil
		metrics.ObserveCalculation(metrics.ResultError, time.Since(start))
		s.logger.Printf("calculation failed: err=%v", err)
		return outcome, err
	}
	metrics.ObserveCalculation(metrics.ResultSuccess, time.Since(start))
	s.current = &calc
	copied := calc.Clone()
	outcome.Calculation = &copied
	s.logger.Printf("bill calculated: days=%d usage=%.2f total=%.2f", calc.PeriodDays, calc.Usages.Main, calc.Costs.Total)
	return outcome, nil
}

// Current returns a copy of the current calculation and the last validation result.
func (s *Service) Current() (*billing.BillCalculation, billing.ValidationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, s.validation
	}
	calc := s.current.Clone()
	return &calc, s.validation
}

// Formatted returns the current calculation rounded per the format settings.
func (s *Service) Formatted(ctx context.Context) (billing.BillCalculation, error) {
	calc, _ := s.Current()
	if calc == nil {
		return billing.BillCalculation{}, ErrNoCalculation
	}
	opts, err := s.FormatOptions(ctx)
	if err != nil {
		return billing.BillCalculation{}, err
	}
	return billing.FormatCalculation(*calc, opts), nil
}

// SaveCurrent stores the current calculation in history and publishes ReadingSaved.
func (s *Service) SaveCurrent(ctx context.Context) (billing.ReadingHistoryEntry, error) {
	calc, _ := s.Current()
	if calc == nil {
		return billing.ReadingHistoryEntry{}, ErrNoCalculation
	}

	entry := billing.CreateReadingHistoryEntry(*calc, s.clock.Now())
	saved, err := s.store.SaveReading(ctx, entry)
	if err != nil {
		metrics.IncReadingSaved(metrics.ResultError)
		return billing.ReadingHistoryEntry{}, fmt.Errorf("save reading: %w", err)
	}
	metrics.IncReadingSaved(metrics.ResultSuccess)
	s.refreshStoredGauge(ctx)
	s.logger.Printf("reading saved: id=%s date=%s", saved.ID, saved.Date)

	if s.publisher != nil {
		event := ReadingSaved{
			ID:         saved.ID,
			Date:       saved.Date,
			MainUsage:  saved.Usages.Main,
			Total:      saved.Costs.Total,
			OccurredAt: saved.CreatedAt,
		}
		if err := s.publisher.PublishReadingSaved(ctx, event); err != nil {
			s.logger.Printf("reading saved publish failed: id=%s err=%v", saved.ID, err)
		}
	}
	return saved, nil
}

// History returns every saved reading, oldest first.
func (s *Service) History(ctx context.Context) ([]billing.ReadingHistoryEntry, error) {
	return s.store.GetAllReadings(ctx)
}

// LatestReading returns the most recent saved reading or nil.
func (s *Service) LatestReading(ctx context.Context) (*billing.ReadingHistoryEntry, error) {
	return s.store.GetMostRecentReading(ctx)
}

// FindReading returns the saved reading with id.
func (s *Service) FindReading(ctx context.Context, id string) (billing.ReadingHistoryEntry, error) {
	return history.FindReading(ctx, s.store, id)
}

// Export captures history and settings as a snapshot.
func (s *Service) Export(ctx context.Context) (history.Snapshot, error) {
	snap, err := history.ExportAll(ctx, s.store, s.clock)
	if err != nil {
		metrics.IncSnapshot(metrics.SnapshotExport, metrics.ResultError)
		return history.Snapshot{}, err
	}
	metrics.IncSnapshot(metrics.SnapshotExport, metrics.ResultSuccess)
	s.logger.Printf("history exported: readings=%d settings=%d", len(snap.Readings), len(snap.Settings))
	return snap, nil
}

// Import replaces history and settings with snap after verifying it.
// Every setting in snap must pass the same checks as SaveSetting.
func (s *Service) Import(ctx context.Context, snap history.Snapshot) error {
	err := s.checkImportedSettings(snap.Settings)
	if err == nil {
		err = history.ImportAll(ctx, s.store, snap)
	}
	if err != nil {
		metrics.IncSnapshot(metrics.SnapshotImport, metrics.ResultError)
		return err
	}
	metrics.IncSnapshot(metrics.SnapshotImport, metrics.ResultSuccess)
	metrics.SetReadingsStored(len(snap.Readings))
	s.logger.Printf("history imported: readings=%d settings=%d", len(snap.Readings), len(snap.Settings))
	return nil
}

// FormatOptions reads display rounding from settings.
func (s *Service) FormatOptions(ctx context.Context) (billing.FormatOptions, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return billing.FormatOptions{}, err
	}
	opts := billing.DefaultFormatOptions()
	if v, err := strconv.ParseBool(settings[SettingRoundedValues]); err == nil {
		opts.RoundedValues = v
	}
	if v, err := strconv.Atoi(settings[SettingRoundTo]); err == nil && v >= 0 && v <= MaxRoundTo {
		opts.RoundTo = v
	}
	return opts, nil
}

func (s *Service) refreshStoredGauge(ctx context.Context) {
	entries, err := s.store.GetAllReadings(ctx)
	if err != nil {
		s.logger.Printf("history size unavailable: err=%v", err)
		return
	}
	metrics.SetReadingsStored(len(entries))
}

func splitLabels(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		labels = append(labels, strings.TrimSpace(p))
	}
	return labels
}
