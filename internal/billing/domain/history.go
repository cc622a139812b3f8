package billing

import (
	"sort"
	"time"
)

// ReadingHistoryEntry is the persisted projection of a BillCalculation.
type ReadingHistoryEntry struct {
	ID                  string    `json:"id"`
	Date                string    `json:"date" validate:"required"`
	PreviousDate        string    `json:"previousDate" validate:"required"`
	MainReading         float64   `json:"mainReading" validate:"gte=0"`
	PreviousMainReading float64   `json:"previousMainReading" validate:"gte=0"`
	SubReadings         []float64 `json:"subReadings"`
	PreviousSubReadings []float64 `json:"previousSubReadings"`
	SubMeterLabels      []string  `json:"subMeterLabels"`
	Usages              Usages    `json:"usages"`
	Costs               Costs     `json:"costs"`
	Rates               Rates     `json:"rates"`
	PeriodDays          int       `json:"periodDays" validate:"gte=0"`
	CreatedAt           time.Time `json:"createdAt" validate:"required"`
}

// CreateReadingHistoryEntry flattens calc into a history entry created at now.
// The ID is left for the store to assign.
func CreateReadingHistoryEntry(calc BillCalculation, now time.Time) ReadingHistoryEntry {
	c := calc.Clone()
	return ReadingHistoryEntry{
		Date:                c.Readings.CurrDate,
		PreviousDate:        c.Readings.PrevDate,
		MainReading:         c.Readings.CurrMain,
		PreviousMainReading: c.Readings.PrevMain,
		SubReadings:         c.Readings.CurrSub,
		PreviousSubReadings: c.Readings.PrevSub,
		SubMeterLabels:      c.MeterLabels.SubMeters,
		Usages:              c.Usages,
		Costs:               c.Costs,
		Rates:               c.Rates,
		PeriodDays:          c.PeriodDays,
		CreatedAt:           now,
	}
}

// CalculationFromHistoryEntry rebuilds the calculation an entry was created from.
func CalculationFromHistoryEntry(e ReadingHistoryEntry) BillCalculation {
	calc := BillCalculation{
		PeriodDays: e.PeriodDays,
		Readings: Readings{
			PrevDate: e.PreviousDate,
			CurrDate: e.Date,
			PrevMain: e.PreviousMainReading,
			CurrMain: e.MainReading,
			PrevSub:  e.PreviousSubReadings,
			CurrSub:  e.SubReadings,
		},
		Rates:  e.Rates,
		Usages: e.Usages,
		Costs:  e.Costs,
		MeterLabels: MeterLabels{
			Property:  PropertyLabel,
			SubMeters: e.SubMeterLabels,
		},
	}
	return calc.Clone()
}

// Clone returns a deep copy of the entry.
func (e ReadingHistoryEntry) Clone() ReadingHistoryEntry {
	out := e
	out.SubReadings = cloneFloats(e.SubReadings)
	out.PreviousSubReadings = cloneFloats(e.PreviousSubReadings)
	out.SubMeterLabels = cloneStrings(e.SubMeterLabels)
	out.Usages.SubMeters = cloneFloats(e.Usages.SubMeters)
	if e.Costs.SubMeters != nil {
		out.Costs.SubMeters = append([]MeterCost{}, e.Costs.SubMeters...)
	}
	return out
}

// ReadingDate returns the parsed Date, or the CreatedAt day when Date does not parse.
func (e ReadingHistoryEntry) ReadingDate() time.Time {
	if t, err := ParseDate(e.Date); err == nil {
		return t
	}
	return CalendarDay(e.CreatedAt)
}

// Before orders entries by reading date, then creation time, then ID.
func (e ReadingHistoryEntry) Before(other ReadingHistoryEntry) bool {
	a, b := e.ReadingDate(), other.ReadingDate()
	if !a.Equal(b) {
		return a.Before(b)
	}
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID < other.ID
}

// SortEntries orders entries oldest first.
func SortEntries(entries []ReadingHistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
}

// MostRecent returns the latest entry by reading date, or nil for an empty list.
func MostRecent(entries []ReadingHistoryEntry) *ReadingHistoryEntry {
	if len(entries) == 0 {
		return nil
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if latest.Before(e) {
			latest = e
		}
	}
	out := latest.Clone()
	return &out
}
