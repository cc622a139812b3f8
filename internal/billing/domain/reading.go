package billing

import (
	"fmt"
	"math"
	"time"
)

// ReadingInput is an untrusted reading record as entered by the user.
// Rates are in pence: RatePerKWh per kWh, StandingCharge per day.
type ReadingInput struct {
	PrevDate              string   `json:"prevDate" yaml:"prevDate"`
	CurrDate              string   `json:"currDate" yaml:"currDate"`
	PrevMain              Figure   `json:"prevMain" yaml:"prevMain"`
	CurrMain              Figure   `json:"currMain" yaml:"currMain"`
	PrevSub               []Figure `json:"prevSub" yaml:"prevSub"`
	CurrSub               []Figure `json:"currSub" yaml:"currSub"`
	SubMeterLabels        []string `json:"subMeterLabels" yaml:"subMeterLabels"`
	RatePerKWh            Figure   `json:"ratePerKwh" yaml:"ratePerKwh"`
	StandingCharge        Figure   `json:"standingCharge" yaml:"standingCharge"`
	StandingChargeSplit   string   `json:"standingChargeSplit" yaml:"standingChargeSplit"`
	CustomSplitPercentage Figure   `json:"customSplitPercentage" yaml:"customSplitPercentage"`
}

// ReadingSet is a parsed reading record.
type ReadingSet struct {
	PrevDate       time.Time
	CurrDate       time.Time
	PrevMain       float64
	CurrMain       float64
	PrevSub        []float64
	CurrSub        []float64
	Labels         []string
	RatePerKWh     float64
	StandingCharge float64
	Split          SplitPolicy
}

// SubMeterLabel returns the label at index i or "Sub Meter {i+1}" when it is missing.
func SubMeterLabel(labels []string, i int) string {
	if i >= 0 && i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("Sub Meter %d", i+1)
}

// SubMeterLabels returns n labels with defaults filled in.
func SubMeterLabels(labels []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = SubMeterLabel(labels, i)
	}
	return out
}

// SplitPolicy resolves the input's split name and percentage. Unknown names
// resolve to the Equal default; a custom percentage that does not parse is NaN.
func (in ReadingInput) SplitPolicy() SplitPolicy {
	kind, _ := ParseSplitKind(in.StandingChargeSplit)
	switch kind {
	case SplitByUsage:
		return UsageSplit()
	case SplitCustom:
		pct, err := in.CustomSplitPercentage.Float()
		if err != nil {
			pct = math.NaN()
		}
		return CustomSplit(pct)
	default:
		return EqualSplit()
	}
}

// ParseReadingInput converts raw input into a ReadingSet. Any field that does not
// parse yields an error wrapping ErrInvariantViolation.
func ParseReadingInput(in ReadingInput) (ReadingSet, error) {
	var set ReadingSet
	var err error

	if set.PrevDate, err = ParseDate(in.PrevDate); err != nil {
		return ReadingSet{}, fmt.Errorf("%w: previous date: %v", ErrInvariantViolation, err)
	}
	if set.CurrDate, err = ParseDate(in.CurrDate); err != nil {
		return ReadingSet{}, fmt.Errorf("%w: current date: %v", ErrInvariantViolation, err)
	}
	if set.PrevMain, err = in.PrevMain.Float(); err != nil {
		return ReadingSet{}, fmt.Errorf("%w: previous main reading: %v", ErrInvariantViolation, err)
	}
	if set.CurrMain, err = in.CurrMain.Float(); err != nil {
		return ReadingSet{}, fmt.Errorf("%w: current main reading: %v", ErrInvariantViolation, err)
	}
	if len(in.PrevSub) != len(in.CurrSub) {
		return ReadingSet{}, fmt.Errorf("%w: %d previous and %d current sub-meter readings", ErrInvariantViolation, len(in.PrevSub), len(in.CurrSub))
	}
	set.PrevSub = make([]float64, len(in.PrevSub))
	set.CurrSub = make([]float64, len(in.CurrSub))
	for i := range in.PrevSub {
		if set.PrevSub[i], err = in.PrevSub[i].Float(); err != nil {
			return ReadingSet{}, fmt.Errorf("%w: %s previous reading: %v", ErrInvariantViolation, SubMeterLabel(in.SubMeterLabels, i), err)
		}
		if set.CurrSub[i], err = in.CurrSub[i].Float(); err != nil {
			return ReadingSet{}, fmt.Errorf("%w: %s current reading: %v", ErrInvariantViolation, SubMeterLabel(in.SubMeterLabels, i), err)
		}
	}
	set.Labels = SubMeterLabels(in.SubMeterLabels, len(in.PrevSub))
	if set.RatePerKWh, err = in.RatePerKWh.Float(); err != nil {
		return ReadingSet{}, fmt.Errorf("%w: rate per kWh: %v", ErrInvariantViolation, err)
	}
	if set.StandingCharge, err = in.StandingCharge.Float(); err != nil {
		return ReadingSet{}, fmt.Errorf("%w: standing charge: %v", ErrInvariantViolation, err)
	}
	set.Split = in.SplitPolicy()
	return set, nil
}
