package billing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// MaxReading is the largest accepted meter reading.
	MaxReading = 1_000_000
	// MaxPeriodDays is the longest period between readings before a warning is raised.
	MaxPeriodDays = 366
	// MaxDailyUsageKWh is the daily consumption above which a warning is raised.
	MaxDailyUsageKWh = 100
	// HighRatePence is the rate above which a warning is raised.
	HighRatePence = 100

	warningPrefix = "Warning: "

	// tolerance for comparing summed consumption against the main meter
	usageTolerance = 1e-9
)

const (
	MsgDateRequired       = "Date is required"
	MsgDateFormat         = "Invalid date format. Use DD-MM-YYYY"
	MsgDateInvalid        = "Invalid date"
	MsgDateInFuture       = "Date cannot be in the future"
	MsgDateOrder          = "Current date must be after previous date"
	MsgReadingNotNumber   = "Reading must be a valid number"
	MsgReadingNegative    = "Reading cannot be negative"
	MsgReadingTooLarge    = "Reading cannot exceed 1,000,000"
	MsgReadingProgression = "Current reading must be higher than previous reading"
	MsgSubMeterCount      = "Previous and current sub-meter readings must have the same number of entries"
	MsgCustomPercentage   = "Custom split percentage must be a number between 0 and 100"
	MsgUsageSplitNoUsage  = "Usage-based standing charge split requires main meter usage above zero"
)

// CheckResult is the outcome of a single check. A failed check carries Message;
// a passed check may still carry a Warning.
type CheckResult struct {
	IsValid bool
	Message string
	Warning string
}

// DateCheck is the result of ValidateDateFormat.
type DateCheck struct {
	CheckResult
	Date time.Time
}

// RangeCheck is the result of ValidateDateRange.
type RangeCheck struct {
	CheckResult
	Days int
}

// ReadingCheck is the result of ValidateReading.
type ReadingCheck struct {
	CheckResult
	Value float64
}

// ProgressionCheck is the result of ValidateReadingProgression.
type ProgressionCheck struct {
	CheckResult
	Usage float64
}

// SubMeterCheck is the result of ValidateSubMeterTotal.
type SubMeterCheck struct {
	CheckResult
	SubMeterUsage float64
	MainUsage     float64
}

// RateCheck is the result of ValidateRate.
type RateCheck struct {
	CheckResult
	Value float64
}

// ValidationResult aggregates every check run over a ReadingInput.
type ValidationResult struct {
	IsValid        bool     `json:"isValid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	DaysDifference int      `json:"daysDifference"`
	MainUsage      float64  `json:"mainUsage"`
}

func (r *ValidationResult) addError(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationResult) addWarning(msg string) {
	if msg != "" {
		r.Warnings = append(r.Warnings, msg)
	}
}

func passed() CheckResult { return CheckResult{IsValid: true} }

func failed(msg string) CheckResult { return CheckResult{Message: msg} }

// ValidateDateFormat checks a DD-MM-YYYY date and rejects days after now's calendar day.
func ValidateDateFormat(value string, now time.Time) DateCheck {
	if strings.TrimSpace(value) == "" {
		return DateCheck{CheckResult: failed(MsgDateRequired)}
	}
	date, err := ParseDate(value)
	if err != nil {
		if errors.Is(err, ErrDateFormat) {
			return DateCheck{CheckResult: failed(MsgDateFormat)}
		}
		return DateCheck{CheckResult: failed(MsgDateInvalid)}
	}
	if date.After(CalendarDay(now)) {
		return DateCheck{CheckResult: failed(MsgDateInFuture), Date: date}
	}
	return DateCheck{CheckResult: passed(), Date: date}
}

// ValidateDateRange requires curr strictly after prev and warns on gaps over MaxPeriodDays.
func ValidateDateRange(prev, curr time.Time) RangeCheck {
	days := DaysBetween(prev, curr)
	if days <= 0 {
		return RangeCheck{CheckResult: failed(MsgDateOrder), Days: days}
	}
	check := RangeCheck{CheckResult: passed(), Days: days}
	if days > MaxPeriodDays {
		check.Warning = fmt.Sprintf("%sPeriod between readings is %d days, more than a year", warningPrefix, days)
	}
	return check
}

// ValidateReading checks a single meter reading.
func ValidateReading(value Figure) ReadingCheck {
	v, err := value.Float()
	if err != nil {
		return ReadingCheck{CheckResult: failed(MsgReadingNotNumber)}
	}
	if v < 0 {
		return ReadingCheck{CheckResult: failed(MsgReadingNegative), Value: v}
	}
	if v > MaxReading {
		return ReadingCheck{CheckResult: failed(MsgReadingTooLarge), Value: v}
	}
	return ReadingCheck{CheckResult: passed(), Value: v}
}

// ValidateReadingProgression rejects a current reading below the previous one and
// warns when usage exceeds MaxDailyUsageKWh per day over days.
func ValidateReadingProgression(prev, curr float64, days int) ProgressionCheck {
	usage := curr - prev
	if usage < 0 {
		return ProgressionCheck{CheckResult: failed(MsgReadingProgression), Usage: usage}
	}
	check := ProgressionCheck{CheckResult: passed(), Usage: usage}
	if days > 0 && usage/float64(days) > MaxDailyUsageKWh {
		check.Warning = fmt.Sprintf("%sUsage of %.1f kWh over %d days appears unusually high", warningPrefix, usage, days)
	}
	return check
}

// ValidateSubMeterTotal rejects sub-meter consumption that exceeds main meter consumption.
func ValidateSubMeterTotal(prevSub, currSub []float64, prevMain, currMain float64) SubMeterCheck {
	var subUsage float64
	for i := range prevSub {
		if i < len(currSub) {
			subUsage += currSub[i] - prevSub[i]
		}
	}
	mainUsage := currMain - prevMain
	check := SubMeterCheck{SubMeterUsage: subUsage, MainUsage: mainUsage}
	if subUsage-mainUsage > usageTolerance {
		check.CheckResult = failed(fmt.Sprintf("Total sub-meter usage (%.2f kWh) exceeds main meter usage (%.2f kWh)", subUsage, mainUsage))
		return check
	}
	check.CheckResult = passed()
	return check
}

// ValidateRate checks a rate in pence. name is used in messages, e.g. "Rate".
func ValidateRate(value Figure, name string) RateCheck {
	v, err := value.Float()
	if err != nil {
		return RateCheck{CheckResult: failed(name + " must be a valid number")}
	}
	if v <= 0 {
		return RateCheck{CheckResult: failed(name + " must be greater than zero"), Value: v}
	}
	check := RateCheck{CheckResult: passed(), Value: v}
	if v > HighRatePence {
		check.Warning = warningPrefix + name + " appears unusually high"
	}
	return check
}

// ValidateReadingSet runs every check over in and collects all errors and warnings.
// It never stops at the first failure.
func ValidateReadingSet(in ReadingInput, now time.Time) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}}

	prevDate := ValidateDateFormat(in.PrevDate, now)
	if !prevDate.IsValid {
		result.addError("Previous date: " + prevDate.Message)
	}
	currDate := ValidateDateFormat(in.CurrDate, now)
	if !currDate.IsValid {
		result.addError("Current date: " + currDate.Message)
	}
	if !prevDate.Date.IsZero() && !currDate.Date.IsZero() {
		dateRange := ValidateDateRange(prevDate.Date, currDate.Date)
		if !dateRange.IsValid {
			result.addError(dateRange.Message)
		} else {
			result.DaysDifference = dateRange.Days
		}
		result.addWarning(dateRange.Warning)
	}

	prevMain := ValidateReading(in.PrevMain)
	if !prevMain.IsValid {
		result.addError("Previous main meter reading: " + prevMain.Message)
	}
	currMain := ValidateReading(in.CurrMain)
	if !currMain.IsValid {
		result.addError("Current main meter reading: " + currMain.Message)
	}
	mainProgressionValid := false
	if prevMain.IsValid && currMain.IsValid {
		progression := ValidateReadingProgression(prevMain.Value, currMain.Value, result.DaysDifference)
		if !progression.IsValid {
			result.addError(progression.Message)
		} else {
			mainProgressionValid = true
			result.MainUsage = progression.Usage
		}
		result.addWarning(progression.Warning)
	}

	countsMatch := len(in.PrevSub) == len(in.CurrSub)
	if !countsMatch {
		result.addError(MsgSubMeterCount)
	}
	subCount := len(in.PrevSub)
	if len(in.CurrSub) > subCount {
		subCount = len(in.CurrSub)
	}
	subReadingsValid := countsMatch
	prevSub := make([]float64, subCount)
	currSub := make([]float64, subCount)
	for i := 0; i < subCount; i++ {
		label := SubMeterLabel(in.SubMeterLabels, i)
		var prev, curr ReadingCheck
		if i < len(in.PrevSub) {
			prev = ValidateReading(in.PrevSub[i])
			if !prev.IsValid {
				result.addError(label + " previous reading: " + prev.Message)
			}
		}
		if i < len(in.CurrSub) {
			curr = ValidateReading(in.CurrSub[i])
			if !curr.IsValid {
				result.addError(label + " current reading: " + curr.Message)
			}
		}
		if !prev.IsValid || !curr.IsValid {
			subReadingsValid = false
			continue
		}
		prevSub[i], currSub[i] = prev.Value, curr.Value
		progression := ValidateReadingProgression(prev.Value, curr.Value, result.DaysDifference)
		if !progression.IsValid {
			subReadingsValid = false
			result.addError(label + ": " + progression.Message)
		}
		result.addWarning(labelled(label, progression.Warning))
	}
	if mainProgressionValid && subReadingsValid && subCount > 0 {
		total := ValidateSubMeterTotal(prevSub, currSub, prevMain.Value, currMain.Value)
		if !total.IsValid {
			result.addError(total.Message)
		}
	}

	rate := ValidateRate(in.RatePerKWh, "Rate")
	if !rate.IsValid {
		result.addError(rate.Message)
	}
	result.addWarning(rate.Warning)
	standing := ValidateRate(in.StandingCharge, "Standing charge")
	if !standing.IsValid {
		result.addError(standing.Message)
	}
	result.addWarning(standing.Warning)

	kind, known := ParseSplitKind(in.StandingChargeSplit)
	if !known {
		result.addWarning(fmt.Sprintf("%sUnknown standing charge split %q, using equal split", warningPrefix, in.StandingChargeSplit))
	}
	switch kind {
	case SplitCustom:
		pct, err := in.CustomSplitPercentage.Float()
		if err != nil || pct < 0 || pct > 100 {
			result.addError(MsgCustomPercentage)
		}
	case SplitByUsage:
		if mainProgressionValid && subCount > 0 && math.Abs(result.MainUsage) < usageTolerance {
			result.addError(MsgUsageSplitNoUsage)
		}
	}

	return result
}

func labelled(label, warning string) string {
	if warning == "" {
		return ""
	}
	return warningPrefix + label + ": " + strings.TrimPrefix(warning, warningPrefix)
}
