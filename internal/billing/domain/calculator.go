package billing

import (
	"fmt"
	"math"
)

const penceToPounds = 100

// CalculateBill parses a validated input and calculates its bill.
// Input that fails to parse returns an error wrapping ErrInvariantViolation.
func CalculateBill(in ReadingInput) (BillCalculation, error) {
	set, err := ParseReadingInput(in)
	if err != nil {
		return BillCalculation{}, err
	}
	return Calculate(set)
}

// Calculate derives usage, apportions the standing charge and itemizes costs.
func Calculate(set ReadingSet) (BillCalculation, error) {
	if err := checkPreconditions(set); err != nil {
		return BillCalculation{}, err
	}

	rate := set.RatePerKWh / penceToPounds
	standingPerDay := set.StandingCharge / penceToPounds

	periodDays := DaysBetween(set.PrevDate, set.CurrDate)
	totalStanding := float64(periodDays) * standingPerDay

	mainUsage := set.CurrMain - set.PrevMain
	subUsages := make([]float64, len(set.PrevSub))
	var totalSubUsage float64
	for i := range set.PrevSub {
		subUsages[i] = set.CurrSub[i] - set.PrevSub[i]
		totalSubUsage += subUsages[i]
	}
	propertyUsage := mainUsage - totalSubUsage

	propertyStanding, subStanding, err := apportion(set.Split, totalStanding, mainUsage, propertyUsage, subUsages)
	if err != nil {
		return BillCalculation{}, err
	}

	labels := SubMeterLabels(set.Labels, len(subUsages))
	property := meterCost("", propertyUsage, rate, propertyStanding)
	subCosts := make([]MeterCost, len(subUsages))
	total := property.Total
	for i, usage := range subUsages {
		subCosts[i] = meterCost(labels[i], usage, rate, subStanding[i])
		total += subCosts[i].Total
	}

	return BillCalculation{
		PeriodDays: periodDays,
		Readings: Readings{
			PrevDate: FormatDate(set.PrevDate),
			CurrDate: FormatDate(set.CurrDate),
			PrevMain: set.PrevMain,
			CurrMain: set.CurrMain,
			PrevSub:  cloneFloats(set.PrevSub),
			CurrSub:  cloneFloats(set.CurrSub),
		},
		Rates: Rates{
			RatePerKWh:            set.RatePerKWh,
			StandingCharge:        set.StandingCharge,
			StandingChargeSplit:   set.Split.Name(),
			CustomSplitPercentage: set.Split.Percentage(),
		},
		Usages: Usages{
			Main:      mainUsage,
			Property:  propertyUsage,
			SubMeters: subUsages,
			Total:     mainUsage,
		},
		Costs: Costs{
			Property:            property,
			SubMeters:           subCosts,
			TotalStandingCharge: totalStanding,
			Total:               total,
		},
		MeterLabels: MeterLabels{
			Property:  PropertyLabel,
			SubMeters: labels,
		},
	}, nil
}

func meterCost(label string, usage, rate, standing float64) MeterCost {
	energy := usage * rate
	return MeterCost{
		Label:          label,
		Usage:          usage,
		EnergyCost:     energy,
		StandingCharge: standing,
		Total:          energy + standing,
	}
}

// apportion splits total between the property and each sub-meter. With no
// sub-meters the property carries the whole charge under every policy.
func apportion(policy SplitPolicy, total, mainUsage, propertyUsage float64, subUsages []float64) (float64, []float64, error) {
	shares := make([]float64, len(subUsages))
	if len(subUsages) == 0 {
		return total, shares, nil
	}

	switch policy.Kind() {
	case SplitEqual:
		each := total / float64(len(subUsages)+1)
		for i := range shares {
			shares[i] = each
		}
		return each, shares, nil
	case SplitByUsage:
		if mainUsage == 0 {
			return 0, nil, fmt.Errorf("%w: usage split with zero main meter usage", ErrDegenerateApportionment)
		}
		for i, usage := range subUsages {
			shares[i] = usage / mainUsage * total
		}
		return propertyUsage / mainUsage * total, shares, nil
	case SplitCustom:
		pct := policy.Percentage()
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return 0, nil, fmt.Errorf("%w: custom split percentage %v outside 0-100", ErrInvariantViolation, pct)
		}
		property := total * pct / 100
		each := (total - property) / float64(len(subUsages))
		for i := range shares {
			shares[i] = each
		}
		return property, shares, nil
	default:
		return 0, nil, fmt.Errorf("%w: unknown split kind %d", ErrInvariantViolation, policy.Kind())
	}
}

func checkPreconditions(set ReadingSet) error {
	if set.PrevDate.IsZero() || set.CurrDate.IsZero() {
		return fmt.Errorf("%w: missing reading date", ErrInvariantViolation)
	}
	if DaysBetween(set.PrevDate, set.CurrDate) <= 0 {
		return fmt.Errorf("%w: current date %s not after previous date %s", ErrInvariantViolation, FormatDate(set.CurrDate), FormatDate(set.PrevDate))
	}
	if len(set.PrevSub) != len(set.CurrSub) {
		return fmt.Errorf("%w: %d previous and %d current sub-meter readings", ErrInvariantViolation, len(set.PrevSub), len(set.CurrSub))
	}
	figures := []float64{set.PrevMain, set.CurrMain, set.RatePerKWh, set.StandingCharge}
	figures = append(figures, set.PrevSub...)
	figures = append(figures, set.CurrSub...)
	for _, v := range figures {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite figure", ErrInvariantViolation)
		}
	}
	if set.CurrMain < set.PrevMain {
		return fmt.Errorf("%w: negative main meter usage", ErrInvariantViolation)
	}
	var subUsage float64
	for i := range set.PrevSub {
		if set.CurrSub[i] < set.PrevSub[i] {
			return fmt.Errorf("%w: negative usage on %s", ErrInvariantViolation, SubMeterLabel(set.Labels, i))
		}
		subUsage += set.CurrSub[i] - set.PrevSub[i]
	}
	if subUsage-(set.CurrMain-set.PrevMain) > usageTolerance {
		return fmt.Errorf("%w: sub-meter usage exceeds main meter usage", ErrInvariantViolation)
	}
	return nil
}
