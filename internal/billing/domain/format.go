package billing

import "math"

// DefaultRoundTo is the display precision used when rounding is enabled.
const DefaultRoundTo = 2

// maxRoundTo is the most decimal places a float64 figure can meaningfully carry.
const maxRoundTo = 15

// FormatOptions controls display rounding.
type FormatOptions struct {
	RoundedValues bool
	RoundTo       int
}

// DefaultFormatOptions rounds to two decimal places.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{RoundedValues: true, RoundTo: DefaultRoundTo}
}

// RoundTo rounds v half away from zero to places decimal places.
// Beyond 15 places v is returned unchanged.
func RoundTo(v float64, places int) float64 {
	if places < 0 {
		places = DefaultRoundTo
	}
	if places > maxRoundTo {
		return v
	}
	p := math.Pow10(places)
	r := math.Round(v*p) / p
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return v
	}
	return r
}

// FormatCalculation returns a display copy of calc. Usage and cost figures are
// rounded when opts.RoundedValues is set; calc itself is never modified.
func FormatCalculation(calc BillCalculation, opts FormatOptions) BillCalculation {
	out := calc.Clone()
	if !opts.RoundedValues {
		return out
	}
	round := func(v float64) float64 { return RoundTo(v, opts.RoundTo) }

	out.Usages.Main = round(out.Usages.Main)
	out.Usages.Property = round(out.Usages.Property)
	out.Usages.Total = round(out.Usages.Total)
	for i := range out.Usages.SubMeters {
		out.Usages.SubMeters[i] = round(out.Usages.SubMeters[i])
	}

	out.Costs.Property = roundCost(out.Costs.Property, round)
	for i := range out.Costs.SubMeters {
		out.Costs.SubMeters[i] = roundCost(out.Costs.SubMeters[i], round)
	}
	out.Costs.TotalStandingCharge = round(out.Costs.TotalStandingCharge)
	out.Costs.Total = round(out.Costs.Total)
	return out
}

func roundCost(c MeterCost, round func(float64) float64) MeterCost {
	c.Usage = round(c.Usage)
	c.EnergyCost = round(c.EnergyCost)
	c.StandingCharge = round(c.StandingCharge)
	c.Total = round(c.Total)
	return c
}
