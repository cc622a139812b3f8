package billing

import "strings"

// SplitKind enumerates standing charge apportionment policies.
type SplitKind int

const (
	// SplitEqual divides the standing charge evenly across the property and every sub-meter.
	SplitEqual SplitKind = iota
	// SplitByUsage divides the standing charge by each party's share of main meter usage.
	SplitByUsage
	// SplitCustom gives the property a fixed percentage and splits the rest evenly across sub-meters.
	SplitCustom
)

const (
	SplitNameEqual  = "equal"
	SplitNameUsage  = "usage"
	SplitNameCustom = "custom"
)

// SplitPolicy is a closed variant: Equal, ByUsage or Custom(percentage).
// The zero value is the Equal policy.
type SplitPolicy struct {
	kind       SplitKind
	percentage float64
}

// EqualSplit returns the Equal policy.
func EqualSplit() SplitPolicy { return SplitPolicy{kind: SplitEqual} }

// UsageSplit returns the ByUsage policy.
func UsageSplit() SplitPolicy { return SplitPolicy{kind: SplitByUsage} }

// CustomSplit returns the Custom policy with the property's share in percent.
func CustomSplit(propertyPercentage float64) SplitPolicy {
	return SplitPolicy{kind: SplitCustom, percentage: propertyPercentage}
}

// Kind returns the policy variant.
func (p SplitPolicy) Kind() SplitKind { return p.kind }

// Percentage returns the property share for Custom, zero otherwise.
func (p SplitPolicy) Percentage() float64 {
	if p.kind != SplitCustom {
		return 0
	}
	return p.percentage
}

// Name returns the policy's textual name.
func (p SplitPolicy) Name() string {
	switch p.kind {
	case SplitByUsage:
		return SplitNameUsage
	case SplitCustom:
		return SplitNameCustom
	default:
		return SplitNameEqual
	}
}

// ParseSplitKind maps a policy name to its kind. Blank names select the Equal default;
// the second result is false for names that are not blank and not recognized.
func ParseSplitKind(name string) (SplitKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SplitNameEqual:
		return SplitEqual, true
	case SplitNameUsage:
		return SplitByUsage, true
	case SplitNameCustom:
		return SplitCustom, true
	default:
		return SplitEqual, false
	}
}
