package billing

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the textual date format of meter readings (DD-MM-YYYY).
const DateLayout = "02-01-2006"

var datePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// ParseDate parses a zero-padded DD-MM-YYYY date at UTC midnight.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if !datePattern.MatchString(value) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, value)
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// CalendarDay truncates t to midnight UTC of its own calendar day.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from prev to curr.
// Both validator and calculator use this count.
func DaysBetween(prev, curr time.Time) int {
	diff := CalendarDay(curr).Sub(CalendarDay(prev))
	return int(math.Round(diff.Hours() / 24))
}
