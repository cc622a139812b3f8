package billing

import "errors"

var (
	// ErrInvariantViolation is returned when the calculator receives input that did not pass validation.
	ErrInvariantViolation = errors.New("billing: invariant violation")
	// ErrDegenerateApportionment is returned when a split policy cannot divide the standing charge.
	ErrDegenerateApportionment = errors.New("billing: degenerate apportionment")
	// ErrEmptyFigure is returned when a numeric field is blank.
	ErrEmptyFigure = errors.New("billing: empty figure")
	// ErrNotANumber is returned when a numeric field cannot be parsed.
	ErrNotANumber = errors.New("billing: not a number")
	// ErrDateFormat is returned when a date does not match DD-MM-YYYY.
	ErrDateFormat = errors.New("billing: invalid date format")
	// ErrInvalidDate is returned when a date matches the pattern but is not a calendar date.
	ErrInvalidDate = errors.New("billing: invalid calendar date")
)
