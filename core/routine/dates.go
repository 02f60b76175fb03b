package routine

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var errInvalidDate = errors.New("must be a date formatted as YYYY-MM-DD")

// ParseDate parses a YYYY-MM-DD date (an RFC 3339 timestamp is truncated to its date) into a calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(core.DateLayout) && s[len(core.DateLayout)] == 'T' {
		s = s[:len(core.DateLayout)]
	}
	d, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return d, nil
}

// ParseDateField is ParseDate returning a core.ValidationError on the named field.
func ParseDateField(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, core.NewFieldError(field, "this field is required")
	}
	d, err := ParseDate(s)
	if err != nil {
		return time.Time{}, core.NewFieldError(field, err.Error())
	}
	return d, nil
}

// CalendarDay drops the clock of t, keeping its year, month and day as a UTC midnight.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(core.DateLayout)
}
