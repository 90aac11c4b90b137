package api

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "2/1/2006 15:04"
	displayLayout  = "02/01/2006 15:04"
	midnightSuffix = " 00:00"
)

// ParseDate parses a day/month/year date with an optional hour:minute part in
// loc. A date without a time of day means midnight. Malformed input returns an
// error wrapping ErrInvalidRange.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidRange)
	}
	if !strings.Contains(s, " ") {
		s += midnightSuffix
	}

	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not dd/mm/yyyy [hh:mm]", ErrInvalidRange, s)
	}
	return t, nil
}

// FormatDate renders t in loc in the layout accepted by ParseDate.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}
