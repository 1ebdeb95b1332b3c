package database

import (
	"fmt"
	"time"
)

// DateLayout is how DATE columns are exchanged with callers
const DateLayout = "2006-01-02"

// DateArg converts an ISO date string into a query parameter
func DateArg(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// OptionalDateArg is DateArg for open bounds: "" becomes SQL NULL
func OptionalDateArg(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := DateArg(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatDate renders a scanned DATE column
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
