package contracts

import (
	"fmt"
	"time"
)

// DateLayout is the only date format accepted at API and cache boundaries
const DateLayout = "2006-01-02"

// DateRange is an inclusive [Start, End] range of ISO dates.
// An empty End means open-ended.
type DateRange struct {
	Start string `json:"start_date"`
	End   string `json:"end_date,omitempty"`
}

// ParseDate parses an ISO date, reporting failures against field
func ParseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ValidationError{Field: field, Message: "is required"}
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: fmt.Sprintf("must be a date in YYYY-MM-DD format, got %q", value)}
	}
	return t, nil
}

// NewDateRange validates and builds a range
func NewDateRange(start, end string) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks both bounds and their order
func (r DateRange) Validate() error {
	startT, err := ParseDate("start_date", r.Start)
	if err != nil {
		return err
	}
	if r.End == "" {
		return nil
	}
	endT, err := ParseDate("end_date", r.End)
	if err != nil {
		return err
	}
	if endT.Before(startT) {
		return &ValidationError{Field: "end_date", Message: fmt.Sprintf("must not be before start_date (%s)", r.Start)}
	}
	return nil
}

// Resolve closes an open-ended range at today's date in now's location
func (r DateRange) Resolve(now time.Time) DateRange {
	if r.End == "" {
		r.End = now.Format(DateLayout)
	}
	return r
}

func (r DateRange) String() string {
	end := r.End
	if end == "" {
		end = "open"
	}
	return fmt.Sprintf("[%s, %s]", r.Start, end)
}
