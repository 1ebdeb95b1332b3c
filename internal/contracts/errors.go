package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyBuilt is matched by *AlreadyBuiltError
	ErrAlreadyBuilt = errors.New("index already built")
	// ErrUpstreamUnavailable is matched by *UpstreamError
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError reports malformed input against the offending field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// AlreadyBuiltError is returned when performance rows already exist in a range
type AlreadyBuiltError struct {
	Range        DateRange
	ExistingRows int
}

func (e *AlreadyBuiltError) Error() string {
	return fmt.Sprintf("index already built for %s (%d performance rows exist)", e.Range, e.ExistingRows)
}

func (e *AlreadyBuiltError) Is(target error) bool {
	return target == ErrAlreadyBuilt
}

// UpstreamError wraps a failure of the store or an external data source
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// IsValidation reports whether err carries a *ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
