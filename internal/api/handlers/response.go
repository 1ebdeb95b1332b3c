package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

// Error codes returned in APIError.ErrorCode
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeAlreadyBuilt        = "ALREADY_BUILT"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

// APIError is the body of every non-2xx response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// toAPIError maps domain errors onto HTTP statuses
func toAPIError(err error) APIError {
	var (
		validation *contracts.ValidationError
		built      *contracts.AlreadyBuiltError
	)

	switch {
	case errors.As(err, &validation):
		return APIError{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  CodeValidationFailed,
			Message:    validation.Error(),
			Details:    map[string]string{"field": validation.Field},
		}
	case errors.As(err, &built):
		return APIError{
			StatusCode: http.StatusConflict,
			ErrorCode:  CodeAlreadyBuilt,
			Message:    built.Error(),
			Details: map[string]interface{}{
				"start_date":    built.Range.Start,
				"end_date":      built.Range.End,
				"existing_rows": built.ExistingRows,
			},
		}
	case errors.Is(err, contracts.ErrUpstreamUnavailable):
		return APIError{
			StatusCode: http.StatusServiceUnavailable,
			ErrorCode:  CodeUpstreamUnavailable,
			Message:    err.Error(),
		}
	default:
		return APIError{
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  CodeInternal,
			Message:    "internal server error",
		}
	}
}

// respondError writes err as an APIError. Server-side failures are logged.
func respondError(w http.ResponseWriter, log *logger.Logger, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.WithError(err).WithField("error_code", apiErr.ErrorCode).Error("Request failed")
	}
	respondJSON(w, apiErr.StatusCode, apiErr)
}

// NotFound answers unmatched routes with an APIError
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, APIError{
		StatusCode: http.StatusNotFound,
		ErrorCode:  CodeNotFound,
		Message:    "route not found: " + r.Method + " " + r.URL.Path,
	})
}
