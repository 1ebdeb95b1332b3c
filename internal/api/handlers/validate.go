package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/eqindex/internal/contracts"
)

// validate is shared by every handler; validator caches struct metadata
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(contracts.DateLayout, fl.Field().String())
		return err == nil
	})

	return v
}

// mustRegister panics when a custom tag cannot be registered
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// validateStruct reports the first failing field as a *contracts.ValidationError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "isodate":
		msg = fmt.Sprintf("must be a date in YYYY-MM-DD format, got %q", fe.Value())
	case "min":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		msg = fmt.Sprintf("must be at most %s", fe.Param())
	default:
		msg = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return &contracts.ValidationError{Field: fe.Field(), Message: msg}
}

// decodeBody decodes a JSON body into dst and validates it. An empty body
// decodes as the zero value.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return &contracts.ValidationError{Field: "body", Message: "must be valid JSON: " + err.Error()}
		}
	}
	return validateStruct(dst)
}

// RangeRequest is the body or query of every date range endpoint
type RangeRequest struct {
	StartDate string `json:"start_date" validate:"required,isodate"`
	EndDate   string `json:"end_date" validate:"omitempty,isodate"`
}

// DateRange converts a validated request into a checked range
func (req RangeRequest) DateRange() (contracts.DateRange, error) {
	return contracts.NewDateRange(req.StartDate, req.EndDate)
}

func rangeFromQuery(r *http.Request) (contracts.DateRange, error) {
	q := r.URL.Query()
	req := RangeRequest{StartDate: q.Get("start_date"), EndDate: q.Get("end_date")}
	if err := validateStruct(req); err != nil {
		return contracts.DateRange{}, err
	}
	return req.DateRange()
}

func rangeFromBody(r *http.Request) (contracts.DateRange, error) {
	var req RangeRequest
	if err := decodeBody(r, &req); err != nil {
		return contracts.DateRange{}, err
	}
	return req.DateRange()
}
