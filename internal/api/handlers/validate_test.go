package handlers

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
)

func TestMustRegisterPanicsOnBadTag(t *testing.T) {
	v := validator.New()
	ok := func(validator.FieldLevel) bool { return true }

	assert.Panics(t, func() { mustRegister(v, "", ok) })
	assert.Panics(t, func() { mustRegister(v, "isodate", nil) })
	assert.NotPanics(t, func() { mustRegister(v, "always", ok) })
}

func TestValidateStructISODate(t *testing.T) {
	tests := []struct {
		name  string
		req   RangeRequest
		field string
	}{
		{name: "valid", req: RangeRequest{StartDate: "2024-01-02", EndDate: "2024-01-31"}},
		{name: "open end", req: RangeRequest{StartDate: "2024-01-02"}},
		{name: "missing start", req: RangeRequest{}, field: "start_date"},
		{name: "bad start", req: RangeRequest{StartDate: "01/02/2024"}, field: "start_date"},
		{name: "bad end", req: RangeRequest{StartDate: "2024-01-02", EndDate: "2024-13-01"}, field: "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStruct(tt.req)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}

			var ve *contracts.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
