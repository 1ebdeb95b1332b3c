package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateArgs(t *testing.T) {
	d, err := DateArg("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", FormatDate(d))

	_, err = DateArg("2024/01/02")
	assert.Error(t, err)

	open, err := OptionalDateArg("")
	require.NoError(t, err)
	assert.Nil(t, open)

	closed, err := OptionalDateArg("2024-02-29")
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, "2024-02-29", FormatDate(*closed))
}
