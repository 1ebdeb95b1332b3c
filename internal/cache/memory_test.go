package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := NewMemory()
	mem.now = func() time.Time { return now }

	require.NoError(t, mem.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, mem.Set(ctx, "forever", []byte("b"), 0))

	_, found, _ := mem.Get(ctx, "short")
	assert.True(t, found)

	now = now.Add(2 * time.Minute)

	_, found, _ = mem.Get(ctx, "short")
	assert.False(t, found)
	_, found, _ = mem.Get(ctx, "forever")
	assert.True(t, found)

	assert.Equal(t, 1, mem.Sweep())
	assert.Equal(t, 1, mem.Len())
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	value := []byte("abc")
	require.NoError(t, mem.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, found, err := mem.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _, _ := mem.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}
