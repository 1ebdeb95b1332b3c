package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/pkg/logger"
)

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failingBackend) InvalidatePrefix(context.Context, string) error {
	return errors.New("connection refused")
}

// gatedBackend holds every Set until release is closed
type gatedBackend struct {
	*Memory
	release chan struct{}
}

func (g *gatedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	<-g.release
	return g.Memory.Set(ctx, key, value, ttl)
}

type point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func TestKey(t *testing.T) {
	key, err := Key("index_performance", "get_performance", Args{"start_date": "2024-01-01", "end_date": "2024-01-31"})
	require.NoError(t, err)
	assert.Equal(t, `index_performance:get_performance:{"end_date":"2024-01-31","start_date":"2024-01-01"}`, key)

	same, err := Key("index_performance", "get_performance", Args{"end_date": "2024-01-31", "start_date": "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, key, same)

	empty, err := Key("index_composition", "list", nil)
	require.NoError(t, err)
	assert.Equal(t, "index_composition:list:{}", empty)
}

func TestFetchCachesResult(t *testing.T) {
	ctx := context.Background()
	rc := New(NewMemory(), time.Hour, logger.Nop(), nil)

	calls := 0
	load := func(context.Context) ([]point, error) {
		calls++
		return []point{{Date: "2024-01-02", Value: 0.01}}, nil
	}

	first, err := Fetch(ctx, rc, "index_performance", "get", Args{"d": 1}, load)
	require.NoError(t, err)
	rc.Wait()
	second, err := Fetch(ctx, rc, "index_performance", "get", Args{"d": 1}, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = Fetch(ctx, rc, "index_performance", "get", Args{"d": 2}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	rc := New(mem, time.Hour, logger.Nop(), nil)

	_, err := Fetch(ctx, rc, "r", "op", nil, func(context.Context) (int, error) {
		return 0, errors.New("store down")
	})
	assert.Error(t, err)
	assert.Zero(t, mem.Len())
}

func TestFetchBackendFailureIsPassThrough(t *testing.T) {
	rc := New(failingBackend{}, time.Hour, logger.Nop(), nil)

	got, err := Fetch(context.Background(), rc, "r", "op", nil, func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	assert.NotPanics(t, func() { rc.InvalidateResources(context.Background(), "r") })
}

func TestFetchCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	rc := New(mem, time.Hour, logger.Nop(), nil)

	key, err := Key("r", "op", nil)
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, key, []byte("not json"), time.Hour))

	got, err := Fetch(ctx, rc, "r", "op", nil, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestNilBackendDisablesCache(t *testing.T) {
	rc := New(nil, time.Hour, logger.Nop(), nil)
	assert.False(t, rc.Enabled())

	calls := 0
	for i := 0; i < 2; i++ {
		_, err := Fetch(context.Background(), rc, "r", "op", nil, func(context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestInvalidateResources(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	rc := New(mem, time.Hour, logger.Nop(), nil)

	require.NoError(t, mem.Set(ctx, "index_performance:get:{}", []byte("1"), 0))
	require.NoError(t, mem.Set(ctx, "index_composition:get:{}", []byte("2"), 0))
	require.NoError(t, mem.Set(ctx, "composition_changes:get:{}", []byte("3"), 0))

	rc.InvalidateResources(ctx, "index_performance", "composition_changes")

	_, found, _ := mem.Get(ctx, "index_performance:get:{}")
	assert.False(t, found)
	_, found, _ = mem.Get(ctx, "composition_changes:get:{}")
	assert.False(t, found)
	_, found, _ = mem.Get(ctx, "index_composition:get:{}")
	assert.True(t, found)
}

func TestFetchDoesNotWaitForCacheWrite(t *testing.T) {
	ctx := context.Background()
	backend := &gatedBackend{Memory: NewMemory(), release: make(chan struct{})}
	rc := New(backend, time.Hour, logger.Nop(), nil)

	start := time.Now()
	got, err := Fetch(ctx, rc, "index_performance", "get", nil, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, backend.Len())

	close(backend.release)
	rc.Wait()

	key, err := Key("index_performance", "get", nil)
	require.NoError(t, err)
	data, found, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "42", string(data))
}

func TestInvalidationWinsOverPendingWrite(t *testing.T) {
	ctx := context.Background()
	backend := &gatedBackend{Memory: NewMemory(), release: make(chan struct{})}
	rc := New(backend, time.Hour, logger.Nop(), nil)

	_, err := Fetch(ctx, rc, "index_performance", "get", nil, func(context.Context) (string, error) { return "stale", nil })
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		rc.InvalidateResources(ctx, "index_performance")
		close(done)
	}()
	close(backend.release)
	<-done
	rc.Wait()

	assert.Zero(t, backend.Len())
}
