package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/memstore"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		prior   []string
		want    []contracts.ChangeEvent
	}{
		{
			name:    "one in one out",
			current: []string{"B", "C", "D"},
			prior:   []string{"A", "B", "C"},
			want: []contracts.ChangeEvent{
				{Date: "d", Ticker: "D", Event: contracts.EventEntry},
				{Date: "d", Ticker: "A", Event: contracts.EventExit},
			},
		},
		{
			name:    "identical sets",
			current: []string{"B", "C", "D"},
			prior:   []string{"D", "C", "B"},
			want:    []contracts.ChangeEvent{},
		},
		{
			name:    "no predecessor",
			current: []string{"A"},
			prior:   nil,
			want:    nil,
		},
		{
			name:    "sorted within groups",
			current: []string{"Z", "M", "A"},
			prior:   []string{"Y", "B"},
			want: []contracts.ChangeEvent{
				{Date: "d", Ticker: "A", Event: contracts.EventEntry},
				{Date: "d", Ticker: "M", Event: contracts.EventEntry},
				{Date: "d", Ticker: "Z", Event: contracts.EventEntry},
				{Date: "d", Ticker: "B", Event: contracts.EventExit},
				{Date: "d", Ticker: "Y", Event: contracts.EventExit},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect("d", tt.current, tt.prior))
		})
	}
}

func TestDetectSymmetry(t *testing.T) {
	forward := Detect("d", []string{"B", "C", "D"}, []string{"A", "B", "C"})
	backward := Detect("d", []string{"A", "B", "C"}, []string{"B", "C", "D"})

	require.Len(t, forward, 2)
	require.Len(t, backward, 2)
	assert.Equal(t, forward[0].Ticker, backward[1].Ticker)
	assert.Equal(t, forward[1].Ticker, backward[0].Ticker)
}

func TestReplayChangesMatchesBuild(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedScenario(t, store)

	_, err := newTestBuilder(store, 2).Build(ctx, contracts.DateRange{Start: "2024-01-02", End: "2024-01-04"})
	require.NoError(t, err)

	replayed, err := ReplayChanges(ctx, store, []string{"2024-01-02", "2024-01-03", "2024-01-04"})
	require.NoError(t, err)

	assert.Equal(t, []contracts.ChangeEvent{
		{Date: "2024-01-03", Ticker: "GOOG", Event: contracts.EventEntry},
		{Date: "2024-01-03", Ticker: "MSFT", Event: contracts.EventExit},
	}, replayed)
}

func TestDiffLedgers(t *testing.T) {
	a := contracts.ChangeEvent{Date: "d1", Ticker: "A", Event: contracts.EventEntry}
	b := contracts.ChangeEvent{Date: "d1", Ticker: "B", Event: contracts.EventExit}
	c := contracts.ChangeEvent{Date: "d2", Ticker: "C", Event: contracts.EventEntry}

	missing, unexpected := DiffLedgers([]contracts.ChangeEvent{a, b}, []contracts.ChangeEvent{b, c})
	assert.Equal(t, []contracts.ChangeEvent{a}, missing)
	assert.Equal(t, []contracts.ChangeEvent{c}, unexpected)

	missing, unexpected = DiffLedgers([]contracts.ChangeEvent{a}, []contracts.ChangeEvent{a})
	assert.Empty(t, missing)
	assert.Empty(t, unexpected)
}
