package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/eqindex/internal/contracts"
)

// Detect diffs two constituent sets.
// ENTRY events come first, then EXIT events, each sorted by ticker.
// A nil prior means date has no predecessor and yields no events.
func Detect(date string, current, prior []string) []contracts.ChangeEvent {
	if prior == nil {
		return nil
	}

	inCurrent := toSet(current)
	inPrior := toSet(prior)

	var entries, exits []string
	for t := range inCurrent {
		if _, ok := inPrior[t]; !ok {
			entries = append(entries, t)
		}
	}
	for t := range inPrior {
		if _, ok := inCurrent[t]; !ok {
			exits = append(exits, t)
		}
	}
	sort.Strings(entries)
	sort.Strings(exits)

	events := make([]contracts.ChangeEvent, 0, len(entries)+len(exits))
	for _, t := range entries {
		events = append(events, contracts.ChangeEvent{Date: date, Ticker: t, Event: contracts.EventEntry})
	}
	for _, t := range exits {
		events = append(events, contracts.ChangeEvent{Date: date, Ticker: t, Event: contracts.EventExit})
	}
	return events
}

func toSet(tickers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		set[t] = struct{}{}
	}
	return set
}

// CompositionHistory reads stored constituents by date
type CompositionHistory interface {
	TickersInComposition(ctx context.Context, date string) ([]string, error)
}

// ReplayChanges recomputes the change ledger for ascending dates from stored
// compositions. Nothing is written.
func ReplayChanges(ctx context.Context, history CompositionHistory, dates []string) ([]contracts.ChangeEvent, error) {
	var events []contracts.ChangeEvent
	var prior []string

	for _, date := range dates {
		current, err := history.TickersInComposition(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("failed to load composition for %s: %w", date, err)
		}
		if len(current) == 0 {
			continue
		}
		events = append(events, Detect(date, current, prior)...)
		prior = current
	}
	return events, nil
}

// DiffLedgers compares an expected ledger with a stored one
func DiffLedgers(expected, stored []contracts.ChangeEvent) (missing, unexpected []contracts.ChangeEvent) {
	key := func(e contracts.ChangeEvent) string {
		return e.Date + "|" + string(e.Event) + "|" + e.Ticker
	}

	storedSet := make(map[string]int, len(stored))
	for _, e := range stored {
		storedSet[key(e)]++
	}
	for _, e := range expected {
		k := key(e)
		if storedSet[k] > 0 {
			storedSet[k]--
			continue
		}
		missing = append(missing, e)
	}

	expectedSet := make(map[string]int, len(expected))
	for _, e := range expected {
		expectedSet[key(e)]++
	}
	for _, e := range stored {
		k := key(e)
		if expectedSet[k] > 0 {
			expectedSet[k]--
			continue
		}
		unexpected = append(unexpected, e)
	}
	return missing, unexpected
}
