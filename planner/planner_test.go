package planner

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubsitehq/schedkit/recurrence"
	"github.com/clubsitehq/schedkit/storage"
	"github.com/clubsitehq/schedkit/storage/memory"
)

var testNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func seedRule(t *testing.T, store *memory.Store) recurrence.Rule {
	t.Helper()
	rule := recurrence.Rule{
		ID: "r1", ProgramNodeID: "node-1", Title: "Practice",
		Timezone: "UTC", Active: true,
		StartDate:     "2024-01-02",
		StartTime:     "18:00",
		EndTime:       "19:00",
		IntervalCount: 1,
		IntervalUnit:  recurrence.UnitWeek,
		ByWeekday:     []int{2},
		EndMode:       recurrence.EndUntilDate,
		UntilDate:     "2024-01-31",
	}
	require.NoError(t, store.PutRule(context.Background(), rule))
	return rule
}

func newTestPlanner(t *testing.T, store *memory.Store, opts ...Option) *Planner {
	t.Helper()
	opts = append([]Option{WithClock(clockwork.NewFakeClockAt(testNow))}, opts...)
	p := New(store, opts...)
	t.Cleanup(p.Close)
	return p
}

func TestOccurrencesEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := seedRule(t, store)
	p := newTestPlanner(t, store)

	scope := storage.Scope{ProgramNodeID: "node-1"}

	occs, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	require.Len(t, occs, 5) // Tuesdays Jan 2, 9, 16, 23, 30

	// Skip one session.
	skipped := occs[1]
	require.NoError(t, p.Skip(ctx, rule.ID, skipped.SourceKey))

	occs, err = p.Occurrences(ctx, scope)
	require.NoError(t, err)
	require.Len(t, occs, 4)
	for _, occ := range occs {
		assert.NotEqual(t, skipped.SourceKey, occ.SourceKey)
	}

	// Restore it: the occurrence reappears with identical instants.
	require.NoError(t, p.Restore(ctx, rule.ID, skipped.SourceKey))

	occs, err = p.Occurrences(ctx, scope)
	require.NoError(t, err)
	require.Len(t, occs, 5)
	assert.Equal(t, skipped, occs[1])
}

func TestOverrideThenRestore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := seedRule(t, store)
	p := newTestPlanner(t, store)

	scope := storage.Scope{ProgramNodeID: "node-1"}
	occs, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	target := occs[0]

	require.NoError(t, p.Override(ctx, rule.ID, target.SourceKey, OverrideFields{
		Title:     "Practice (guest coach)",
		StartTime: "20:00",
	}))

	occs, err = p.Occurrences(ctx, scope)
	require.NoError(t, err)
	require.Len(t, occs, 5)
	assert.Equal(t, recurrence.SourceOverride, occs[0].SourceType)
	assert.Equal(t, "Practice (guest coach)", occs[0].Title)
	assert.Equal(t, "20:00", occs[0].LocalStartTime)

	require.NoError(t, p.Restore(ctx, rule.ID, target.SourceKey))
	occs, err = p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, target, occs[0])
}

func TestOverrideRejectsMalformedTimes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := seedRule(t, store)
	p := newTestPlanner(t, store)

	scope := storage.Scope{ProgramNodeID: "node-1"}
	before, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	target := before[0]

	// Nothing is persisted and the merged view is untouched.
	err = p.Override(ctx, rule.ID, target.SourceKey, OverrideFields{StartTime: "25:99"})
	var invalid *recurrence.InvalidRuleInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "StartTime", invalid.Field)

	err = p.Override(ctx, rule.ID, target.SourceKey, OverrideFields{EndTime: "7.30pm"})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "EndTime", invalid.Field)

	after, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, recurrence.SourceRule, after[0].SourceType)
}

func TestCreateManualAndWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedRule(t, store)
	p := newTestPlanner(t, store)

	scope := storage.Scope{ProgramNodeID: "node-1"}

	manual, err := p.CreateManual(ctx, ManualSession{
		ProgramNodeID: "node-1",
		Title:         "Tournament",
		Timezone:      "UTC",
		LocalDate:     "2024-01-13",
		StartTime:     "10:00",
		EndTime:       "16:00",
	})
	require.NoError(t, err)
	assert.Equal(t, recurrence.SourceManual, manual.SourceType)

	occs, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	require.Len(t, occs, 6)

	windowed, err := p.OccurrencesInWindow(ctx, scope,
		time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, manual.SourceKey, windowed[0].SourceKey)

	require.NoError(t, p.DeleteManual(ctx, manual.SourceKey))
	occs, err = p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, occs, 5)
}

func TestInvalidRuleIsSkippedNotFatal(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedRule(t, store)
	require.NoError(t, store.PutRule(ctx, recurrence.Rule{
		ID: "broken", ProgramNodeID: "node-1", Timezone: "Mars/Olympus", Active: true,
	}))
	p := newTestPlanner(t, store)

	occs, err := p.Occurrences(ctx, storage.Scope{ProgramNodeID: "node-1"})
	require.NoError(t, err, "one malformed rule must not break the whole view")
	assert.Len(t, occs, 5)
}

func TestWithHorizonBoundsOpenEndedRules(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutRule(ctx, recurrence.Rule{
		ID: "open", ProgramNodeID: "node-1", Title: "Weekly",
		Timezone: "UTC", Active: true,
		StartDate:     "2024-01-02",
		IntervalCount: 1,
		IntervalUnit:  recurrence.UnitWeek,
		ByWeekday:     []int{2},
	}))
	p := newTestPlanner(t, store, WithHorizon(1))

	occs, err := p.Occurrences(ctx, storage.Scope{ProgramNodeID: "node-1"})
	require.NoError(t, err)
	require.Len(t, occs, 5) // Tuesdays through 2024-02-01
	assert.Equal(t, "2024-01-30", occs[len(occs)-1].LocalDate)
}

func TestViewCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := seedRule(t, store)
	p := newTestPlanner(t, store, WithCache(DefaultCacheConfig))

	scope := storage.Scope{ProgramNodeID: "node-1"}

	first, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, CacheStats{TotalEntries: 1, ActiveEntries: 1}, p.CacheStats())

	second, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Writes invalidate cached views.
	require.NoError(t, p.Skip(ctx, rule.ID, first[0].SourceKey))
	assert.Equal(t, CacheStats{}, p.CacheStats())

	third, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, third, len(first)-1)
}

func TestCachedViewIsImmutableToCallers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedRule(t, store)
	p := newTestPlanner(t, store, WithCache(DefaultCacheConfig))

	scope := storage.Scope{ProgramNodeID: "node-1"}

	first, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	first[0].Title = "mutated by caller"

	second, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "Practice", second[0].Title)

	// Mutating a cache hit must not leak into later hits either.
	second[0].Title = "mutated again"
	third, err := p.Occurrences(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "Practice", third[0].Title)
}
