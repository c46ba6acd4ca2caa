// Demo of the schedule engine: seed a store with a biweekly program rule,
// print the merged view, skip one session, add a manual one, then emit the
// public iCalendar feed.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/clubsitehq/schedkit/feed"
	"github.com/clubsitehq/schedkit/planner"
	"github.com/clubsitehq/schedkit/recurrence"
	"github.com/clubsitehq/schedkit/storage"
	"github.com/clubsitehq/schedkit/storage/memory"
)

func main() {
	ctx := context.Background()
	store := memory.New()

	rule := recurrence.Rule{
		ID:            "youth-chess",
		ProgramNodeID: "node-42",
		Title:         "Youth Chess Club",
		Timezone:      "America/New_York",
		Active:        true,
		Mode:          recurrence.ModeRecurring,
		StartDate:     "2024-01-02",
		StartTime:     "18:00",
		EndTime:       "19:30",
		IntervalCount: 2,
		IntervalUnit:  recurrence.UnitWeek,
		ByWeekday:     []int{2, 4}, // Tue, Thu
		EndMode:       recurrence.EndUntilDate,
		UntilDate:     "2024-02-29",
	}
	if err := store.PutRule(ctx, rule); err != nil {
		log.Fatal(err)
	}

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	p := planner.New(store,
		planner.WithClock(clock),
		planner.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
	)
	defer p.Close()

	scope := storage.Scope{ProgramNodeID: "node-42"}

	occs, err := p.Occurrences(ctx, scope)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("generated sessions:")
	for _, occ := range occs {
		fmt.Printf("  %s %s-%s (%s)\n", occ.LocalDate, occ.LocalStartTime, occ.LocalEndTime, occ.SourceType)
	}

	// Skip the first session and add an ad-hoc one.
	if err := p.Skip(ctx, rule.ID, occs[0].SourceKey); err != nil {
		log.Fatal(err)
	}
	if _, err := p.CreateManual(ctx, planner.ManualSession{
		ProgramNodeID: "node-42",
		Title:         "Chess Tournament",
		Timezone:      "America/New_York",
		LocalDate:     "2024-01-27",
		StartTime:     "10:00",
		EndTime:       "16:00",
	}); err != nil {
		log.Fatal(err)
	}

	occs, err = p.Occurrences(ctx, scope)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("after skip + manual session:")
	for _, occ := range occs {
		fmt.Printf("  %s %s-%s (%s)\n", occ.LocalDate, occ.LocalStartTime, occ.LocalEndTime, occ.SourceType)
	}

	if err := feed.Encode(os.Stdout, "Youth Chess Club", occs); err != nil {
		log.Fatal(err)
	}
}
