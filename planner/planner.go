// Package planner is the view layer over the schedule engine and a Store: it
// loads rules, exceptions and manual occurrences for a scope, generates the
// rule occurrences for a bounded horizon, and merges everything into the
// effective occurrence list consumed by calendar, list and public views. It
// also records the sparse deviations those views create (skip, override,
// restore, manual sessions).
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/clubsitehq/schedkit/recurrence"
	"github.com/clubsitehq/schedkit/storage"
)

// Planner produces merged schedule views and records deviations.
type Planner struct {
	store  storage.Store
	engine *recurrence.Engine
	clock  clockwork.Clock
	logger *slog.Logger
	cache  *viewCache
}

// Option customizes a Planner.
type Option func(*Planner)

// WithEngine replaces the default engine.
func WithEngine(e *recurrence.Engine) Option {
	return func(p *Planner) { p.engine = e }
}

// WithHorizon bounds generation to the given number of months from now.
func WithHorizon(months int) Option {
	return func(p *Planner) {
		p.engine = recurrence.NewWithConfig(recurrence.Config{HorizonMonths: months})
	}
}

// WithClock injects the clock supplying the reference "now" for generation.
// The engine itself never reads a clock; the planner passes an explicit
// reference time into every call.
func WithClock(c clockwork.Clock) Option {
	return func(p *Planner) { p.clock = c }
}

// WithLogger sets the logger for per-rule generation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// WithCache enables the merged-view cache.
func WithCache(cfg CacheConfig) Option {
	return func(p *Planner) { p.cache = newViewCache(cfg) }
}

// New creates a planner over the given store.
func New(store storage.Store, opts ...Option) *Planner {
	p := &Planner{
		store:  store,
		engine: recurrence.New(),
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close releases planner resources (the cache cleanup loop, when enabled).
func (p *Planner) Close() {
	if p.cache != nil {
		p.cache.close()
	}
}

// Occurrences returns the effective occurrence set for the scope: freshly
// generated occurrences of every active rule with exceptions applied, unioned
// with manual occurrences, sorted ascending by start instant. A rule failing
// structural validation is logged and skipped rather than failing the whole
// view.
func (p *Planner) Occurrences(ctx context.Context, scope storage.Scope) ([]recurrence.Occurrence, error) {
	if p.cache != nil {
		if occs, ok := p.cache.get(scope); ok {
			return occs, nil
		}
	}
	now := p.clock.Now()

	rules, err := p.store.ListRules(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	var ruleOccs []recurrence.Occurrence
	ruleIDs := make([]string, 0, len(rules))
	for _, rule := range rules {
		ruleIDs = append(ruleIDs, rule.ID)
		occs, err := p.engine.Generate(rule, now)
		if err != nil {
			var invalid *recurrence.InvalidRuleInputError
			if errors.As(err, &invalid) {
				p.logger.Warn("skipping rule with invalid input",
					"rule_id", rule.ID,
					"field", invalid.Field,
					"reason", invalid.Reason)
				continue
			}
			return nil, fmt.Errorf("generate rule %s: %w", rule.ID, err)
		}
		ruleOccs = append(ruleOccs, occs...)
	}

	exceptions, err := p.store.ListExceptions(ctx, ruleIDs)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	manual, err := p.store.ListManualOccurrences(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list manual occurrences: %w", err)
	}

	merged := recurrence.Merge(ruleOccs, exceptions, manual)
	if p.cache != nil {
		p.cache.set(scope, merged)
	}
	return merged, nil
}

// OccurrencesInWindow returns the scope's effective set narrowed to
// occurrences overlapping [from, to), as consumed by the public schedule
// renderer.
func (p *Planner) OccurrencesInWindow(ctx context.Context, scope storage.Scope, from, to time.Time) ([]recurrence.Occurrence, error) {
	occs, err := p.Occurrences(ctx, scope)
	if err != nil {
		return nil, err
	}
	return recurrence.FilterWindow(occs, from, to), nil
}

// Skip records a skip exception against the occurrence identified by
// sourceKey. The write is an idempotent upsert keyed (ruleID, sourceKey).
func (p *Planner) Skip(ctx context.Context, ruleID, sourceKey string) error {
	err := p.store.UpsertException(ctx, recurrence.Exception{
		ID:        uuid.NewString(),
		RuleID:    ruleID,
		SourceKey: sourceKey,
		Kind:      recurrence.ExceptionSkip,
	})
	if err != nil {
		return fmt.Errorf("record skip: %w", err)
	}
	p.invalidate()
	return nil
}

// OverrideFields carries the display fields an override replaces. Empty
// fields keep the generated value.
type OverrideFields struct {
	Title     string
	StartTime string
	EndTime   string
}

// Override records an override exception replacing the matching occurrence's
// time and title in merged views ("edit this session only"). Malformed HH:MM
// fields are rejected with InvalidRuleInputError before anything is
// persisted; an override the merge could not apply must never be stored.
func (p *Planner) Override(ctx context.Context, ruleID, sourceKey string, fields OverrideFields) error {
	ex := recurrence.Exception{
		ID:        uuid.NewString(),
		RuleID:    ruleID,
		SourceKey: sourceKey,
		Kind:      recurrence.ExceptionOverride,
		Title:     fields.Title,
		StartTime: fields.StartTime,
		EndTime:   fields.EndTime,
	}
	if err := p.engine.ValidateException(ex); err != nil {
		return err
	}
	if err := p.store.UpsertException(ctx, ex); err != nil {
		return fmt.Errorf("record override: %w", err)
	}
	p.invalidate()
	return nil
}

// Restore deletes the exception recorded against sourceKey; the next
// regeneration reproduces the original occurrence unchanged because
// generation is pure and keyed deterministically.
func (p *Planner) Restore(ctx context.Context, ruleID, sourceKey string) error {
	if err := p.store.DeleteException(ctx, ruleID, sourceKey); err != nil {
		return fmt.Errorf("restore occurrence: %w", err)
	}
	p.invalidate()
	return nil
}

// ManualSession describes an ad-hoc session to persist alongside rule output.
type ManualSession struct {
	ProgramNodeID string
	Title         string
	Timezone      string
	LocalDate     string
	StartTime     string
	EndTime       string
}

// CreateManual persists a stand-alone occurrence and returns it.
func (p *Planner) CreateManual(ctx context.Context, session ManualSession) (recurrence.Occurrence, error) {
	occ, err := p.engine.NewManualOccurrence(recurrence.ManualInput{
		ID:            uuid.NewString(),
		ProgramNodeID: session.ProgramNodeID,
		Title:         session.Title,
		Timezone:      session.Timezone,
		LocalDate:     session.LocalDate,
		StartTime:     session.StartTime,
		EndTime:       session.EndTime,
	}, p.clock.Now())
	if err != nil {
		return recurrence.Occurrence{}, err
	}
	if err := p.store.PutManualOccurrence(ctx, occ); err != nil {
		return recurrence.Occurrence{}, fmt.Errorf("persist manual occurrence: %w", err)
	}
	p.invalidate()
	return occ, nil
}

// DeleteManual removes a persisted manual occurrence.
func (p *Planner) DeleteManual(ctx context.Context, sourceKey string) error {
	if err := p.store.DeleteManualOccurrence(ctx, sourceKey); err != nil {
		return fmt.Errorf("delete manual occurrence: %w", err)
	}
	p.invalidate()
	return nil
}

func (p *Planner) invalidate() {
	if p.cache != nil {
		p.cache.invalidateAll()
	}
}
