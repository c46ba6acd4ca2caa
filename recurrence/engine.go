package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Engine materializes bounded occurrence projections from schedule rules. It
// is pure: no I/O, no shared mutable state, no ambient clock. A single Engine
// is safe for concurrent use across rules and organizations.
type Engine struct {
	cfg      Config
	validate *validator.Validate
}

// New creates an engine with the default configuration.
func New() *Engine {
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(cfg Config) *Engine {
	if cfg.HorizonMonths <= 0 {
		cfg.HorizonMonths = DefaultHorizonMonths
	}
	return &Engine{
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// checkStruct maps structural validation failures onto
// InvalidRuleInputError, identifying the first offending field.
func (e *Engine) checkStruct(v any) error {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &InvalidRuleInputError{
			Field:  fe.Field(),
			Reason: fmt.Sprintf("failed %q constraint on value %q", fe.Tag(), fmt.Sprint(fe.Value())),
		}
	}
	return err
}

func (e *Engine) checkRule(rule Rule) error {
	return e.checkStruct(rule)
}

// ValidateException checks an exception's override payload before it is
// persisted. Malformed HH:MM values yield InvalidRuleInputError naming the
// field; the merge itself stays silent and ignores payloads it cannot apply.
func (e *Engine) ValidateException(ex Exception) error {
	return e.checkStruct(ex)
}

// timeBounds is a rule's normalized time-of-day span in minutes since local
// midnight.
type timeBounds struct {
	startMin int
	endMin   int
	allDay   bool
}

// normalizeBounds resolves the optional HH:MM bounds. No times at all means
// the occurrence spans the whole local day (00:00-23:59, a deliberate
// approximation of the day boundary); a lone start time gets a one-hour
// duration, wrapping past midnight; a lone end time starts at midnight.
// Inputs are format-validated before this is called.
func normalizeBounds(startTime, endTime string) timeBounds {
	switch {
	case startTime == "" && endTime == "":
		return timeBounds{startMin: 0, endMin: minutesPerDay - 1, allDay: true}
	case endTime == "":
		start, _ := parseClock(startTime)
		return timeBounds{startMin: start, endMin: (start + 60) % minutesPerDay}
	case startTime == "":
		end, _ := parseClock(endTime)
		return timeBounds{startMin: 0, endMin: end}
	default:
		start, _ := parseClock(startTime)
		end, _ := parseClock(endTime)
		return timeBounds{startMin: start, endMin: end}
	}
}

// Generate materializes the rule's occurrences within the horizon measured
// from now. Inactive rules and rules whose shape matches no dates yield an
// empty list with no error; only structurally malformed input fails.
func (e *Engine) Generate(rule Rule, now time.Time) ([]Occurrence, error) {
	if now.IsZero() {
		return nil, ErrNoReferenceTime
	}
	// Inactive rules yield an empty list before any structural check; a
	// disabled rule never fails a view regardless of its shape.
	if !rule.Active {
		return nil, nil
	}
	if err := e.checkRule(rule); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return nil, &InvalidRuleInputError{Field: "Timezone", Reason: err.Error()}
	}

	dates := e.candidateDates(rule, now, loc)
	if len(dates) == 0 {
		return nil, nil
	}

	bounds := normalizeBounds(rule.StartTime, rule.EndTime)
	keyStart := ""
	if !bounds.allDay {
		keyStart = minutesToClock(bounds.startMin)
	}

	mode := rule.Mode
	if mode == "" {
		mode = ModeRecurring
	}
	meta := Metadata{Mode: mode, GeneratedAt: now.UTC()}

	occs := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		startsAt := localToInstant(d, bounds.startMin, loc)
		endsAt := localToInstant(d, bounds.endMin, loc)
		// End strictly after start, unconditionally: a wrapped or malformed
		// explicit end falls back to one hour.
		if !endsAt.After(startsAt) {
			endsAt = startsAt.Add(time.Hour)
		}

		occs = append(occs, Occurrence{
			SourceKey:      SourceKey(rule.ID, d.String(), keyStart, rule.Timezone),
			SourceType:     SourceRule,
			SourceRuleID:   rule.ID,
			ProgramNodeID:  rule.ProgramNodeID,
			Title:          rule.Title,
			Timezone:       rule.Timezone,
			LocalDate:      d.String(),
			LocalStartTime: minutesToClock(bounds.startMin),
			LocalEndTime:   minutesToClock(bounds.endMin),
			StartsAtUTC:    startsAt,
			EndsAtUTC:      endsAt,
			Status:         StatusScheduled,
			Metadata:       meta,
		})
	}
	return occs, nil
}

// ManualInput describes a stand-alone occurrence not generated from any rule.
type ManualInput struct {
	ID            string `validate:"required"`
	ProgramNodeID string
	Title         string
	Timezone      string `validate:"required,timezone"`
	LocalDate     string `validate:"required,datetime=2006-01-02"`
	StartTime     string `validate:"omitempty,datetime=15:04"`
	EndTime       string `validate:"omitempty,datetime=15:04"`
}

// NewManualOccurrence materializes a manual occurrence with the same
// time-bound normalization as rule generation. Manual occurrences are
// persisted directly and merged into views unchanged, under a
// "manual:<id>" source key.
func (e *Engine) NewManualOccurrence(in ManualInput, now time.Time) (Occurrence, error) {
	if now.IsZero() {
		return Occurrence{}, ErrNoReferenceTime
	}
	if err := e.checkStruct(in); err != nil {
		return Occurrence{}, err
	}
	loc, err := time.LoadLocation(in.Timezone)
	if err != nil {
		return Occurrence{}, &InvalidRuleInputError{Field: "Timezone", Reason: err.Error()}
	}
	d, err := ParseDate(in.LocalDate)
	if err != nil {
		return Occurrence{}, &InvalidRuleInputError{Field: "LocalDate", Reason: err.Error()}
	}

	bounds := normalizeBounds(in.StartTime, in.EndTime)
	startsAt := localToInstant(d, bounds.startMin, loc)
	endsAt := localToInstant(d, bounds.endMin, loc)
	if !endsAt.After(startsAt) {
		endsAt = startsAt.Add(time.Hour)
	}

	return Occurrence{
		SourceKey:      "manual:" + in.ID,
		SourceType:     SourceManual,
		ProgramNodeID:  in.ProgramNodeID,
		Title:          in.Title,
		Timezone:       in.Timezone,
		LocalDate:      d.String(),
		LocalStartTime: minutesToClock(bounds.startMin),
		LocalEndTime:   minutesToClock(bounds.endMin),
		StartsAtUTC:    startsAt,
		EndsAtUTC:      endsAt,
		Status:         StatusScheduled,
		Metadata:       Metadata{GeneratedAt: now.UTC()},
	}, nil
}
