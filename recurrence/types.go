package recurrence

import (
	"fmt"
	"time"
)

// Mode selects how a rule's candidate dates are computed.
type Mode string

const (
	// ModeRecurring is the interval-based default: every N days, weeks or
	// months from the start date. An empty mode is treated as recurring.
	ModeRecurring             Mode = "recurring"
	ModeSingleDate            Mode = "single_date"
	ModeMultipleSpecificDates Mode = "multiple_specific_dates"
	ModeContinuousDateRange   Mode = "continuous_date_range"
	// ModeCustomAdvanced is reserved for future rule shapes; it currently
	// behaves exactly like ModeMultipleSpecificDates.
	ModeCustomAdvanced Mode = "custom_advanced"
)

// IntervalUnit is the step unit for interval-based rules.
type IntervalUnit string

const (
	UnitDay   IntervalUnit = "day"
	UnitWeek  IntervalUnit = "week"
	UnitMonth IntervalUnit = "month"
)

// EndMode determines how a rule's generation window is bounded.
type EndMode string

const (
	// EndOpenEnded leaves the rule bounded only by the generation horizon.
	EndOpenEnded        EndMode = ""
	EndUntilDate        EndMode = "until_date"
	EndAfterOccurrences EndMode = "after_occurrences"
)

// SourceType distinguishes how an occurrence entered the effective set.
type SourceType string

const (
	SourceRule     SourceType = "rule"
	SourceManual   SourceType = "manual"
	SourceOverride SourceType = "override"
)

// ExceptionKind is the type of deviation an exception records.
type ExceptionKind string

const (
	ExceptionSkip     ExceptionKind = "skip"
	ExceptionOverride ExceptionKind = "override"
)

// StatusScheduled is the default status for generated occurrences.
const StatusScheduled = "scheduled"

// Rule is an authored recurrence definition. It is pure configuration and
// owns no generated occurrences: regenerating from the same rule at the same
// reference time is idempotent and deterministic.
//
// Dates are local calendar dates in YYYY-MM-DD form, times are 24-hour HH:MM,
// both interpreted in the rule's IANA timezone.
type Rule struct {
	ID            string `json:"id" validate:"required"`
	ProgramNodeID string `json:"program_node_id,omitempty"`
	Title         string `json:"title"`
	Timezone      string `json:"timezone" validate:"required,timezone"`
	Active        bool   `json:"is_active"`
	Mode          Mode   `json:"mode,omitempty"`

	// StartDate is conceptually required; when absent the rule starts on the
	// reference date passed to generation.
	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	StartTime string `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`

	IntervalCount int          `json:"interval_count,omitempty" validate:"omitempty,min=1"`
	IntervalUnit  IntervalUnit `json:"interval_unit,omitempty"`
	// ByWeekday holds weekday numbers (0 = Sunday) for weekly intervals.
	ByWeekday []int `json:"by_weekday,omitempty" validate:"omitempty,dive,min=0,max=6"`
	// ByMonthday holds days of month (1-31) for monthly intervals.
	ByMonthday []int `json:"by_monthday,omitempty" validate:"omitempty,dive,min=1,max=31"`

	EndMode        EndMode `json:"end_mode,omitempty"`
	UntilDate      string  `json:"until_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MaxOccurrences int     `json:"max_occurrences,omitempty" validate:"omitempty,min=1"`

	// SpecificDates is the explicit date list used by the
	// multiple_specific_dates and custom_advanced modes.
	SpecificDates []string `json:"specific_dates,omitempty" validate:"omitempty,dive,datetime=2006-01-02"`
}

// Metadata records generation provenance for an occurrence.
type Metadata struct {
	Mode        Mode      `json:"mode,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Occurrence is one concrete session instance, either derived from a rule or
// created manually. Rule-sourced occurrences are values recomputed per query,
// not persisted rows; SourceKey is their only stable identity.
type Occurrence struct {
	SourceKey     string     `json:"source_key"`
	SourceType    SourceType `json:"source_type"`
	SourceRuleID  string     `json:"source_rule_id,omitempty"`
	ProgramNodeID string     `json:"program_node_id,omitempty"`
	Title         string     `json:"title"`
	Timezone      string     `json:"timezone"`

	// Wall-clock fields for human display.
	LocalDate      string `json:"local_date"`
	LocalStartTime string `json:"local_start_time"`
	LocalEndTime   string `json:"local_end_time"`

	// Absolute instants for ordering and filtering. EndsAtUTC is always
	// strictly after StartsAtUTC.
	StartsAtUTC time.Time `json:"starts_at_utc"`
	EndsAtUTC   time.Time `json:"ends_at_utc"`

	Status   string   `json:"status"`
	Metadata Metadata `json:"metadata"`
}

// Exception is a persisted sparse deviation from a rule's generated output,
// joined to the occurrence it modifies by source key. A skip removes the
// occurrence; an override replaces its display fields.
type Exception struct {
	ID        string        `json:"id"`
	RuleID    string        `json:"rule_id"`
	SourceKey string        `json:"source_key"`
	Kind      ExceptionKind `json:"kind"`

	// Override payload; unused for skips.
	Title     string `json:"title,omitempty"`
	StartTime string `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
}

// SourceKey builds the deterministic identity of a rule-generated occurrence.
// It is stable across regenerations of the same rule for the same date, time
// and zone, and is the join key exceptions are recorded against. An empty
// start time marks an all-day occurrence.
func SourceKey(ruleID, localDate, localStartTime, timezone string) string {
	start := localStartTime
	if start == "" {
		start = "all-day"
	}
	return fmt.Sprintf("rule:%s:%s:%s:%s", ruleID, localDate, start, timezone)
}
