// Package recurrence turns authored schedule rules ("every 2 weeks on
// Tue/Thu at 18:00, organization-local time") into concrete, timezone-correct
// occurrence lists bounded by a generation horizon, and reconciles them with
// sparse persisted deviations (skips, overrides, manual sessions).
//
// Occurrences derived from rules are never stored: they are a pure,
// deterministic projection of the rule over a bounded window, recomputed per
// query. The deterministic source key joins a generated occurrence to any
// exception recorded against it, so persisted deviations survive
// regeneration.
package recurrence
