// Package storage defines the persistence contract the surrounding
// application implements for schedule rules, exceptions and manual
// occurrences. Rule-generated occurrences are deliberately absent: they are
// recomputed per query and never stored as rows.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/clubsitehq/schedkit/recurrence"
)

// ErrorType classifies storage failures.
type ErrorType string

const (
	ErrNotFound     ErrorType = "not_found"
	ErrInvalidInput ErrorType = "invalid_input"
	ErrUnavailable  ErrorType = "unavailable"
)

// Error represents a storage-related error.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a storage not-found error.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == ErrNotFound
}

// Scope bounds a query to one program node; the zero value means all nodes.
type Scope struct {
	ProgramNodeID string
}

// Store connects a backend store (e.g. the builder's relational database)
// with the schedule engine. Exception upserts must be idempotent, keyed by
// (rule id, source key); manual occurrences are keyed by their source key.
type Store interface {
	// Rule operations. Rules are long-lived configuration.
	GetRule(ctx context.Context, id string) (*recurrence.Rule, error)
	ListRules(ctx context.Context, scope Scope) ([]recurrence.Rule, error)
	PutRule(ctx context.Context, rule recurrence.Rule) error
	DeleteRule(ctx context.Context, id string) error

	// Exception operations. ListExceptions returns the exceptions recorded
	// against any of the given rules.
	ListExceptions(ctx context.Context, ruleIDs []string) ([]recurrence.Exception, error)
	UpsertException(ctx context.Context, ex recurrence.Exception) error
	DeleteException(ctx context.Context, ruleID, sourceKey string) error

	// Manual occurrence operations.
	ListManualOccurrences(ctx context.Context, scope Scope) ([]recurrence.Occurrence, error)
	PutManualOccurrence(ctx context.Context, occ recurrence.Occurrence) error
	DeleteManualOccurrence(ctx context.Context, sourceKey string) error
}
