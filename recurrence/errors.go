package recurrence

import (
	"errors"
	"fmt"
)

// InvalidRuleInputError reports a structurally malformed input field the
// engine cannot interpret: an invalid IANA timezone identifier or a date/time
// string failing format validation. Recurrence-shape edge cases (degenerate
// windows, inactive rules, empty date lists) are not errors; they resolve to
// an empty occurrence list.
type InvalidRuleInputError struct {
	Field  string
	Reason string
}

func (e *InvalidRuleInputError) Error() string {
	return fmt.Sprintf("invalid rule input: %s: %s", e.Field, e.Reason)
}

// ErrNoReferenceTime is returned when a caller passes a zero reference time.
// The engine never reads an ambient clock.
var ErrNoReferenceTime = errors.New("recurrence: reference time required")
