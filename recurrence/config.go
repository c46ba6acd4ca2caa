package recurrence

// DefaultHorizonMonths bounds how far past the reference time occurrence
// generation looks. Recurring rules are conceptually unbounded; the horizon
// keeps output size and compute cost bounded regardless of rule age or how
// far untilDate/maxOccurrences would otherwise extend. Callers needing
// occurrences beyond it re-invoke with a later reference time.
const DefaultHorizonMonths = 18

// Config holds generation settings for an Engine.
type Config struct {
	// HorizonMonths caps the generation window, measured in calendar months
	// from the reference time. Zero or negative falls back to the default.
	HorizonMonths int
}

// DefaultConfig provides the production defaults.
var DefaultConfig = Config{
	HorizonMonths: DefaultHorizonMonths,
}
