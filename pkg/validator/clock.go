package validator

import "time"

// Clock supplies the single now() captured at the start of validation
// and reused across every stage (spec §4.5, §5, §9) to avoid inter-stage
// clock drift affecting E1/E2.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time { return time.Now() }
