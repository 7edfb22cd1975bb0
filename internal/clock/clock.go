// Package clock abstracts the current-time source so parsing and the
// dispatch loop can be tested against a fixed instant.
package clock

import "time"

type Clock interface {
	// Now returns the current instant in UTC.
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant. Test helper.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f).UTC() }
