// Package timer holds the timer record model and the text-to-time grammar
// set that turns free-form chat input into a scheduled instant.
package timer

import "time"

// Record is the unit of scheduling: a request to notify a chat at a
// specific future UTC instant. Records are immutable once created; the
// only mutation is deletion after dispatch.
type Record struct {
	// ID is assigned by the store on creation (zero until then).
	ID int64
	// ChatID is the destination chat that requested the timer. Parsers
	// leave it zero; the router binds it before persisting.
	ChatID    int64
	CreatedAt time.Time
	NotifyAt  time.Time
	// Label is the optional #tag suffix; empty means no label.
	Label string
	// SourceText is the raw input that produced this timer, retained for
	// re-suggestion keyboards.
	SourceText string
}

// Parser is one self-contained grammar variant. Implementations are pure
// and safe for concurrent use.
type Parser interface {
	// Examples returns a small fixed set of example inputs for
	// onboarding/help text.
	Examples() []string
	// Parse interprets text as a point in time plus an optional label.
	// The returned Record has CreatedAt=now, NotifyAt resolved in UTC, and
	// no ID/ChatID bound. ok=false means the input did not match this
	// grammar; malformed-but-similar input also reports ok=false, never an
	// error.
	Parse(text string, loc *time.Location, now time.Time) (rec Record, ok bool)
}
