// Package ts provides the clock used to stamp matches.
package ts

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock wraps a clockwork.Clock so that every timestamp we store has the same
// shape.
type Clock struct {
	realClock clockwork.Clock
}

func NewRealClock() *Clock {
	return NewClock(clockwork.NewRealClock())
}

// NewClock wraps any clockwork clock, usually a fake one in tests.
func NewClock(c clockwork.Clock) *Clock {
	return &Clock{realClock: c}
}

// Now provides a UTC timestamp truncated to the millisecond, which survives a
// round trip through timestamptz and JSON unchanged.
func (c *Clock) Now() time.Time {
	return c.realClock.Now().UTC().Truncate(time.Millisecond)
}

func (c *Clock) RealClock() clockwork.Clock {
	return c.realClock
}
