// Package system provides a real clock implementation.
package system

import "time"

// Clock implements harvest.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the elapsed wall time since t.
func (c Clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
