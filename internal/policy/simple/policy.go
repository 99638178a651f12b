// Package simple contains the permissive pacing policy used when rate
// limiting is disabled.
package simple

import "context"

// Policy admits every fetch immediately.
type Policy struct{}

// New creates a new Policy.
func New() *Policy {
	return &Policy{}
}

// Wait returns right away; only a canceled context stops the fetch.
func (Policy) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
