package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

// ErrUnavailable is returned by the noop renderer for every fetch.
var ErrUnavailable = errors.New("headless rendering unavailable")

// Noop stands in for the renderer when Chrome cannot be started. Every
// escalation attempt fails, which sends the engine back to the statically
// fetched page.
type Noop struct{}

// NewNoop returns the stand-in renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always reports ErrUnavailable.
func (Noop) Fetch(context.Context, harvest.FetchRequest) (harvest.FetchResponse, error) {
	return harvest.FetchResponse{}, ErrUnavailable
}
