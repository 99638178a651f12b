package progress

import "context"

// Sink records batches of events somewhere durable or observable. Consume
// may run concurrently with nothing else in this package but must honor the
// ctx deadline; Close is called exactly once when the hub shuts down.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter is the narrow face the pipeline sees: fire one event and move on.
// *Hub implements it; a nil Emitter disables progress reporting entirely.
type Emitter interface {
	Emit(evt Event)
}
