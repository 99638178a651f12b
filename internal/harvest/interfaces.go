package harvest

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed signals that the queue has been closed and fully drained.
var ErrQueueClosed = errors.New("queue closed")

// PageFetcher fetches a page and returns the body plus metadata. Both the
// plain HTTP client and the headless renderer satisfy it.
type PageFetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RenderDetector decides whether a static response warrants a headless render.
type RenderDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// ImageFetcher retrieves the raw bytes behind one candidate URL, including
// inline data URIs.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (ImageData, error)
}

// Queue provides enqueue/dequeue semantics for candidate tasks. Close marks
// the end of submission; Dequeue returns ErrQueueClosed once the queue is
// closed and drained.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
	Close()
}

// Pool downloads candidates with bounded concurrency. The returned channel
// yields one Outcome per dequeued candidate and closes once every worker has
// drained; after cancellation, queued but unstarted candidates are dropped.
type Pool interface {
	Download(ctx context.Context, dir string, candidates []Candidate) <-chan Outcome
}

// CandidateProcessor turns one queued candidate into its terminal outcome.
type CandidateProcessor interface {
	Process(ctx context.Context, task Task) Outcome
}

// Policy paces image fetches against their origin hosts.
type Policy interface {
	Wait(ctx context.Context, url string) error
}

// ImageStore persists image bytes and run artifacts under the output layout.
type ImageStore interface {
	EnsureLayout(ctx context.Context, domain string) (string, error)
	SaveUnique(ctx context.Context, dir string, name string, data []byte) (string, int64, error)
	WriteReport(ctx context.Context, dir string, name string, data []byte) (string, error)
}

// Hasher computes digests for duplicate detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
