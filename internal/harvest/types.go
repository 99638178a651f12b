// Package harvest defines core types shared across subsystems.
package harvest

import (
	"net/http"
	"time"
)

// Candidate is one image reference discovered on the page, carrying the
// absolute URL (or inline data URI) and its position in discovery order.
type Candidate struct {
	URL   string
	Index int
}

// Task pairs a candidate with the directory the run writes into. Tasks are
// what travels through the queue between the dispatcher and its workers.
type Task struct {
	Candidate Candidate
	Dir       string
}

// OutcomeKind classifies the terminal state of one processed candidate.
type OutcomeKind string

// Outcome kinds recorded per candidate.
const (
	OutcomeSaved     OutcomeKind = "saved"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the terminal result of processing a single candidate. Exactly
// one outcome exists per candidate a worker dequeued.
type Outcome struct {
	Kind     OutcomeKind
	URL      string
	Path     string
	Bytes    int64
	Width    int
	Height   int
	Reason   string
	Duration time.Duration
}

// FetchRequest captures everything needed to fetch the source page.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a PageFetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// ImageData is the raw payload retrieved for one candidate.
type ImageData struct {
	Body        []byte
	ContentType string
}

// Summary aggregates outcome counts for one run.
type Summary struct {
	Saved      int
	Duplicates int
	Failed     int
	Total      int
}

// Report is the final record of a run, rendered to the report file in the
// output directory and returned to the caller.
type Report struct {
	RunID     string
	PageURL   string
	OutputDir string
	Generated time.Time
	Summary   Summary
	Outcomes  []Outcome
	Skipped   int
}
