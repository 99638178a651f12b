// Package progress defines the event structures emitted during a run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageRunError       Stage = "RUN_ERROR"
	StagePageFetched    Stage = "PAGE_FETCHED"
	StageImageSaved     Stage = "IMAGE_SAVED"
	StageImageDuplicate Stage = "IMAGE_DUPLICATE"
	StageImageFailed    Stage = "IMAGE_FAILED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page fetches.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of run progress.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or image milestone occurred.
	Stage Stage
	// Site optionally scopes image events to a host label.
	Site string
	// URL is the page or candidate URL; it should not contain credentials.
	URL string
	// Bytes carries the payload size for page fetches and saved images.
	Bytes int64
	// Images counts candidates found (PAGE_FETCHED) or saved (RUN_DONE).
	Images int64
	// StatusClass groups the HTTP response code of the page fetch.
	StatusClass StatusClass
	// Dur captures execution latency for fetches and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePageFetched:
		if e.URL == "" {
			return errors.New("page fetched requires url")
		}
		if e.StatusClass == "" {
			return errors.New("page fetched requires status class")
		}
	case StageImageSaved, StageImageDuplicate, StageImageFailed:
		if e.URL == "" {
			return errors.New("image events require url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for consumers.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for page fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
