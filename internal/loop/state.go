package loop

import (
	"time"

	"github.com/pagelapse/pagelapse/internal/fingerprint"
)

// RunState is the mutable state of the capture loop: the comparison baseline,
// the consecutive-duplicate counter, and (in the Store) the current segment.
// It is only ever touched by the single active loop step.
type RunState struct {
	// Last is the fingerprint of the most recent non-empty capture, retained
	// or not. Nil until the first non-empty capture (or after a reset).
	Last *fingerprint.Fingerprint

	// DupRun counts consecutive discarded captures since the last retained
	// frame. Empty captures leave it untouched.
	DupRun int
}

// Reset returns the state to its initial value after a compilation.
func (s *RunState) Reset() {
	s.Last = nil
	s.DupRun = 0
}

// Status is a read-only snapshot of the loop for the status surface.
type Status struct {
	URL          string        `json:"url"`
	SegmentLen   int           `json:"segment_len"`
	DupRun       int           `json:"dup_run"`
	LastCapture  time.Time     `json:"last_capture,omitzero"`
	NextDelay    time.Duration `json:"next_delay_ns"`
	Compilations int           `json:"compilations"`
	LastOutput   string        `json:"last_output,omitempty"`
}

// EventType identifies a cycle outcome on the event feed.
type EventType string

const (
	EventEmpty         EventType = "empty"
	EventRetained      EventType = "retained"
	EventDiscarded     EventType = "discarded"
	EventCompiled      EventType = "compiled"
	EventCompileFailed EventType = "compile_failed"
)

// Event describes one cycle or compile outcome.
type Event struct {
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Distance   int       `json:"distance,omitempty"`
	DupRun     int       `json:"dup_run"`
	SegmentLen int       `json:"segment_len"`
	Output     string    `json:"output,omitempty"`
}
