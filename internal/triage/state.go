// Package triage implements the per-run processing state machine:
// ingest a bounded batch of unread messages, classify each one against
// the ordered rule set, dispatch exactly one terminal action per
// message, and loop until the batch is exhausted. Idempotency across
// runs is delegated entirely to the provider-side processed marker.
package triage

import (
	"fmt"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

// RunState is the single mutable object threaded through the run loop.
// It is created fresh per run, owned exclusively by the Engine, and
// discarded when the run ends. Invariants: 0 <= Cursor <= len(Messages)
// and ProcessedCount == Cursor at every loop boundary.
type RunState struct {
	// Messages is the ingested batch, in provider order.
	Messages []model.Message

	// Cursor indexes the message under consideration. It only moves
	// forward; Cursor == len(Messages) is the terminal position.
	Cursor int

	// ProcessedCount counts dispatched messages.
	ProcessedCount int

	// RepliedCount counts successfully sent (or simulated) replies.
	RepliedCount int

	// Errors accumulates per-message failure descriptions. No entry
	// ever aborts the batch.
	Errors []string

	// Current is the classification of the message at Cursor, set by
	// the classifier and cleared after dispatch. nil means the message
	// could not be classified.
	Current *model.Classification
}

// newRunState seeds the state for a fresh run.
func newRunState(messages []model.Message) *RunState {
	return &RunState{
		Messages: messages,
		Errors:   []string{},
	}
}

// CurrentMessage returns the message under the cursor, or false when
// the cursor is out of range.
func (s *RunState) CurrentMessage() (model.Message, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Messages) {
		return model.Message{}, false
	}
	return s.Messages[s.Cursor], true
}

// advance moves past the current message. Called exactly once per
// dispatched message, restoring the ProcessedCount == Cursor invariant.
func (s *RunState) advance() {
	s.ProcessedCount++
	s.Cursor++
	s.Current = nil
}

// appendError records a per-message failure.
func (s *RunState) appendError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Summary is the externally observable outcome of a run.
type Summary struct {
	Processed int
	Replied   int
	Errors    []string
}

// summary snapshots the state's counters.
func (s *RunState) summary() Summary {
	errs := make([]string, len(s.Errors))
	copy(errs, s.Errors)

	return Summary{
		Processed: s.ProcessedCount,
		Replied:   s.RepliedCount,
		Errors:    errs,
	}
}
