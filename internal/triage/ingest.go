package triage

import (
	"context"
	"fmt"
	"log"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/provider"
)

// overFetchFactor compensates for the lack of a server-side
// "label NOT IN" filter: when a processed marker is configured, the
// ingestor requests this multiple of the batch limit and filters
// client-side, so a page whose head is all already-marked messages
// still yields usable work.
const overFetchFactor = 3

// Ingestor pulls the bounded batch of unread messages that seeds a run.
// It never mutates provider state.
type Ingestor struct {
	provider provider.Provider
	limit    int
	marker   model.MarkerID
}

// NewIngestor creates an ingestor fetching up to limit messages,
// excluding those already carrying marker. An empty marker disables
// filtering.
func NewIngestor(p provider.Provider, limit int, marker model.MarkerID) *Ingestor {
	return &Ingestor{
		provider: p,
		limit:    limit,
		marker:   marker,
	}
}

// Ingest fetches the batch and seeds a fresh RunState. A fetch failure
// is the only fatal error of a run and is returned to the caller.
func (i *Ingestor) Ingest(ctx context.Context) (*RunState, error) {
	fetchLimit := i.limit
	if i.marker == "" {
		log.Printf(
			"no processed marker configured - messages may be processed more than once",
		)
	} else {
		fetchLimit = i.limit * overFetchFactor
	}

	messages, err := i.provider.FetchUnread(ctx, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching unread messages: %w", err)
	}

	if i.marker != "" {
		unprocessed := make([]model.Message, 0, len(messages))
		for _, m := range messages {
			if !m.HasLabel(i.marker) {
				unprocessed = append(unprocessed, m)
			}
		}

		if filtered := len(messages) - len(unprocessed); filtered > 0 {
			log.Printf(
				"filtered out %d already processed message(s) carrying marker %q",
				filtered, i.marker,
			)
		}

		if len(unprocessed) > i.limit {
			unprocessed = unprocessed[:i.limit]
		}
		messages = unprocessed
	}

	if len(messages) == 0 {
		log.Printf("no unread messages to process")
	} else {
		log.Printf("start processing %d message(s)", len(messages))
	}

	return newRunState(messages), nil
}
