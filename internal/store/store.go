// Package store persists run summaries to a local SQLite database.
// History is observability only: a run never consults it to make
// processing decisions, and idempotency stays with the provider-side
// marker.
package store

import (
	"context"
	"time"
)

// RunRecord is the stored summary of one completed run.
type RunRecord struct {
	// ID is the run's unique identifier.
	ID string `db:"id"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`

	// DryRun records whether external writes were suppressed.
	DryRun bool `db:"dry_run"`

	// Processed and Replied mirror the run summary counters.
	Processed int `db:"processed"`
	Replied   int `db:"replied"`

	// Errors holds the accumulated per-message failure descriptions.
	Errors []string `db:"-"`
}

// Store defines the run-history persistence interface.
type Store interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
