// Package store persists analysis runs in an embedded libSQL database.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface for analysis run history.
type Store interface {
	// SaveRun persists a run. The run ID must be unique.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns the run with the given ID, or a NOT_FOUND error.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs matching the filter, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)

	// LatestRun returns the most recent run for a source/workflow pair,
	// or a NOT_FOUND error when no run exists.
	LatestRun(ctx context.Context, source, workflow string) (*Run, error)

	// PruneRuns deletes runs created before the cutoff and returns the count.
	PruneRuns(ctx context.Context, before time.Time) (int64, error)

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// Vacuum reclaims unused space in the database file.
	Vacuum(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
