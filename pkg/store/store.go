// Package store persists exploration snapshots.
//
// A snapshot captures the working graph and hidden state of one session so
// an exploration can be resumed later or shared. Two backends are provided:
// [MemoryStore] for single-process use and tests, and [MongoStore] for the
// session server.
package store

import (
	"context"
	"errors"

	"github.com/tablescope/tablescope/pkg/lineage"
)

// ErrNotFound is returned when no snapshot exists for the requested id.
var ErrNotFound = errors.New("snapshot not found")

// Store persists and retrieves exploration snapshots.
type Store interface {
	// Save upserts a snapshot by id.
	Save(ctx context.Context, snap *lineage.Snapshot) error

	// Load retrieves a snapshot by id. Returns ErrNotFound if absent.
	Load(ctx context.Context, id string) (*lineage.Snapshot, error)

	// List returns all snapshots, newest first.
	List(ctx context.Context) ([]*lineage.Snapshot, error)

	// Delete removes a snapshot. Deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
