package interfaces

import (
	"context"

	"threadsync/pkg/types"
)

// SnapshotStore persists the durable session across cold starts. Live state
// (connection, presence, loading flags) never goes through this interface.
type SnapshotStore interface {
	// Load returns the last saved snapshot, or ErrNoSnapshot when none exists.
	Load(ctx context.Context) (*types.Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap *types.Snapshot) error

	// Clear removes any stored snapshot.
	Clear(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
