package notes

import (
	"context"
)

// Repository is the storage contract every backend implements.
//
// Mutations are applied in call order and the new collection has been
// published to every live subscriber before the call returns. Errors are
// always *StorageError.
type Repository interface {
	// Watch subscribes to the full collection, newest UpdatedAt first. The
	// subscriber's channel holds the current snapshot immediately. The
	// returned func, or the end of ctx, detaches it.
	Watch(ctx context.Context) (*Subscriber, func(), error)
	// WatchFavorites is Watch restricted to favorite notes.
	WatchFavorites(ctx context.Context) (*Subscriber, func(), error)

	// GetByID reports ok == false when no note has this id.
	GetByID(ctx context.Context, id string) (Note, bool, error)
	// Save inserts n or replaces every field of the note with the same id.
	Save(ctx context.Context, n Note) error
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	// ToggleFavorite flips IsFavorite and refreshes UpdatedAt; a no-op for unknown ids.
	ToggleFavorite(ctx context.Context, id string) error
	// Search returns a one-shot snapshot of notes whose title or content
	// contains query, ignoring case. A blank query returns every note.
	Search(ctx context.Context, query string) ([]Note, error)
	// Count returns the number of stored notes.
	Count(ctx context.Context) (int, error)
}

// HubStats is implemented by repositories that can report their hub counters.
type HubStats interface {
	Stats() (subscribers int, coalesced uint64)
}
