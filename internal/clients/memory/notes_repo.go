// Package memory holds the transient notes backend: the collection lives for
// the process lifetime only.
package memory

import (
	"context"
	"slices"
	"sync"

	"viterbi-notes/internal/services/notes"
)

// NotesRepo implements notes.Repository in process memory
type NotesRepo struct {
	mu    sync.RWMutex
	notes []notes.Note
	hub   *notes.Hub
}

// NewNotesRepo creates a repository seeded with the sample notes
func NewNotesRepo(bufferSize int) *NotesRepo {
	return NewNotesRepoWith(bufferSize, notes.SampleNotes(notes.Now()))
}

// NewNotesRepoWith creates a repository holding exactly initial
func NewNotesRepoWith(bufferSize int, initial []notes.Note) *NotesRepo {
	return &NotesRepo{
		notes: slices.Clone(initial),
		hub:   notes.NewHub(bufferSize),
	}
}

// snapshot must be called with r.mu held.
func (r *NotesRepo) snapshot() []notes.Note {
	out := slices.Clone(r.notes)
	notes.SortNewestFirst(out)
	return out
}

func (r *NotesRepo) indexOf(id string) int {
	return slices.IndexFunc(r.notes, func(n notes.Note) bool { return n.ID == id })
}

// Watch subscribes to the full collection
func (r *NotesRepo) Watch(ctx context.Context) (*notes.Subscriber, func(), error) {
	return r.watch(ctx, nil)
}

// WatchFavorites subscribes to favorite notes only
func (r *NotesRepo) WatchFavorites(ctx context.Context) (*notes.Subscriber, func(), error) {
	return r.watch(ctx, notes.IsFavorite)
}

func (r *NotesRepo) watch(ctx context.Context, filter func(notes.Note) bool) (*notes.Subscriber, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, cancel := r.hub.SubscribeContext(ctx, r.snapshot(), filter)
	return sub, cancel, nil
}

// GetByID looks a note up by id
func (r *NotesRepo) GetByID(_ context.Context, id string) (notes.Note, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.notes[i], true, nil
	}
	return notes.Note{}, false, nil
}

// Save upserts a note by id
func (r *NotesRepo) Save(_ context.Context, n notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(n.ID); i >= 0 {
		r.notes[i] = n
	} else {
		r.notes = append(r.notes, n)
	}
	r.hub.Publish(r.snapshot())
	return nil
}

// Delete removes a note by id
func (r *NotesRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = slices.DeleteFunc(r.notes, func(n notes.Note) bool { return n.ID == id })
	r.hub.Publish(r.snapshot())
	return nil
}

// ToggleFavorite flips the favorite flag of a note
func (r *NotesRepo) ToggleFavorite(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil
	}
	n := r.notes[i]
	n.IsFavorite = !n.IsFavorite
	n.UpdatedAt = notes.Touch(n.UpdatedAt)
	r.notes[i] = n
	r.hub.Publish(r.snapshot())
	return nil
}

// Search returns the notes matching query
func (r *NotesRepo) Search(_ context.Context, query string) ([]notes.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return notes.Filter(r.snapshot(), func(n notes.Note) bool {
		return notes.Matches(n, query)
	}), nil
}

// Count returns the number of notes
func (r *NotesRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notes), nil
}

// Stats reports the hub counters
func (r *NotesRepo) Stats() (int, uint64) {
	return r.hub.Stats()
}
