package kv

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"viterbi-notes/internal/logger"
	"viterbi-notes/internal/services/notes"
)

// NotesRepo implements notes.Repository on a single Storage blob. The blob
// is read once at construction; every mutation writes it back whole.
type NotesRepo struct {
	storage Storage
	key     string
	mu      sync.RWMutex
	notes   []notes.Note // stored order
	loaded  bool         // storage answered at least once
	hub     *notes.Hub
}

// NewNotesRepo loads the collection stored under key. It never fails: an
// absent or undecodable blob is replaced by the sample notes, while an empty
// array is kept as a legitimately empty collection. When storage cannot be
// read at all the samples are served, and writes are refused until a
// re-read succeeds, so an intact blob is never overwritten unseen.
func NewNotesRepo(ctx context.Context, storage Storage, key string, bufferSize int) *NotesRepo {
	if key == "" {
		key = DefaultKey
	}
	r := &NotesRepo{
		storage: storage,
		key:     key,
		hub:     notes.NewHub(bufferSize),
	}
	if err := r.load(ctx); err != nil {
		logger.L().Error("error loading notes from storage, serving samples read-only", "key", r.key, "error", err)
		r.notes = notes.SampleNotes(notes.Now())
	}
	return r
}

// load reads the blob and decides what the collection is. It fails only
// when storage could not be read. Must be called with r.mu held or before r
// is shared.
func (r *NotesRepo) load(ctx context.Context) error {
	log := logger.L()

	blob, ok, err := r.storage.GetItem(ctx, r.key)
	if err != nil {
		return notes.IOError("kv.load", err)
	}
	r.loaded = true

	if !ok {
		log.Info("no stored notes, seeding samples", "key", r.key)
	} else {
		stored, err := decode(blob)
		if err == nil {
			r.notes = stored
			return nil
		}
		log.Error("error loading notes from storage", "key", r.key, "error", err)
	}

	r.notes = notes.SampleNotes(notes.Now())
	if err := r.persist(ctx, r.notes); err != nil {
		log.Error("error saving notes to storage", "key", r.key, "error", err)
	}
	return nil
}

// ready retries a failed initial load before the first write and publishes
// what storage actually holds. Must be called with r.mu held.
func (r *NotesRepo) ready(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	if err := r.load(ctx); err != nil {
		return err
	}
	logger.L().Info("storage readable again, loaded stored notes", "key", r.key, "count", len(r.notes))
	r.hub.Publish(r.snapshot())
	return nil
}

func decode(blob string) ([]notes.Note, error) {
	var stored []notes.Note
	if err := json.Unmarshal([]byte(blob), &stored); err != nil {
		return nil, notes.SerializationError("kv.decode", err)
	}
	if stored == nil {
		// "null" decodes without error but is not a collection.
		return nil, notes.SerializationError("kv.decode", errNullBlob)
	}
	return stored, nil
}

func (r *NotesRepo) persist(ctx context.Context, list []notes.Note) error {
	b, err := json.Marshal(list)
	if err != nil {
		return notes.SerializationError("kv.encode", err)
	}
	return notes.IOError("kv.write", r.storage.SetItem(ctx, r.key, string(b)))
}

// commit persists next and, only once that succeeded, makes it current and
// publishes it. Must be called with r.mu held.
func (r *NotesRepo) commit(ctx context.Context, next []notes.Note) error {
	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.notes = next
	r.hub.Publish(r.snapshot())
	return nil
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

// Save upserts a note and writes the blob back
func (r *NotesRepo) Save(ctx context.Context, n notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(ctx); err != nil {
		return err
	}
	next := slices.Clone(r.notes)
	if i := r.indexOf(n.ID); i >= 0 {
		next[i] = n
	} else {
		next = append(next, n)
	}
	return r.commit(ctx, next)
}

// Delete removes a note and writes the blob back
func (r *NotesRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(ctx); err != nil {
		return err
	}
	next := slices.DeleteFunc(slices.Clone(r.notes), func(n notes.Note) bool { return n.ID == id })
	return r.commit(ctx, next)
}

// ToggleFavorite flips the favorite flag and writes the blob back
func (r *NotesRepo) ToggleFavorite(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(ctx); err != nil {
		return err
	}
	i := r.indexOf(id)
	if i < 0 {
		return nil
	}
	next := slices.Clone(r.notes)
	next[i].IsFavorite = !next[i].IsFavorite
	next[i].UpdatedAt = notes.Touch(next[i].UpdatedAt)
	return r.commit(ctx, next)
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
