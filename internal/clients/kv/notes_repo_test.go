package kv

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"viterbi-notes/internal/services/notes"
	"viterbi-notes/internal/services/notes/notestest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStorage is an in-memory Storage whose failures can be switched on.
type mapStorage struct {
	mu       sync.Mutex
	items    map[string]string
	getErr   error
	setErr   error
	setCalls int
}

func newMapStorage() *mapStorage {
	return &mapStorage{items: map[string]string{}}
}

func (s *mapStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *mapStorage) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	s.items[key] = value
	return nil
}

func (s *mapStorage) stored(t *testing.T, key string) []notes.Note {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []notes.Note
	require.NoError(t, json.Unmarshal([]byte(s.items[key]), &list))
	return list
}

func TestNotesRepo_Contract(t *testing.T) {
	t.Run("map storage", func(t *testing.T) {
		notestest.RunRepository(t, func(*testing.T) notes.Repository {
			return NewNotesRepo(context.Background(), newMapStorage(), DefaultKey, 4)
		})
	})
	t.Run("file storage", func(t *testing.T) {
		notestest.RunRepository(t, func(t *testing.T) notes.Repository {
			fs, err := NewFileStorage(t.TempDir())
			require.NoError(t, err)
			return NewNotesRepo(context.Background(), fs, DefaultKey, 4)
		})
	})
}

func TestNotesRepo_AbsentKeySeedsAndWrites(t *testing.T) {
	st := newMapStorage()

	NewNotesRepo(context.Background(), st, DefaultKey, 4)

	assert.Equal(t, []string{"1", "2", "3"}, notestest.IDs(st.stored(t, DefaultKey)))
}

func TestNotesRepo_LoadDecisions(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		wantIDs []string
		rewrite bool
	}{
		{name: "corrupt blob reseeds", blob: "{not json", wantIDs: []string{"1", "2", "3"}, rewrite: true},
		{name: "null reseeds", blob: "null", wantIDs: []string{"1", "2", "3"}, rewrite: true},
		{name: "wrong shape reseeds", blob: `{"id":"1"}`, wantIDs: []string{"1", "2", "3"}, rewrite: true},
		{name: "empty array stays empty", blob: "[]", wantIDs: []string{}},
		{name: "stored notes are kept", blob: `[{"id":"x","title":"kept","content":"","createdAt":"2025-06-01T00:00:00Z","updatedAt":"2025-06-01T00:00:00Z","isFavorite":false}]`, wantIDs: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMapStorage()
			st.items[DefaultKey] = tt.blob

			repo := NewNotesRepo(context.Background(), st, DefaultKey, 4)

			list, err := repo.Search(context.Background(), "")
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantIDs, notestest.IDs(list))
			if tt.rewrite {
				assert.Equal(t, 1, st.setCalls)
				assert.ElementsMatch(t, tt.wantIDs, notestest.IDs(st.stored(t, DefaultKey)))
			} else {
				assert.Zero(t, st.setCalls)
			}
		})
	}
}

func TestNotesRepo_UnreadableStorageServesSamplesWithoutWriting(t *testing.T) {
	st := newMapStorage()
	st.items[DefaultKey] = "[]"
	st.getErr = errors.New("disk on fire")

	repo := NewNotesRepo(context.Background(), st, DefaultKey, 4)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Zero(t, st.setCalls)
	assert.Equal(t, "[]", st.items[DefaultKey])
}

func TestNotesRepo_WritesAfterUnreadableLoad(t *testing.T) {
	const stored = `[{"id":"x","title":"mine","content":"","createdAt":"2025-06-01T00:00:00Z","updatedAt":"2025-06-01T00:00:00Z","isFavorite":false}]`

	tests := []struct {
		name      string
		recovered bool
		write     func(ctx context.Context, repo *NotesRepo) error
		wantErr   error
		wantIDs   []string
	}{
		{
			name:    "save refused while storage is down",
			write:   func(ctx context.Context, repo *NotesRepo) error { return repo.Save(ctx, notes.Note{ID: "new"}) },
			wantErr: notes.ErrStorageIO,
			wantIDs: []string{"x"},
		},
		{
			name:    "delete refused while storage is down",
			write:   func(ctx context.Context, repo *NotesRepo) error { return repo.Delete(ctx, "2") },
			wantErr: notes.ErrStorageIO,
			wantIDs: []string{"x"},
		},
		{
			name:      "save after recovery keeps stored notes",
			recovered: true,
			write:     func(ctx context.Context, repo *NotesRepo) error { return repo.Save(ctx, notes.Note{ID: "new"}) },
			wantIDs:   []string{"x", "new"},
		},
		{
			name:      "toggle after recovery sees stored notes only",
			recovered: true,
			write:     func(ctx context.Context, repo *NotesRepo) error { return repo.ToggleFavorite(ctx, "2") },
			wantIDs:   []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newMapStorage()
			st.items[DefaultKey] = stored
			st.getErr = errors.New("connection refused")

			repo := NewNotesRepo(ctx, st, DefaultKey, 4)
			if tt.recovered {
				st.getErr = nil
			}

			err := tt.write(ctx, repo)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, st.setCalls)
				assert.Equal(t, stored, st.items[DefaultKey])
			} else {
				require.NoError(t, err)
			}
			assert.ElementsMatch(t, tt.wantIDs, notestest.IDs(st.stored(t, DefaultKey)))

			if tt.recovered {
				list, err := repo.Search(ctx, "")
				require.NoError(t, err)
				assert.ElementsMatch(t, tt.wantIDs, notestest.IDs(list), "memory follows storage once it answers")
			}
		})
	}
}

func TestNotesRepo_FailedWriteLeavesStateUnchanged(t *testing.T) {
	st := newMapStorage()
	repo := NewNotesRepo(context.Background(), st, DefaultKey, 4)
	ctx := context.Background()

	sub, stop, err := repo.Watch(ctx)
	require.NoError(t, err)
	defer stop()
	<-sub.Ch

	st.setErr = errors.New("quota exceeded")

	err = repo.Save(ctx, notes.NewNote("lost", "write"))
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrStorageIO)

	err = repo.ToggleFavorite(ctx, "2")
	assert.ErrorIs(t, err, notes.ErrStorageIO)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	n, _, err := repo.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.False(t, n.IsFavorite)

	assert.Empty(t, sub.Ch, "nothing is published for a failed write")
}

func TestNotesRepo_PersistsEveryMutation(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	repo := NewNotesRepo(ctx, fs, "custom_key", 4)
	n := notes.NewNote("Saved", "to disk")
	require.NoError(t, repo.Save(ctx, n))
	require.NoError(t, repo.Delete(ctx, "1"))

	again := NewNotesRepo(ctx, fs, "custom_key", 4)
	list, err := again.Search(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "3", n.ID}, notestest.IDs(list))
}
