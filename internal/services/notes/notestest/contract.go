// Package notestest holds the behaviour every notes.Repository must share,
// run against each backend from that backend's own tests.
package notestest

import (
	"context"
	"slices"
	"testing"
	"time"

	"viterbi-notes/internal/services/notes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh repository holding exactly the sample notes.
type Factory func(t *testing.T) notes.Repository

// Wait bounds how long a subscriber may take to see a published change.
const Wait = 2 * time.Second

// RunRepository runs the shared repository behaviour against open.
func RunRepository(t *testing.T, open Factory) {
	t.Run("seeded with samples", func(t *testing.T) { testSeeded(t, open(t)) })
	t.Run("save then get", func(t *testing.T) { testSaveThenGet(t, open(t)) })
	t.Run("save replaces", func(t *testing.T) { testSaveReplaces(t, open(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, open(t)) })
	t.Run("toggle twice", func(t *testing.T) { testToggleTwice(t, open(t)) })
	t.Run("toggle unknown", func(t *testing.T) { testToggleUnknown(t, open(t)) })
	t.Run("search", func(t *testing.T) { testSearch(t, open(t)) })
	t.Run("search literal", func(t *testing.T) { testSearchLiteral(t, open(t)) })
	t.Run("search folds unicode case", func(t *testing.T) { testSearchFoldsUnicode(t, open(t)) })
	t.Run("watch follows writes", func(t *testing.T) { testWatch(t, open(t)) })
	t.Run("watch favorites", func(t *testing.T) { testWatchFavorites(t, open(t)) })
	t.Run("watch detaches", func(t *testing.T) { testWatchDetaches(t, open(t)) })
}

// IDs lists the ids of list in order.
func IDs(list []notes.Note) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

// AssertSameNote compares two notes field by field, times by instant.
func AssertSameNote(t *testing.T, want, got notes.Note) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.IsFavorite, got.IsFavorite)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %v, got %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updatedAt: want %v, got %v", want.UpdatedAt, got.UpdatedAt)
}

// Await reads snapshots from sub until one satisfies ok, failing after Wait.
func Await(t *testing.T, sub *notes.Subscriber, ok func([]notes.Note) bool) []notes.Note {
	t.Helper()
	deadline := time.After(Wait)
	for {
		select {
		case list, open := <-sub.Ch:
			require.True(t, open, "subscription closed")
			if ok(list) {
				return list
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
}

func mustGet(t *testing.T, repo notes.Repository, id string) notes.Note {
	t.Helper()
	n, ok, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "note %s should exist", id)
	return n
}

func testSeeded(t *testing.T, repo notes.Repository) {
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	welcome := mustGet(t, repo, "1")
	assert.Equal(t, "Welcome to Viterbi", welcome.Title)
	assert.True(t, welcome.IsFavorite)

	_, ok, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testSaveThenGet(t *testing.T, repo notes.Repository) {
	ctx := context.Background()
	n := notes.NewNote("Groceries", "milk and eggs")

	require.NoError(t, repo.Save(ctx, n))

	AssertSameNote(t, n, mustGet(t, repo, n.ID))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func testSaveReplaces(t *testing.T, repo notes.Repository) {
	ctx := context.Background()
	n := mustGet(t, repo, "2")

	n.Title = "Shopping List (weekend)"
	n.Content = "cheese"
	n.IsFavorite = true
	n.UpdatedAt = notes.Touch(n.UpdatedAt)
	require.NoError(t, repo.Save(ctx, n))

	AssertSameNote(t, n, mustGet(t, repo, "2"))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "saving an existing id must not add a note")
}

func testDelete(t *testing.T, repo notes.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, "2"))
	_, ok, err := repo.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Delete(ctx, "2"), "deleting twice is a no-op")
	require.NoError(t, repo.Delete(ctx, "never-existed"))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testToggleTwice(t *testing.T, repo notes.Repository) {
	ctx := context.Background()
	before := mustGet(t, repo, "2")
	require.False(t, before.IsFavorite)

	require.NoError(t, repo.ToggleFavorite(ctx, "2"))
	once := mustGet(t, repo, "2")
	assert.True(t, once.IsFavorite)
	assert.True(t, once.UpdatedAt.After(before.UpdatedAt))

	require.NoError(t, repo.ToggleFavorite(ctx, "2"))
	twice := mustGet(t, repo, "2")
	assert.False(t, twice.IsFavorite)
	assert.True(t, twice.UpdatedAt.After(once.UpdatedAt))

	assert.Equal(t, before.Title, twice.Title)
	assert.Equal(t, before.Content, twice.Content)
	assert.True(t, before.CreatedAt.Equal(twice.CreatedAt))
}

func testToggleUnknown(t *testing.T, repo notes.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.ToggleFavorite(ctx, "missing"))

	_, ok, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok, "toggling an unknown id must not create it")
}

func testSearch(t *testing.T, repo notes.Repository) {
	ctx := context.Background()

	tests := []struct {
		query string
		want  []string
	}{
		{"milk", []string{"2"}},
		{"MILK", []string{"2"}},
		{"meeting", []string{"3"}},
		{" list", []string{"2"}},
		{"milk ", nil},
		{"zzz", nil},
	}
	for _, tt := range tests {
		got, err := repo.Search(ctx, tt.query)
		require.NoError(t, err, tt.query)
		assert.ElementsMatch(t, tt.want, IDs(got), "query %q", tt.query)
	}

	all, err := repo.Search(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, IDs(all))

	blank, err := repo.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, blank, 3)
}

func testSearchLiteral(t *testing.T, repo notes.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, notes.NewNote("100% done", "a_b (c)")))

	for _, q := range []string{"%", "_", "(c)", "a_b"} {
		got, err := repo.Search(ctx, q)
		require.NoError(t, err, q)
		require.Len(t, got, 1, "query %q must match literally", q)
		assert.Equal(t, "100% done", got[0].Title)
	}
}

func testSearchFoldsUnicode(t *testing.T, repo notes.Repository) {
	ctx := context.Background()
	n := notes.NewNote("Äpfel kaufen", "für den Kuchen")
	require.NoError(t, repo.Save(ctx, n))

	tests := []struct {
		query string
		want  []string
	}{
		{"ÄPFEL", []string{n.ID}},
		{"äpfel", []string{n.ID}},
		{"FÜR", []string{n.ID}},
		{"birnen", nil},
	}
	for _, tt := range tests {
		got, err := repo.Search(ctx, tt.query)
		require.NoError(t, err, tt.query)
		assert.ElementsMatch(t, tt.want, IDs(got), "query %q", tt.query)
	}
}

func testWatch(t *testing.T, repo notes.Repository) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, stop, err := repo.Watch(ctx)
	require.NoError(t, err)
	defer stop()

	initial := Await(t, sub, func([]notes.Note) bool { return true })
	assert.ElementsMatch(t, []string{"1", "2", "3"}, IDs(initial))

	n := notes.NewNote("Fresh", "body")
	n.CreatedAt = n.CreatedAt.Add(time.Hour)
	n.UpdatedAt = n.CreatedAt
	require.NoError(t, repo.Save(ctx, n))

	got := Await(t, sub, func(list []notes.Note) bool { return slices.Contains(IDs(list), n.ID) })
	assert.Equal(t, n.ID, got[0].ID, "snapshots are newest first")

	require.NoError(t, repo.Delete(ctx, n.ID))
	Await(t, sub, func(list []notes.Note) bool { return !slices.Contains(IDs(list), n.ID) })
}

func testWatchFavorites(t *testing.T, repo notes.Repository) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, stop, err := repo.WatchFavorites(ctx)
	require.NoError(t, err)
	defer stop()

	initial := Await(t, sub, func([]notes.Note) bool { return true })
	assert.ElementsMatch(t, []string{"1", "3"}, IDs(initial))

	require.NoError(t, repo.ToggleFavorite(ctx, "2"))
	got := Await(t, sub, func(list []notes.Note) bool { return len(list) == 3 })
	assert.Equal(t, "2", got[0].ID, "the toggled note is the most recently updated")

	require.NoError(t, repo.ToggleFavorite(ctx, "1"))
	require.NoError(t, repo.ToggleFavorite(ctx, "2"))
	require.NoError(t, repo.ToggleFavorite(ctx, "3"))
	Await(t, sub, func(list []notes.Note) bool { return len(list) == 0 })
}

func testWatchDetaches(t *testing.T, repo notes.Repository) {
	ctx, cancel := context.WithCancel(context.Background())

	sub, stop, err := repo.Watch(ctx)
	require.NoError(t, err)
	defer stop()

	cancel()
	select {
	case <-sub.Done:
	case <-time.After(Wait):
		t.Fatal("subscription should end with its context")
	}

	require.NoError(t, repo.Save(context.Background(), notes.NewNote("after", "detach")))
}
