package notes

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return at }
	t.Cleanup(func() { Now = prev })
}

func TestTouch(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("clock ahead of prev", func(t *testing.T) {
		withClock(t, base.Add(time.Second))
		assert.Equal(t, base.Add(time.Second), Touch(base))
	})

	t.Run("clock equal to prev", func(t *testing.T) {
		withClock(t, base)
		assert.Equal(t, base.Add(time.Millisecond), Touch(base))
	})

	t.Run("clock behind prev", func(t *testing.T) {
		withClock(t, base.Add(-time.Hour))
		assert.Equal(t, base.Add(time.Millisecond), Touch(base))
	})
}

func TestNewNote(t *testing.T) {
	n := NewNote("Title", "Body")

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "Title", n.Title)
	assert.Equal(t, "Body", n.Content)
	assert.False(t, n.IsFavorite)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
	assert.Equal(t, time.UTC, n.CreatedAt.Location())
	assert.Zero(t, n.CreatedAt.Nanosecond()%int(time.Millisecond))

	other := NewNote("", "")
	assert.NotEqual(t, n.ID, other.ID)
	assert.Less(t, n.ID, other.ID, "ids are time ordered")
}

func TestMatches(t *testing.T) {
	n := Note{Title: "Shopping List", Content: "• Milk\n• Bread"}

	tests := []struct {
		q    string
		want bool
	}{
		{"milk", true},
		{"MILK", true},
		{"shop", true},
		{"  bread ", false},
		{"milk\n", true},
		{" list", true},
		{"list ", false},
		{"zzz", false},
		{"", true},
		{"   ", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(n, tt.q), "query %q", tt.q)
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	list := []Note{
		{ID: "a", UpdatedAt: base},
		{ID: "b", UpdatedAt: base.Add(time.Minute)},
		{ID: "c", UpdatedAt: base},
	}

	SortNewestFirst(list)

	assert.Equal(t, []string{"b", "c", "a"}, ids(list))
}

func TestSampleNotes(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	samples := SampleNotes(at)

	require.Len(t, samples, 3)
	assert.Equal(t, []string{"1", "2", "3"}, ids(samples))
	assert.Len(t, Filter(samples, IsFavorite), 2)
	for _, n := range samples {
		assert.Equal(t, at, n.CreatedAt)
		assert.Equal(t, at, n.UpdatedAt)
	}
}

func TestStorageError(t *testing.T) {
	ioErr := IOError("kv.write", io.ErrUnexpectedEOF)
	serErr := SerializationError("kv.decode", errors.New("bad json"))

	assert.ErrorIs(t, ioErr, ErrStorageIO)
	assert.NotErrorIs(t, ioErr, ErrSerialization)
	assert.ErrorIs(t, ioErr, io.ErrUnexpectedEOF)
	assert.Equal(t, KindIO, KindOf(ioErr))
	assert.Contains(t, ioErr.Error(), "kv.write: io error")

	assert.ErrorIs(t, serErr, ErrSerialization)
	assert.Equal(t, KindSerialization, KindOf(serErr))

	assert.NoError(t, IOError("noop", nil))
	assert.NoError(t, SerializationError("noop", nil))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", Kind(0).String())
}
