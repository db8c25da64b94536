package notes

import (
	"crypto/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// UntitledTitle replaces a blank title when a note is created from a shell.
const UntitledTitle = "Untitled"

// Note represents a single text note
type Note struct {
	ID         string    `json:"id" bson:"_id" example:"01JXQ5V6Z3M4K8WQ2C0T9R7B1N"`
	Title      string    `json:"title" bson:"title" example:"Meeting Notes"`
	Content    string    `json:"content" bson:"content" example:"Remember to discuss the quarterly targets"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt" example:"2025-06-01T23:00:26.005Z"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt" example:"2025-06-01T23:00:26.005Z"`
	IsFavorite bool      `json:"isFavorite" bson:"isFavorite" example:"false"`
}

// Now returns the current time in UTC truncated to the millisecond, the
// precision every persistent backend stores.
var Now = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Touch returns the UpdatedAt for a mutation of a note last updated at prev.
// The result is never earlier than Now and always strictly after prev.
func Touch(prev time.Time) time.Time {
	now := Now()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a fresh, time-ordered note identifier.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewNote builds a note with a fresh id and both timestamps set to now.
func NewNote(title, content string) Note {
	now := Now()
	return Note{
		ID:        NewID(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Matches reports whether q occurs in the note's title or content, ignoring
// case. A blank query matches every note; any other query is matched as
// typed, surrounding spaces included.
func Matches(n Note, q string) bool {
	if strings.TrimSpace(q) == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Content), q)
}

// SortNewestFirst orders notes by UpdatedAt descending, ties broken by ID
// descending so every backend yields the same order.
func SortNewestFirst(list []Note) {
	slices.SortStableFunc(list, func(a, b Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// Filter returns the notes that satisfy keep, preserving order.
func Filter(list []Note, keep func(Note) bool) []Note {
	out := make([]Note, 0, len(list))
	for _, n := range list {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// IsFavorite is a Filter predicate selecting favorite notes.
func IsFavorite(n Note) bool { return n.IsFavorite }

// SampleNotes returns the notes every backend seeds an empty store with.
func SampleNotes(now time.Time) []Note {
	return []Note{
		{
			ID:    "1",
			Title: "Welcome to Viterbi",
			Content: "This is your first note! Start writing your thoughts, ideas, and important information here.\n\n" +
				"You can:\n• Create new notes\n• Edit existing notes\n• Mark notes as favorites\n• Search through your notes\n\n" +
				"Happy note-taking! 📝",
			CreatedAt:  now,
			UpdatedAt:  now,
			IsFavorite: true,
		},
		{
			ID:        "2",
			Title:     "Shopping List",
			Content:   "• Milk\n• Bread\n• Eggs\n• Bananas\n• Coffee",
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:    "3",
			Title: "Meeting Notes",
			Content: "Team meeting - 2:00 PM\n\nAgenda:\n1. Project updates\n2. Q1 goals review\n3. New feature planning\n\n" +
				"Action items:\n- Schedule follow-up meeting\n- Prepare presentation slides",
			CreatedAt:  now,
			UpdatedAt:  now,
			IsFavorite: true,
		},
	}
}
