package coordinator

import (
	"errors"
	"fmt"

	"viterbi-notes/internal/services/notes"
)

// Op names the command a failure happened in, as shown to the user.
type Op string

// Commands that can fail.
const (
	OpLoad   Op = "load notes"
	OpCreate Op = "save note"
	OpUpdate Op = "update note"
	OpDelete Op = "delete note"
	OpToggle Op = "update favorite"
	OpSearch Op = "search notes"
)

// Message turns a failed command into the one line the user sees.
func Message(op Op, err error) string {
	var reason string
	switch {
	case errors.Is(err, notes.ErrStorageIO):
		reason = "storage is unavailable"
	case errors.Is(err, notes.ErrSerialization):
		reason = "stored data is unreadable"
	default:
		reason = err.Error()
	}
	return fmt.Sprintf("Could not %s: %s", op, reason)
}
