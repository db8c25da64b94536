package notes

import (
	"errors"
	"fmt"
)

// ErrCreateNote is returned when note creation fails.
var ErrCreateNote = errors.New("failed to create note")

// ErrUpdateNote is returned when note update fails.
var ErrUpdateNote = errors.New("failed to update note")

// ErrDeleteNote is returned when note deletion fails.
var ErrDeleteNote = errors.New("failed to delete note")

// ErrListNotes is returned when notes listing fails.
var ErrListNotes = errors.New("failed to list notes")

// ErrNoteNotFound is returned by the service when an id has no note.
// Repositories report absence with ok == false instead.
var ErrNoteNotFound = errors.New("note not found")

// ErrEmptyNote is returned when both title and content are blank.
var ErrEmptyNote = errors.New("note title and content are both empty")

// ErrStorageIO matches any StorageError of KindIO.
var ErrStorageIO = errors.New("storage unavailable")

// ErrSerialization matches any StorageError of KindSerialization.
var ErrSerialization = errors.New("stored data unreadable")

// Kind classifies a storage failure.
type Kind int

const (
	// KindIO covers driver, network, and file system failures.
	KindIO Kind = iota + 1
	// KindSerialization covers encode and decode failures.
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// StorageError is the only error type repositories return.
type StorageError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is match a StorageError against ErrStorageIO or ErrSerialization.
func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrStorageIO:
		return e.Kind == KindIO
	case ErrSerialization:
		return e.Kind == KindSerialization
	}
	return false
}

// IOError wraps err as a KindIO StorageError. It returns nil for a nil err.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: KindIO, Op: op, Err: err}
}

// SerializationError wraps err as a KindSerialization StorageError. It returns nil for a nil err.
func SerializationError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: KindSerialization, Op: op, Err: err}
}

// KindOf returns the kind of the StorageError in err's chain, or 0.
func KindOf(err error) Kind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
