package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"viterbi-notes/internal/logger"
	"viterbi-notes/internal/services/notes"
)

const (
	selectColumns = `SELECT id, title, content, createdAt, updatedAt, isFavorite FROM notes`
	orderNewest   = ` ORDER BY updatedAt DESC, id DESC`

	upsertNote = `INSERT INTO notes (id, title, content, createdAt, updatedAt, isFavorite)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    content = excluded.content,
    createdAt = excluded.createdAt,
    updatedAt = excluded.updatedAt,
    isFavorite = excluded.isFavorite`

	// Touches only the two columns a favorite toggle changes.
	updateFavorite = `UPDATE notes SET isFavorite = ?, updatedAt = ? WHERE id = ?`
)

// NotesRepo implements notes.Repository on SQLite
type NotesRepo struct {
	db  *sql.DB
	mu  sync.Mutex // serialises writes with their snapshot publication
	hub *notes.Hub
}

// NewNotesRepo prepares the schema and, on a brand new database, seeds the
// sample notes. A database whose notes were all deleted is not reseeded.
func NewNotesRepo(ctx context.Context, db *sql.DB, bufferSize int) (*NotesRepo, error) {
	fresh, err := migrate(ctx, db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		for _, note := range notes.SampleNotes(notes.Now()) {
			if _, err := tx.ExecContext(ctx, upsertNote, noteArgs(note)...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, notes.IOError("sqlite.migrate", err)
	}
	if fresh {
		logger.L().Info("initialised notes database", "seeded", true)
	}

	return &NotesRepo{db: db, hub: notes.NewHub(bufferSize)}, nil
}

func noteArgs(n notes.Note) []any {
	return []any{n.ID, n.Title, n.Content, n.CreatedAt.UnixMilli(), n.UpdatedAt.UnixMilli(), boolToInt(n.IsFavorite)}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (notes.Note, error) {
	var (
		n                    notes.Note
		createdAt, updatedAt int64
		favorite             int64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &createdAt, &updatedAt, &favorite); err != nil {
		return notes.Note{}, err
	}
	n.CreatedAt = time.UnixMilli(createdAt).UTC()
	n.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	n.IsFavorite = favorite != 0
	return n, nil
}

func (r *NotesRepo) query(ctx context.Context, op, query string, args ...any) ([]notes.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, notes.IOError(op, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logger.L().Error("failed to close rows", "op", op, "error", cerr)
		}
	}()

	list := []notes.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, notes.SerializationError(op, err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, notes.IOError(op, err)
	}
	return list, nil
}

func (r *NotesRepo) all(ctx context.Context) ([]notes.Note, error) {
	return r.query(ctx, "sqlite.all", selectColumns+orderNewest)
}

// publish must be called with r.mu held. A failed re-read does not undo the
// write that preceded it; subscribers catch up on the next change.
func (r *NotesRepo) publish(ctx context.Context) {
	list, err := r.all(ctx)
	if err != nil {
		logger.L().Error("failed to read notes for publication", "error", err)
		return
	}
	r.hub.Publish(list)
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
	list, err := r.all(ctx)
	if err != nil {
		return nil, nil, err
	}
	sub, cancel := r.hub.SubscribeContext(ctx, list, filter)
	return sub, cancel, nil
}

// GetByID looks a note up by id
func (r *NotesRepo) GetByID(ctx context.Context, id string) (notes.Note, bool, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return notes.Note{}, false, nil
	}
	if err != nil {
		return notes.Note{}, false, notes.IOError("sqlite.get", err)
	}
	return n, true, nil
}

// Save upserts a note, replacing every column
func (r *NotesRepo) Save(ctx context.Context, n notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.db.ExecContext(ctx, upsertNote, noteArgs(n)...); err != nil {
		return notes.IOError("sqlite.save", err)
	}
	r.publish(ctx)
	return nil
}

// Delete removes a note by id
func (r *NotesRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return notes.IOError("sqlite.delete", err)
	}
	r.publish(ctx)
	return nil
}

// ToggleFavorite flips isFavorite with a narrow update that leaves title,
// content and createdAt untouched.
func (r *NotesRepo) ToggleFavorite(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		favorite  int64
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT isFavorite, updatedAt FROM notes WHERE id = ?`, id).Scan(&favorite, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return notes.IOError("sqlite.toggle", err)
	}

	next := notes.Touch(time.UnixMilli(updatedAt).UTC())
	if _, err := r.db.ExecContext(ctx, updateFavorite, boolToInt(favorite == 0), next.UnixMilli(), id); err != nil {
		return notes.IOError("sqlite.toggle", err)
	}
	r.publish(ctx)
	return nil
}

// likeEscaper makes a user query literal inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query against title or content with LIKE. Open replaces
// the built in LIKE with a Unicode aware one, so "ÄPFEL" finds "äpfel".
func (r *NotesRepo) Search(ctx context.Context, query string) ([]notes.Note, error) {
	if strings.TrimSpace(query) == "" {
		return r.all(ctx)
	}
	pattern := "%" + likeEscaper.Replace(query) + "%"
	return r.query(ctx, "sqlite.search",
		selectColumns+` WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'`+orderNewest,
		pattern, pattern)
}

// Count returns the number of notes
func (r *NotesRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		return 0, notes.IOError("sqlite.count", err)
	}
	return n, nil
}

// Stats reports the hub counters
func (r *NotesRepo) Stats() (int, uint64) {
	return r.hub.Stats()
}
