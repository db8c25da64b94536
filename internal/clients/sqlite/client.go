// Package sqlite holds the embedded relational notes backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"viterbi-notes/internal/services/notes"

	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed" // bundles the SQLite build
	"github.com/ncruces/go-sqlite3/ext/unicode"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// schemaVersion is stored in PRAGMA user_version once the schema exists.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    createdAt INTEGER NOT NULL,
    updatedAt INTEGER NOT NULL,
    isFavorite INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updatedAt DESC, id DESC);
`

// Open opens the database at dsn (a file path or MemoryDSN) and checks it
// answers. Every connection gets Unicode aware LIKE, lower and upper, so
// search folds case the same way strings.ToLower does. The caller owns the
// returned handle and must Close it.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*sql.DB, error) {
	db, err := driver.Open(dsn, unicode.Register)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		log.Error("failed to ping sqlite", "dsn", dsn, "err", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("opened sqlite database", "dsn", dsn)
	return db, nil
}

// OpenNotesRepo opens the database at dsn and builds the repository on it.
// A file SQLite rejects as corrupt or as not a database is renamed to
// <dsn>.corrupt-<unix ms>, its -wal and -shm files with it, and a fresh
// seeded database is created in its place. The caller owns the returned
// handle.
func OpenNotesRepo(ctx context.Context, dsn string, bufferSize int, log *slog.Logger) (*NotesRepo, *sql.DB, error) {
	repo, db, err := openNotesRepo(ctx, dsn, bufferSize, log)
	if err == nil || dsn == MemoryDSN || !isCorrupt(err) {
		return repo, db, err
	}

	aside, qerr := quarantine(dsn, time.Now())
	if qerr != nil {
		log.Error("failed to move corrupt database aside", "dsn", dsn, "err", qerr)
		return nil, nil, notes.IOError("sqlite.quarantine", errors.Join(err, qerr))
	}
	log.Warn("moved corrupt database aside, starting fresh", "dsn", dsn, "moved_to", aside, "err", err)
	return openNotesRepo(ctx, dsn, bufferSize, log)
}

func openNotesRepo(ctx context.Context, dsn string, bufferSize int, log *slog.Logger) (*NotesRepo, *sql.DB, error) {
	db, err := Open(ctx, dsn, log)
	if err != nil {
		return nil, nil, notes.IOError("sqlite.open", err)
	}
	repo, err := NewNotesRepo(ctx, db, bufferSize)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

func isCorrupt(err error) bool {
	return errors.Is(err, sqlite3.NOTADB) || errors.Is(err, sqlite3.CORRUPT)
}

// quarantine renames path and its journal files out of the way and returns
// the new name of path.
func quarantine(path string, now time.Time) (string, error) {
	aside := fmt.Sprintf("%s.corrupt-%d", path, now.UnixMilli())
	if err := os.Rename(path, aside); err != nil {
		return "", err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		err := os.Rename(path+suffix, aside+suffix)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return aside, err
		}
	}
	return aside, nil
}

// migrate creates the schema when the database is new and reports whether
// it was. seed runs inside the same transaction as the schema creation, so a
// database is either fresh-and-seeded or untouched.
func migrate(ctx context.Context, db *sql.DB, seed func(*sql.Tx) error) (fresh bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var version int
	if err = tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return false, err
	}
	if version >= schemaVersion {
		return false, tx.Commit()
	}

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return false, fmt.Errorf("failed to create schema: %w", err)
	}
	if err = seed(tx); err != nil {
		return false, fmt.Errorf("failed to seed notes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
