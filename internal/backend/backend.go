// Package backend builds the notes.Repository selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"viterbi-notes/internal/clients/kv"
	"viterbi-notes/internal/clients/memory"
	"viterbi-notes/internal/clients/mongo"
	"viterbi-notes/internal/clients/sqlite"
	"viterbi-notes/internal/config"
	"viterbi-notes/internal/services/notes"
)

// ErrUnknownBackend is returned for a NOTES_BACKEND or KV_STORAGE value no
// backend answers to.
var ErrUnknownBackend = errors.New("unknown notes backend")

// Cleanup releases whatever Open acquired. It is never nil.
type Cleanup func(ctx context.Context) error

func noop(context.Context) error { return nil }

// Open builds the repository named by cfg.NotesBackend. A sqlite database
// that cannot be opened even after a corrupt file was moved aside degrades
// to an empty in-memory collection; every other open failure is returned.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (notes.Repository, Cleanup, error) {
	log = log.With("backend", cfg.NotesBackend)

	switch cfg.NotesBackend {
	case config.BackendMemory:
		log.Info("using in-memory notes; nothing survives a restart")
		return memory.NewNotesRepo(cfg.SubscriberBuffer), noop, nil

	case config.BackendSQLite:
		repo, db, err := sqlite.OpenNotesRepo(ctx, cfg.SQLitePath, cfg.SubscriberBuffer, log)
		if err != nil {
			log.Error("sqlite unavailable, using an empty in-memory collection", "path", cfg.SQLitePath, "err", err)
			return memory.NewNotesRepoWith(cfg.SubscriberBuffer, []notes.Note{}), noop, nil
		}
		return repo, func(context.Context) error { return db.Close() }, nil

	case config.BackendKV:
		return openKV(ctx, cfg, log)

	case config.BackendMongo:
		conn, err := mongo.Connect(ctx, cfg, log)
		if err != nil {
			return nil, noop, notes.IOError("mongo.connect", err)
		}
		repo, err := mongo.NewNotesRepo(ctx, conn.DB, cfg.SubscriberBuffer)
		if err != nil {
			_ = conn.Close(ctx)
			return nil, noop, err
		}
		return repo, func(ctx context.Context) error {
			return errors.Join(repo.Close(), conn.Close(ctx))
		}, nil
	}

	return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.NotesBackend)
}

func openKV(ctx context.Context, cfg config.Config, log *slog.Logger) (notes.Repository, Cleanup, error) {
	switch cfg.KVStorage {
	case config.KVStorageFile:
		fs, err := kv.NewFileStorage(cfg.KVDir)
		if err != nil {
			return nil, noop, notes.IOError("kv.open", err)
		}
		log.Info("using file key-value storage", "dir", cfg.KVDir, "key", cfg.KVKey)
		return kv.NewNotesRepo(ctx, fs, cfg.KVKey, cfg.SubscriberBuffer), noop, nil

	case config.KVStorageRedis:
		rs, err := kv.NewRedisStorage(ctx, kv.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			return nil, noop, notes.IOError("kv.open", err)
		}
		return kv.NewNotesRepo(ctx, rs, cfg.KVKey, cfg.SubscriberBuffer), func(context.Context) error { return rs.Close() }, nil
	}

	return nil, noop, fmt.Errorf("%w: kv storage %q", ErrUnknownBackend, cfg.KVStorage)
}
