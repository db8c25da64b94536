package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"viterbi-notes/internal/logger"
	"viterbi-notes/internal/services/notes"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	notesCollection = "notes"
	metaCollection  = "meta"
	seedMarkerID    = "seed"
)

// NotesRepo implements the notes.Repository interface for MongoDB.
//
// Writes made through this repo are published when they complete. On a
// replica set a change stream additionally republishes writes made by other
// processes sharing the database.
type NotesRepo struct {
	collection *mongo.Collection
	meta       *mongo.Collection
	mu         sync.Mutex // serialises writes with their snapshot publication
	hub        *notes.Hub

	stop context.CancelFunc
	done chan struct{}
}

// NewNotesRepo creates the indexes and seeds the sample notes the first time
// it meets a database. Close stops the change stream follower, if any.
func NewNotesRepo(parentCtx context.Context, db *mongo.Database, bufferSize int) (*NotesRepo, error) {
	r := &NotesRepo{
		collection: db.Collection(notesCollection),
		meta:       db.Collection(metaCollection),
		hub:        notes.NewHub(bufferSize),
	}

	ctx, cancel := context.WithTimeout(parentCtx, opTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    newestFirst,
			Options: options.Index().SetName("updated_desc_id_desc"),
		},
		{
			Keys: bson.D{
				{Key: "isFavorite", Value: 1},
				{Key: "updatedAt", Value: -1},
			},
			Options: options.Index().SetName("favorite_updated_desc"),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.L().Error("failed to create index", "collection", notesCollection, "error", err)
		return nil, notes.IOError("mongo.indexes", fmt.Errorf("failed to create notes collection index: %w", err))
	}

	// Documents written before isFavorite existed read as not favorite.
	if _, err := r.collection.UpdateMany(ctx,
		bson.M{"isFavorite": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"isFavorite": false}},
	); err != nil {
		return nil, notes.IOError("mongo.backfill", err)
	}

	seeded, err := seed(ctx, collectionSeed{coll: r.collection, meta: r.meta})
	if err != nil {
		return nil, err
	}
	if seeded {
		logger.L().Info("seeded sample notes", "collection", notesCollection)
	}

	rs, err := replicaSet(ctx, db)
	if err != nil {
		logger.L().Warn("failed to read mongo topology", "error", err)
	}
	if rs {
		r.follow()
	} else {
		logger.L().Info("standalone mongo, publishing local writes only")
	}

	return r, nil
}

// seedSteps are the reads and writes seeding is made of.
type seedSteps interface {
	marked(ctx context.Context) (bool, error)
	empty(ctx context.Context) (bool, error)
	insert(ctx context.Context, samples []notes.Note) error
	mark(ctx context.Context) error
}

// seed inserts the samples once per database and reports whether it did.
// The marker document makes a database whose notes were all deleted stay
// empty. It is written only after the samples are in, so a failed insert is
// retried on the next start.
func seed(ctx context.Context, s seedSteps) (bool, error) {
	done, err := s.marked(ctx)
	if err != nil {
		return false, notes.IOError("mongo.seed", err)
	}
	if done {
		return false, nil
	}

	empty, err := s.empty(ctx)
	if err != nil {
		return false, notes.IOError("mongo.seed", err)
	}
	if empty {
		if err := s.insert(ctx, notes.SampleNotes(notes.Now())); err != nil {
			return false, notes.IOError("mongo.seed", err)
		}
	}

	if err := s.mark(ctx); err != nil {
		return empty, notes.IOError("mongo.seed", err)
	}
	return empty, nil
}

// collectionSeed runs the seed steps against the notes and meta collections.
type collectionSeed struct {
	coll *mongo.Collection
	meta *mongo.Collection
}

func (c collectionSeed) marked(ctx context.Context) (bool, error) {
	err := c.meta.FindOne(ctx, byID(seedMarkerID)).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (c collectionSeed) empty(ctx context.Context) (bool, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	return n == 0, err
}

func (c collectionSeed) insert(ctx context.Context, samples []notes.Note) error {
	docs := make([]any, 0, len(samples))
	for _, n := range samples {
		docs = append(docs, n)
	}
	_, err := c.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if mongo.IsDuplicateKeyError(err) {
		// another process seeded first
		return nil
	}
	return err
}

func (c collectionSeed) mark(ctx context.Context) error {
	_, err := c.meta.UpdateOne(ctx,
		byID(seedMarkerID),
		bson.M{"$setOnInsert": bson.M{"seededAt": notes.Now()}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// follow republishes on every change the stream reports.
func (r *NotesRepo) follow() {
	ctx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	r.done = make(chan struct{})

	stream, err := r.collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		logger.L().Warn("change stream unavailable, publishing local writes only", "error", err)
		cancel()
		close(r.done)
		return
	}

	go func() {
		defer close(r.done)
		defer func() { _ = stream.Close(context.Background()) }()

		for stream.Next(ctx) {
			r.mu.Lock()
			r.publish(ctx)
			r.mu.Unlock()
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("change stream stopped", "error", err)
		}
	}()
}

// Close stops the change stream follower. The database connection belongs
// to the caller.
func (r *NotesRepo) Close() error {
	if r.stop != nil {
		r.stop()
		<-r.done
	}
	return nil
}

func (r *NotesRepo) find(ctx context.Context, op string, filter bson.M) ([]notes.Note, error) {
	ctx, cancel := boundCtx(ctx)
	defer cancel()

	cur, err := r.collection.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, notes.IOError(op, err)
	}
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil {
			logger.L().Error("failed to close cursor", "op", op, "error", cerr)
		}
	}()

	list := []notes.Note{}
	for cur.Next(ctx) {
		var n notes.Note
		if err := cur.Decode(&n); err != nil {
			return nil, notes.SerializationError(op, err)
		}
		list = append(list, n)
	}
	if err := cur.Err(); err != nil {
		return nil, notes.IOError(op, err)
	}
	return list, nil
}

func (r *NotesRepo) all(ctx context.Context) ([]notes.Note, error) {
	return r.find(ctx, "mongo.all", bson.M{})
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
	ctx, cancel := boundCtx(ctx)
	defer cancel()

	res := r.collection.FindOne(ctx, byID(id))
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return notes.Note{}, false, nil
		}
		return notes.Note{}, false, notes.IOError("mongo.get", err)
	}
	var n notes.Note
	if err := res.Decode(&n); err != nil {
		return notes.Note{}, false, notes.SerializationError("mongo.get", err)
	}
	return n, true, nil
}

// Save upserts a note, replacing the whole document
func (r *NotesRepo) Save(ctx context.Context, n notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opCtx, cancel := boundCtx(ctx)
	defer cancel()

	if _, err := r.collection.ReplaceOne(opCtx, byID(n.ID), n, options.Replace().SetUpsert(true)); err != nil {
		return notes.IOError("mongo.save", err)
	}
	r.publish(ctx)
	return nil
}

// Delete removes a note by id
func (r *NotesRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opCtx, cancel := boundCtx(ctx)
	defer cancel()

	if _, err := r.collection.DeleteOne(opCtx, byID(id)); err != nil {
		return notes.IOError("mongo.delete", err)
	}
	r.publish(ctx)
	return nil
}

// ToggleFavorite flips isFavorite with a $set on the two fields it changes
func (r *NotesRepo) ToggleFavorite(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opCtx, cancel := boundCtx(ctx)
	defer cancel()

	var cur struct {
		IsFavorite bool      `bson:"isFavorite"`
		UpdatedAt  time.Time `bson:"updatedAt"`
	}
	err := r.collection.FindOne(opCtx, byID(id),
		options.FindOne().SetProjection(bson.M{"isFavorite": 1, "updatedAt": 1}),
	).Decode(&cur)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return notes.IOError("mongo.toggle", err)
	}

	update := bson.M{"$set": bson.M{
		"isFavorite": !cur.IsFavorite,
		"updatedAt":  notes.Touch(cur.UpdatedAt.UTC()),
	}}
	if _, err := r.collection.UpdateOne(opCtx, byID(id), update); err != nil {
		return notes.IOError("mongo.toggle", err)
	}
	r.publish(ctx)
	return nil
}

// Search matches query against title or content with a case-insensitive
// regex on the quoted query.
func (r *NotesRepo) Search(ctx context.Context, query string) ([]notes.Note, error) {
	if strings.TrimSpace(query) == "" {
		return r.all(ctx)
	}
	re := bson.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return r.find(ctx, "mongo.search", bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"content": re},
	}})
}

// Count returns the number of notes
func (r *NotesRepo) Count(ctx context.Context) (int, error) {
	ctx, cancel := boundCtx(ctx)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, notes.IOError("mongo.count", err)
	}
	return int(n), nil
}

// Stats reports the hub counters
func (r *NotesRepo) Stats() (int, uint64) {
	return r.hub.Stats()
}
