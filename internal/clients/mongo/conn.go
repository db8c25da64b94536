package mongo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"viterbi-notes/internal/config"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	connectTimeout = 10 * time.Second
	closeTimeout   = 5 * time.Second
	// opTimeout bounds every repository call that reaches the server
	opTimeout = 5 * time.Second
)

var dial dialer = driverDialer{}

// Conn is an open client and the database the notes live in. Whoever calls
// Connect owns it and must Close it.
type Conn struct {
	Client *mongo.Client
	DB     *mongo.Database

	closeOnce sync.Once
	closeErr  error
}

// Connect dials MONGO_URI and pings the primary. A client that fails its
// ping is disconnected before the error is returned.
func Connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*Conn, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(connectTimeout).
		SetAppName("viterbi-notes")

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	cli, err := dial.dial(opts)
	if err != nil {
		log.Error("failed to connect to mongo", "error", err)
		return nil, err
	}
	if err := dial.ping(ctx, cli); err != nil {
		log.Error("failed to ping mongo", "error", err)
		_ = dial.hangUp(ctx, cli)
		return nil, err
	}

	log.Info("connected to mongo", "db", cfg.MongoDBName)
	return &Conn{Client: cli, DB: cli.Database(cfg.MongoDBName)}, nil
}

// Close disconnects the client. Later calls return the first result.
func (c *Conn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		c.closeErr = dial.hangUp(ctx, c.Client)
	})
	return c.closeErr
}

// boundCtx applies opTimeout unless parent already ends sooner. The cancel
// func is always safe to defer.
func boundCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent.Err() != nil {
		return parent, func() {}
	}
	if dl, ok := parent.Deadline(); ok && time.Until(dl) <= opTimeout {
		return parent, func() {}
	}
	return context.WithTimeout(parent, opTimeout)
}

// replicaSet reports whether db is served by a replica set member. Change
// streams need one.
func replicaSet(ctx context.Context, db *mongo.Database) (bool, error) {
	var hello struct {
		SetName string `bson:"setName"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false, err
	}
	return hello.SetName != "", nil
}
