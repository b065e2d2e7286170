package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second
	indexTimeout   = 30 * time.Second
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the indexes every collection relies on. It is
// idempotent and safe to run on each start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := NewUserRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := NewRoomRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("room indexes: %w", err)
	}
	if err := NewMessageRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrInvalidID
	}
	return oid, nil
}

// pageQuery turns a cursor page into an _id range filter plus sort and limit.
// Backward pages come back in descending id order.
func pageQuery(filter bson.M, page domain.Page) (bson.M, *options.FindOptions, error) {
	if filter == nil {
		filter = bson.M{}
	}

	sort := 1
	switch {
	case page.Before != "":
		oid, err := parseID(page.Before)
		if err != nil {
			return nil, nil, err
		}
		filter["_id"] = bson.M{"$lt": oid}
	case page.After != "":
		oid, err := parseID(page.After)
		if err != nil {
			return nil, nil, err
		}
		filter["_id"] = bson.M{"$gt": oid}
	}
	if page.Backward() {
		sort = -1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: sort}}).
		SetLimit(int64(page.Limit()))
	return filter, opts, nil
}
