// Package mongo persists sessions and subscriptions in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"devhelper/internal/domain"
)

const (
	sessionsCollection      = "pomodoro_sessions"
	subscriptionsCollection = "news_subscriptions"
)

type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Connect opens a client, pings the server and ensures indexes exist.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, db, nil
}

// EnsureIndexes creates the partial unique indexes that keep one active
// entity per owner and scope.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ownerScope := bson.D{{Key: "owner_id", Value: 1}, {Key: "scope_id", Value: 1}}

	_, err := db.Collection(sessionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: ownerScope,
			Options: options.Index().
				SetName("one_active_session").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "active", Value: true}}),
		},
		{
			Keys:    bson.D{{Key: "active", Value: 1}, {Key: "notified", Value: 1}, {Key: "end_time", Value: 1}},
			Options: options.Index().SetName("pending_sessions"),
		},
	})
	if err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}

	_, err = db.Collection(subscriptionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: ownerScope,
		Options: options.Index().
			SetName("one_active_subscription").
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "active", Value: true}}),
	})
	if err != nil {
		return fmt.Errorf("create subscription indexes: %w", err)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyActive, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
}

// replaceVersioned swaps the stored document for doc when its version still
// equals expected.
func replaceVersioned(ctx context.Context, coll *mongo.Collection, id string, expected int64, doc any) error {
	res, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "version", Value: expected}}, doc)
	if err != nil {
		return mapError(fmt.Errorf("replace %s %s: %w", coll.Name(), id, err))
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapError(fmt.Errorf("count %s %s: %w", coll.Name(), id, err))
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, coll.Name(), id)
	}
	return fmt.Errorf("%w: %s %s was modified", domain.ErrConflict, coll.Name(), id)
}
