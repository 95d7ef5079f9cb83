package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"devhelper/internal/domain"
)

type subscriptionDoc struct {
	ID          string             `bson:"_id"`
	OwnerID     string             `bson:"owner_id"`
	ScopeID     string             `bson:"scope_id"`
	Destination domain.Destination `bson:"destination"`
	Frequency   string             `bson:"frequency"`
	Sources     []string           `bson:"sources"`
	Tags        []string           `bson:"tags"`
	LastSent    *time.Time         `bson:"last_sent"`
	Active      bool               `bson:"active"`
	Version     int64              `bson:"version"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func newSubscriptionDoc(s *domain.Subscription, version int64) subscriptionDoc {
	return subscriptionDoc{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		ScopeID:     s.ScopeID,
		Destination: s.Destination,
		Frequency:   string(s.Frequency),
		Sources:     s.Sources,
		Tags:        s.Tags,
		LastSent:    s.LastSent,
		Active:      s.Active,
		Version:     version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (d subscriptionDoc) toDomain() *domain.Subscription {
	sub := &domain.Subscription{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		ScopeID:     d.ScopeID,
		Destination: d.Destination,
		Frequency:   domain.Frequency(d.Frequency),
		Sources:     d.Sources,
		Tags:        d.Tags,
		Active:      d.Active,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.LastSent != nil {
		sent := d.LastSent.UTC()
		sub.LastSent = &sent
	}
	return sub
}

type SubscriptionStore struct {
	coll *mongo.Collection
}

func NewSubscriptionStore(db *mongo.Database) *SubscriptionStore {
	return &SubscriptionStore{coll: db.Collection(subscriptionsCollection)}
}

func (s *SubscriptionStore) Create(ctx context.Context, sub *domain.Subscription) error {
	if _, err := s.coll.InsertOne(ctx, newSubscriptionDoc(sub, 1)); err != nil {
		return mapError(fmt.Errorf("insert subscription: %w", err))
	}
	sub.Version = 1
	return nil
}

func (s *SubscriptionStore) FindActive(ctx context.Context, ownerID, scopeID string) (*domain.Subscription, error) {
	filter := bson.D{
		{Key: "owner_id", Value: ownerID},
		{Key: "scope_id", Value: scopeID},
		{Key: "active", Value: true},
	}

	var doc subscriptionDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(fmt.Errorf("find active subscription: %w", err))
	}
	return doc.toDomain(), nil
}

func (s *SubscriptionStore) ListActive(ctx context.Context) ([]*domain.Subscription, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cur, err := s.coll.Find(ctx, bson.D{{Key: "active", Value: true}}, opts)
	if err != nil {
		return nil, mapError(fmt.Errorf("find active subscriptions: %w", err))
	}
	var docs []subscriptionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError(fmt.Errorf("decode active subscriptions: %w", err))
	}

	subs := make([]*domain.Subscription, 0, len(docs))
	for _, d := range docs {
		subs = append(subs, d.toDomain())
	}
	return subs, nil
}

func (s *SubscriptionStore) Update(ctx context.Context, sub *domain.Subscription, expectedVersion int64) error {
	if err := replaceVersioned(ctx, s.coll, sub.ID, expectedVersion, newSubscriptionDoc(sub, expectedVersion+1)); err != nil {
		return err
	}
	sub.Version = expectedVersion + 1
	return nil
}
