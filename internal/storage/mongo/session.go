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

type sessionDoc struct {
	ID           string             `bson:"_id"`
	OwnerID      string             `bson:"owner_id"`
	ScopeID      string             `bson:"scope_id"`
	Destination  domain.Destination `bson:"destination"`
	Status       string             `bson:"status"`
	Active       bool               `bson:"active"`
	FocusMinutes int                `bson:"focus_minutes"`
	BreakMinutes int                `bson:"break_minutes"`
	StartTime    time.Time          `bson:"start_time"`
	EndTime      time.Time          `bson:"end_time"`
	Notified     bool               `bson:"notified"`
	Version      int64              `bson:"version"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func newSessionDoc(s *domain.Session, version int64) sessionDoc {
	return sessionDoc{
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		ScopeID:      s.ScopeID,
		Destination:  s.Destination,
		Status:       string(s.Status),
		Active:       s.IsActive(),
		FocusMinutes: s.FocusMinutes,
		BreakMinutes: s.BreakMinutes,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Notified:     s.Notified,
		Version:      version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (d sessionDoc) toDomain() *domain.Session {
	return &domain.Session{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		ScopeID:      d.ScopeID,
		Destination:  d.Destination,
		Status:       domain.SessionStatus(d.Status),
		FocusMinutes: d.FocusMinutes,
		BreakMinutes: d.BreakMinutes,
		StartTime:    d.StartTime.UTC(),
		EndTime:      d.EndTime.UTC(),
		Notified:     d.Notified,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type SessionStore struct {
	coll *mongo.Collection
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{coll: db.Collection(sessionsCollection)}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	if _, err := s.coll.InsertOne(ctx, newSessionDoc(session, 1)); err != nil {
		return mapError(fmt.Errorf("insert session: %w", err))
	}
	session.Version = 1
	return nil
}

func (s *SessionStore) FindActive(ctx context.Context, ownerID, scopeID string) (*domain.Session, error) {
	filter := bson.D{
		{Key: "owner_id", Value: ownerID},
		{Key: "scope_id", Value: scopeID},
		{Key: "active", Value: true},
	}

	var doc sessionDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(fmt.Errorf("find active session: %w", err))
	}
	return doc.toDomain(), nil
}

func (s *SessionStore) ListPending(ctx context.Context) ([]*domain.Session, error) {
	filter := bson.D{{Key: "active", Value: true}, {Key: "notified", Value: false}}
	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError(fmt.Errorf("find pending sessions: %w", err))
	}
	var docs []sessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError(fmt.Errorf("decode pending sessions: %w", err))
	}

	sessions := make([]*domain.Session, 0, len(docs))
	for _, d := range docs {
		sessions = append(sessions, d.toDomain())
	}
	return sessions, nil
}

func (s *SessionStore) Update(ctx context.Context, session *domain.Session, expectedVersion int64) error {
	if err := replaceVersioned(ctx, s.coll, session.ID, expectedVersion, newSessionDoc(session, expectedVersion+1)); err != nil {
		return err
	}
	session.Version = expectedVersion + 1
	return nil
}
