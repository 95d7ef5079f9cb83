package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"devhelper/internal/domain"
)

type SessionStore interface {
	// Create fails with domain.ErrAlreadyActive when the owner already has
	// an active session in the scope.
	Create(ctx context.Context, session *domain.Session) error
	FindActive(ctx context.Context, ownerID, scopeID string) (*domain.Session, error)
	// ListPending returns active sessions whose current phase was not notified yet.
	ListPending(ctx context.Context) ([]*domain.Session, error)
	// Update persists session only if the stored version still equals
	// expectedVersion, and bumps session.Version on success.
	Update(ctx context.Context, session *domain.Session, expectedVersion int64) error
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	FindActive(ctx context.Context, ownerID, scopeID string) (*domain.Subscription, error)
	ListActive(ctx context.Context) ([]*domain.Subscription, error)
	Update(ctx context.Context, sub *domain.Subscription, expectedVersion int64) error
}

// Gateway delivers rendered payloads to destinations.
type Gateway interface {
	// Resolve checks that the destination still exists. It returns an error
	// wrapping domain.ErrDestinationUnreachable when it does not.
	Resolve(ctx context.Context, dest domain.Destination) error
	Deliver(ctx context.Context, dest domain.Destination, payload domain.Payload) error
}

type ContentFetcher interface {
	Fetch(ctx context.Context, sources, tags []string, limit int) ([]domain.Item, error)
}

type Renderer interface {
	FocusComplete(session *domain.Session) domain.Payload
	BreakComplete(session *domain.Session) domain.Payload
	BreakStarted(session *domain.Session) domain.Payload
	Cancelled(session *domain.Session) domain.Payload
	Digest(sub *domain.Subscription, items []domain.Item) domain.Payload
}
