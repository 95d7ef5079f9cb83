package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"devhelper/internal/domain"
	"devhelper/internal/scheduler"
)

const KindSessions = "sessions"

var _ scheduler.Handler[*domain.Session] = (*SessionNotifier)(nil)

// SessionNotifier tells owners that a focus or break phase has ended.
type SessionNotifier struct {
	store    SessionStore
	gateway  Gateway
	renderer Renderer
	logger   *slog.Logger
}

func NewSessionNotifier(store SessionStore, gateway Gateway, renderer Renderer, logger *slog.Logger) *SessionNotifier {
	return &SessionNotifier{
		store:    store,
		gateway:  gateway,
		renderer: renderer,
		logger:   logger.With("component", "session_notifier"),
	}
}

func (n *SessionNotifier) Kind() string { return KindSessions }

func (n *SessionNotifier) Candidates(ctx context.Context) ([]*domain.Session, error) {
	sessions, err := n.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}
	return sessions, nil
}

func (n *SessionNotifier) IsDue(session *domain.Session, now time.Time) bool {
	return session.IsDue(now)
}

func (n *SessionNotifier) Prepare(ctx context.Context, session *domain.Session, _ time.Time) (domain.Payload, error) {
	if err := n.gateway.Resolve(ctx, session.Destination); err != nil {
		return domain.Payload{}, fmt.Errorf("resolve destination for session %s: %w", session.ID, err)
	}
	if session.Status == domain.SessionBreak {
		return n.renderer.BreakComplete(session), nil
	}
	return n.renderer.FocusComplete(session), nil
}

// Commit records the notice against the version the session was listed at.
func (n *SessionNotifier) Commit(ctx context.Context, session *domain.Session, now time.Time) error {
	expected := session.Version
	if err := session.MarkNotified(now); err != nil {
		return fmt.Errorf("mark session %s notified: %w: %w", session.ID, domain.ErrConflict, err)
	}
	if err := n.store.Update(ctx, session, expected); err != nil {
		return fmt.Errorf("update session %s: %w", session.ID, err)
	}
	return nil
}

func (n *SessionNotifier) Send(ctx context.Context, session *domain.Session, payload domain.Payload) error {
	if err := n.gateway.Deliver(ctx, session.Destination, payload); err != nil {
		return fmt.Errorf("deliver session %s notice: %w", session.ID, err)
	}
	n.logger.Info("session notice delivered", "session_id", session.ID, "status", session.Status)
	return nil
}
