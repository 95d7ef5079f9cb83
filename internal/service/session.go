package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devhelper/internal/domain"
)

type StartSessionInput struct {
	OwnerID      string
	ScopeID      string
	Destination  domain.Destination
	FocusMinutes int
	BreakMinutes int
}

// SessionStatus is the answer to a status query.
type SessionStatus struct {
	Status    domain.SessionStatus
	Remaining time.Duration
	EndTime   time.Time
	Notified  bool
}

type SessionService struct {
	store    SessionStore
	gateway  Gateway
	renderer Renderer
	logger   *slog.Logger
	opts     options
}

func NewSessionService(store SessionStore, gateway Gateway, renderer Renderer, logger *slog.Logger, opts ...Option) *SessionService {
	return &SessionService{
		store:    store,
		gateway:  gateway,
		renderer: renderer,
		logger:   logger.With("component", "sessions"),
		opts:     applyOptions(opts),
	}
}

func (s *SessionService) Start(ctx context.Context, in StartSessionInput) (*domain.Session, error) {
	existing, err := s.store.FindActive(ctx, in.OwnerID, in.ScopeID)
	switch {
	case err == nil && existing != nil:
		return nil, fmt.Errorf("%w: session %s is in %s", domain.ErrAlreadyActive, existing.ID, existing.Status)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("find active session: %w", err)
	}

	session, err := domain.NewSession(s.opts.newID(), in.OwnerID, in.ScopeID, in.Destination, in.FocusMinutes, in.BreakMinutes, s.opts.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session started",
		"session_id", session.ID,
		"owner_id", session.OwnerID,
		"scope_id", session.ScopeID,
		"focus_minutes", session.FocusMinutes,
		"end_time", session.EndTime,
	)
	return session, nil
}

// TakeBreak moves the owner's focus session into its break phase and
// edits the timer message to show it.
func (s *SessionService) TakeBreak(ctx context.Context, ownerID, scopeID string) (*domain.Session, error) {
	var session *domain.Session
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		current, err := s.findActive(ctx, ownerID, scopeID)
		if err != nil {
			return err
		}
		if current.Status != domain.SessionFocus {
			return fmt.Errorf("%w: no focus session in progress", domain.ErrNotFound)
		}
		if err := current.TakeBreak(s.opts.now()); err != nil {
			return err
		}
		if err := s.store.Update(ctx, current, current.Version); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		session = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("break started", "session_id", session.ID, "end_time", session.EndTime)
	s.notify(ctx, session, s.renderer.BreakStarted(session))
	return session, nil
}

func (s *SessionService) Cancel(ctx context.Context, ownerID, scopeID string) (*domain.Session, error) {
	var session *domain.Session
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		current, err := s.findActive(ctx, ownerID, scopeID)
		if err != nil {
			return err
		}
		if err := current.Cancel(s.opts.now()); err != nil {
			return err
		}
		if err := s.store.Update(ctx, current, current.Version); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		session = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session cancelled", "session_id", session.ID)
	s.notify(ctx, session, s.renderer.Cancelled(session))
	return session, nil
}

func (s *SessionService) Status(ctx context.Context, ownerID, scopeID string) (*SessionStatus, error) {
	session, err := s.findActive(ctx, ownerID, scopeID)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		Status:    session.Status,
		Remaining: session.Remaining(s.opts.now()),
		EndTime:   session.EndTime,
		Notified:  session.Notified,
	}, nil
}

func (s *SessionService) findActive(ctx context.Context, ownerID, scopeID string) (*domain.Session, error) {
	session, err := s.store.FindActive(ctx, ownerID, scopeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active session", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: no active session", domain.ErrNotFound)
	}
	return session, nil
}

// notify is best-effort: the state change already happened.
func (s *SessionService) notify(ctx context.Context, session *domain.Session, payload domain.Payload) {
	if payload.IsEmpty() {
		return
	}
	if err := s.gateway.Deliver(ctx, session.Destination, payload); err != nil {
		s.logger.Warn("session notice not delivered",
			"session_id", session.ID,
			"status", session.Status,
			"error", err,
		)
	}
}
