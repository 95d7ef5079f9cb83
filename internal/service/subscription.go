package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"devhelper/internal/domain"
)

type SubscribeInput struct {
	OwnerID     string
	ScopeID     string
	Destination domain.Destination
	Frequency   domain.Frequency
	Sources     []string
	Tags        []string
}

type SubscriptionService struct {
	store  SubscriptionStore
	logger *slog.Logger
	opts   options
}

func NewSubscriptionService(store SubscriptionStore, logger *slog.Logger, opts ...Option) *SubscriptionService {
	return &SubscriptionService{
		store:  store,
		logger: logger.With("component", "subscriptions"),
		opts:   applyOptions(opts),
	}
}

// Subscribe creates a subscription or updates the active one in place,
// keeping its LastSent watermark.
func (s *SubscriptionService) Subscribe(ctx context.Context, in SubscribeInput) (*domain.Subscription, error) {
	var (
		sub     *domain.Subscription
		created bool
	)
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		current, err := s.store.FindActive(ctx, in.OwnerID, in.ScopeID)
		switch {
		case errors.Is(err, domain.ErrNotFound) || (err == nil && current == nil):
			fresh, err := domain.NewSubscription(s.opts.newID(), in.OwnerID, in.ScopeID, in.Destination, in.Frequency, in.Sources, in.Tags, s.opts.now())
			if err != nil {
				return err
			}
			if err := s.store.Create(ctx, fresh); err != nil {
				// Lost a race with a concurrent subscribe; retry as an update.
				if errors.Is(err, domain.ErrAlreadyActive) {
					return fmt.Errorf("create subscription: %w", domain.ErrConflict)
				}
				return fmt.Errorf("create subscription: %w", err)
			}
			sub, created = fresh, true
			return nil
		case err != nil:
			return fmt.Errorf("find active subscription: %w", err)
		}

		if err := current.Apply(in.Destination, in.Frequency, in.Sources, in.Tags, s.opts.now()); err != nil {
			return err
		}
		if err := s.store.Update(ctx, current, current.Version); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		sub, created = current, false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscribed",
		"subscription_id", sub.ID,
		"owner_id", sub.OwnerID,
		"scope_id", sub.ScopeID,
		"frequency", sub.Frequency,
		"sources", sub.Sources,
		"created", created,
	)
	return sub, nil
}

// Unsubscribe deactivates the active subscription and reports whether one existed.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, ownerID, scopeID string) (bool, error) {
	var found bool
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		current, err := s.store.FindActive(ctx, ownerID, scopeID)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && current == nil) {
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("find active subscription: %w", err)
		}
		current.Deactivate(s.opts.now())
		if err := s.store.Update(ctx, current, current.Version); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if found {
		s.logger.Info("unsubscribed", "owner_id", ownerID, "scope_id", scopeID)
	}
	return found, nil
}

func (s *SubscriptionService) Get(ctx context.Context, ownerID, scopeID string) (*domain.Subscription, error) {
	sub, err := s.store.FindActive(ctx, ownerID, scopeID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && sub == nil) {
		return nil, fmt.Errorf("%w: no active subscription", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	return sub, nil
}
