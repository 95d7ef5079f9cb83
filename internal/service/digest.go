package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"devhelper/internal/domain"
	"devhelper/internal/scheduler"
)

const (
	KindDigests = "digests"

	// DefaultDigestItemsPerSource caps how many items each source contributes.
	DefaultDigestItemsPerSource = 5
)

var _ scheduler.Handler[*domain.Subscription] = (*DigestDispatcher)(nil)

// DigestDispatcher sends periodic content digests to active subscriptions.
type DigestDispatcher struct {
	store     SubscriptionStore
	gateway   Gateway
	fetcher   ContentFetcher
	renderer  Renderer
	perSource int
	logger    *slog.Logger
}

func NewDigestDispatcher(
	store SubscriptionStore,
	gateway Gateway,
	fetcher ContentFetcher,
	renderer Renderer,
	perSource int,
	logger *slog.Logger,
) *DigestDispatcher {
	if perSource <= 0 {
		perSource = DefaultDigestItemsPerSource
	}
	return &DigestDispatcher{
		store:     store,
		gateway:   gateway,
		fetcher:   fetcher,
		renderer:  renderer,
		perSource: perSource,
		logger:    logger.With("component", "digest_dispatcher"),
	}
}

func (d *DigestDispatcher) Kind() string { return KindDigests }

func (d *DigestDispatcher) Candidates(ctx context.Context) ([]*domain.Subscription, error) {
	subs, err := d.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	return subs, nil
}

func (d *DigestDispatcher) IsDue(sub *domain.Subscription, now time.Time) bool {
	return sub.IsDue(now)
}

// Prepare fetches fresh content. An empty result renders an empty payload:
// the watermark still advances so the subscription is not retried every tick.
func (d *DigestDispatcher) Prepare(ctx context.Context, sub *domain.Subscription, _ time.Time) (domain.Payload, error) {
	if err := d.gateway.Resolve(ctx, sub.Destination); err != nil {
		return domain.Payload{}, fmt.Errorf("resolve destination for subscription %s: %w", sub.ID, err)
	}

	items, err := d.fetcher.Fetch(ctx, sub.Sources, sub.Tags, d.perSource)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("fetch content for subscription %s: %w", sub.ID, err)
	}
	if len(items) == 0 {
		d.logger.Info("no content for digest", "subscription_id", sub.ID)
		return domain.Payload{}, nil
	}
	return d.renderer.Digest(sub, items), nil
}

func (d *DigestDispatcher) Commit(ctx context.Context, sub *domain.Subscription, now time.Time) error {
	expected := sub.Version
	sub.MarkSent(now)
	if err := d.store.Update(ctx, sub, expected); err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (d *DigestDispatcher) Send(ctx context.Context, sub *domain.Subscription, payload domain.Payload) error {
	if payload.IsEmpty() {
		return nil
	}
	if err := d.gateway.Deliver(ctx, sub.Destination, payload); err != nil {
		return fmt.Errorf("deliver digest for subscription %s: %w", sub.ID, err)
	}
	d.logger.Info("digest delivered", "subscription_id", sub.ID, "frequency", sub.Frequency)
	return nil
}
