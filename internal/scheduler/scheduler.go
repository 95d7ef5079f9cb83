package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"devhelper/internal/domain"
)

var ErrAlreadyRunning = errors.New("poller already running")

// Handler plugs one entity kind into a Poller.
//
// For every due entity the Poller calls Prepare, then Commit, then Send.
// Prepare must not mutate persisted state. Commit must be a conditional
// update that fails with domain.ErrConflict when the entity changed since
// it was listed. Send happens only after a successful Commit, so a delivery
// is attempted at most once per due instant.
type Handler[T any] interface {
	Kind() string
	Candidates(ctx context.Context) ([]T, error)
	IsDue(item T, now time.Time) bool
	Prepare(ctx context.Context, item T, now time.Time) (domain.Payload, error)
	Commit(ctx context.Context, item T, now time.Time) error
	Send(ctx context.Context, item T, payload domain.Payload) error
}

type Config struct {
	Interval    time.Duration
	Workers     int
	TickTimeout time.Duration
	RunOnStart  bool
}

// TickStats summarizes a single tick.
type TickStats struct {
	Candidates  int
	Due         int
	Delivered   int
	Failed      int
	Unreachable int
	Conflicts   int
	Skipped     int
	Duration    time.Duration
}

type Poller[T any] struct {
	handler Handler[T]
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func NewPoller[T any](handler Handler[T], cfg Config, logger *slog.Logger, opts ...Option) *Poller[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = 5 * time.Minute
	}
	return &Poller[T]{
		handler: handler,
		cfg:     cfg,
		logger:  logger.With("kind", handler.Kind()),
		now:     o.now,
	}
}

// Start launches the tick loop in the background. The loop ends when ctx is
// cancelled or Stop is called.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running() {
		return ErrAlreadyRunning
	}
	if p.cfg.Interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", p.cfg.Interval)
	}

	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx, p.stopCh, p.done)

	p.logger.Info("poller started", "interval", p.cfg.Interval, "workers", p.cfg.Workers)
	return nil
}

// Stop prevents new ticks and waits for the current one to finish.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopCh == nil {
		p.mu.Unlock()
		return
	}
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("poller stopped")
}

func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running()
}

func (p *Poller[T]) running() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller[T]) run(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	if p.cfg.RunOnStart {
		p.runTick(ctx, stopCh)
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			p.runTick(ctx, stopCh)
		}
	}
}

func (p *Poller[T]) runTick(ctx context.Context, stopCh <-chan struct{}) {
	// Deliveries already dispatched must finish even when the caller's
	// context is cancelled mid-tick.
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.TickTimeout)
	defer cancel()

	if _, err := p.tick(tickCtx, stopCh); err != nil {
		p.logger.Error("tick failed", "error", err)
	}
}

// Tick runs a single poll cycle synchronously.
func (p *Poller[T]) Tick(ctx context.Context) (*TickStats, error) {
	return p.tick(ctx, nil)
}

func (p *Poller[T]) tick(ctx context.Context, stopCh <-chan struct{}) (*TickStats, error) {
	kind := p.handler.Kind()
	start := time.Now()
	now := p.now()

	items, err := p.handler.Candidates(ctx)
	if err != nil {
		recordTick(kind, "error", time.Since(start))
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	due := make([]T, 0, len(items))
	for _, item := range items {
		if p.handler.IsDue(item, now) {
			due = append(due, item)
		}
	}
	recordDue(kind, len(due))

	stats := &TickStats{Candidates: len(items), Due: len(due)}
	if len(due) == 0 {
		stats.Duration = time.Since(start)
		recordTick(kind, "ok", stats.Duration)
		return stats, nil
	}

	var (
		mu      sync.Mutex
		aborted atomic.Bool
		g       errgroup.Group
	)
	g.SetLimit(p.cfg.Workers)

	for _, item := range due {
		if aborted.Load() || stopped(stopCh) {
			break
		}
		g.Go(func() error {
			if aborted.Load() || stopped(stopCh) {
				return nil
			}
			outcome, err := p.process(ctx, item, now)
			recordDelivery(kind, outcome)

			mu.Lock()
			stats.add(outcome)
			mu.Unlock()

			if outcome == outcomeAborted {
				aborted.Store(true)
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	stats.Duration = time.Since(start)

	if err != nil {
		recordTick(kind, "aborted", stats.Duration)
		return stats, fmt.Errorf("tick aborted: %w", err)
	}
	recordTick(kind, "ok", stats.Duration)

	p.logger.Info("tick completed",
		"candidates", stats.Candidates,
		"due", stats.Due,
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"unreachable", stats.Unreachable,
		"conflicts", stats.Conflicts,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (p *Poller[T]) process(ctx context.Context, item T, now time.Time) (string, error) {
	payload, err := p.handler.Prepare(ctx, item, now)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDestinationUnreachable):
		p.logger.Warn("destination unreachable, leaving entity untouched", "error", err)
		return outcomeUnreachable, nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		return outcomeAborted, err
	default:
		p.logger.Warn("prepare failed, will retry next tick", "error", err)
		return outcomeSkipped, nil
	}

	if err := p.handler.Commit(ctx, item, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			p.logger.Info("entity changed concurrently, skipping delivery", "error", err)
			return outcomeConflict, nil
		}
		return outcomeAborted, fmt.Errorf("commit: %w", err)
	}

	if err := p.handler.Send(ctx, item, payload); err != nil {
		p.logger.Error("delivery failed after commit", "error", err)
		return outcomeFailed, nil
	}
	return outcomeDelivered, nil
}

func (s *TickStats) add(outcome string) {
	switch outcome {
	case outcomeDelivered:
		s.Delivered++
	case outcomeFailed:
		s.Failed++
	case outcomeUnreachable:
		s.Unreachable++
	case outcomeConflict:
		s.Conflicts++
	case outcomeSkipped:
		s.Skipped++
	}
}

func stopped(stopCh <-chan struct{}) bool {
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}
