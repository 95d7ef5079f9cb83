// Package feed fetches developer news from Dev.to, Hacker News and Reddit.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"devhelper/internal/domain"
)

type source interface {
	ID() string
	Fetch(ctx context.Context, tags []string, limit int) ([]domain.Item, error)
}

// Aggregator merges items from several sources, newest first.
type Aggregator struct {
	sources map[string]source
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Aggregator {
	cfg.setDefaults()
	logger = logger.With("component", "feed")
	c := newClient(cfg, logger)

	return NewAggregator(logger,
		&devTo{client: c, baseURL: cfg.DevToURL},
		&hackerNews{client: c, baseURL: cfg.HackerNewsURL},
		&reddit{client: c, baseURL: cfg.RedditURL, subreddits: cfg.Subreddits},
	)
}

func NewAggregator(logger *slog.Logger, sources ...source) *Aggregator {
	a := &Aggregator{sources: make(map[string]source, len(sources)), logger: logger}
	for _, s := range sources {
		a.sources[s.ID()] = s
	}
	return a
}

// Fetch asks each requested source for up to limit items and returns at most
// limit*len(sources) items, one per URL. A failing source is skipped; the call fails only
// when every requested source failed.
func (a *Aggregator) Fetch(ctx context.Context, sources, tags []string, limit int) ([]domain.Item, error) {
	if len(sources) == 0 {
		sources = domain.AllSources
	}

	var (
		mu    sync.Mutex
		items []domain.Item
		errs  []error
		g     errgroup.Group
	)
	for _, id := range sources {
		src, ok := a.sources[id]
		if !ok {
			mu.Lock()
			errs = append(errs, fmt.Errorf("unknown source %q", id))
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			got, err := src.Fetch(ctx, tags, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.logger.Warn("source failed", "source", id, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				return nil
			}
			items = append(items, got...)
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(sources) {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(errs...))
	}

	a.logger.Debug("fetched feed items", "sources", sources, "items", len(items), "failed", len(errs))
	// Sort before deduping so the newest copy of a shared link survives.
	items = dedupe(newestFirst(items, 0))
	if total := limit * len(sources); total > 0 && len(items) > total {
		items = items[:total]
	}
	return items, nil
}

func newestFirst(items []domain.Item, limit int) []domain.Item {
	slices.SortStableFunc(items, func(a, b domain.Item) int {
		return b.Published.Compare(a.Published)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func dedupe(items []domain.Item) []domain.Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item.URL]; ok {
			continue
		}
		seen[item.URL] = struct{}{}
		out = append(out, item)
	}
	return out
}
