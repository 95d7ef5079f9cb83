package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"devhelper/internal/domain"
)

const hnItemConcurrency = 5

type hnStory struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

type hackerNews struct {
	client  *client
	baseURL string
}

func (h *hackerNews) ID() string { return domain.SourceHackerNews }

// Fetch returns the current top stories. Hacker News has no tags, so tags are ignored.
func (h *hackerNews) Fetch(ctx context.Context, _ []string, limit int) ([]domain.Item, error) {
	var ids []int64
	if err := h.client.getJSON(ctx, h.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetch top stories: %w", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	var (
		mu    sync.Mutex
		items = make([]domain.Item, 0, len(ids))
		g     errgroup.Group
	)
	g.SetLimit(hnItemConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			var story hnStory
			if err := h.client.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &story); err != nil {
				h.client.logger.Warn("failed to fetch story", "external_id", id, "error", err)
				return nil
			}
			if story.ID == 0 {
				return nil
			}
			mu.Lock()
			items = append(items, h.transform(story))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return newestFirst(items, limit), nil
}

func (h *hackerNews) transform(s hnStory) domain.Item {
	link := s.URL
	if link == "" {
		link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", s.ID)
	}
	return domain.Item{
		Source:    domain.SourceHackerNews,
		Title:     s.Title,
		URL:       link,
		Author:    s.By,
		Score:     s.Score,
		Comments:  s.Descendants,
		Published: time.Unix(s.Time, 0).UTC(),
	}
}
