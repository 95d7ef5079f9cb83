package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"devhelper/internal/domain"
)

const redditSummaryLimit = 150

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Selftext    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

type reddit struct {
	client     *client
	baseURL    string
	subreddits []string
}

func (r *reddit) ID() string { return domain.SourceReddit }

// Fetch reads the daily top posts. Tags select subreddits; without tags the
// default programming subreddits are used. Highest score wins.
func (r *reddit) Fetch(ctx context.Context, tags []string, limit int) ([]domain.Item, error) {
	subreddits := tags
	if len(subreddits) == 0 {
		subreddits = r.subreddits
	}

	var (
		items []domain.Item
		errs  []error
	)
	for _, sub := range subreddits {
		posts, err := r.fetchSubreddit(ctx, sub, limit)
		if err != nil {
			r.client.logger.Warn("failed to fetch subreddit", "subreddit", sub, "error", err)
			errs = append(errs, err)
			continue
		}
		items = append(items, posts...)
	}
	if len(items) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	slices.SortStableFunc(items, func(a, b domain.Item) int { return b.Score - a.Score })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *reddit) fetchSubreddit(ctx context.Context, subreddit string, limit int) ([]domain.Item, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("t", "day")

	var listing redditListing
	endpoint := fmt.Sprintf("%s/r/%s/top.json?%s", r.baseURL, url.PathEscape(subreddit), q.Encode())
	if err := r.client.getJSON(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", subreddit, err)
	}

	items := make([]domain.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		items = append(items, r.transform(child.Data))
	}
	return items, nil
}

func (r *reddit) transform(p redditPost) domain.Item {
	summary := p.Selftext
	if runes := []rune(summary); len(runes) > redditSummaryLimit {
		summary = string(runes[:redditSummaryLimit]) + "..."
	}
	return domain.Item{
		Source:    domain.SourceReddit,
		Title:     p.Title,
		URL:       "https://www.reddit.com" + p.Permalink,
		Summary:   summary,
		Author:    p.Author,
		Score:     p.Score,
		Comments:  p.NumComments,
		Published: time.Unix(int64(p.CreatedUTC), 0).UTC(),
	}
}
