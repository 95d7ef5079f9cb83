package feed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"devhelper/internal/domain"
)

type devToArticle struct {
	ID                     int64  `json:"id"`
	Title                  string `json:"title"`
	Description            string `json:"description"`
	URL                    string `json:"url"`
	PublishedAt            string `json:"published_at"`
	PositiveReactionsCount int    `json:"positive_reactions_count"`
	CommentsCount          int    `json:"comments_count"`
	User                   struct {
		Username string `json:"username"`
	} `json:"user"`
}

type devTo struct {
	client  *client
	baseURL string
}

func (d *devTo) ID() string { return domain.SourceDevTo }

// Fetch queries the latest articles, once per tag when tags are given.
func (d *devTo) Fetch(ctx context.Context, tags []string, limit int) ([]domain.Item, error) {
	if len(tags) == 0 {
		tags = []string{""}
	}

	var items []domain.Item
	for _, tag := range tags {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(limit))
		if tag != "" {
			q.Set("tag", tag)
		}

		var articles []devToArticle
		if err := d.client.getJSON(ctx, d.baseURL+"/articles?"+q.Encode(), &articles); err != nil {
			return nil, fmt.Errorf("fetch dev.to articles: %w", err)
		}
		for _, a := range articles {
			items = append(items, d.transform(a))
		}
	}
	return newestFirst(dedupe(items), limit), nil
}

func (d *devTo) transform(a devToArticle) domain.Item {
	published, err := time.Parse(time.RFC3339, a.PublishedAt)
	if err != nil {
		d.client.logger.Warn("failed to parse date", "external_id", a.ID, "date", a.PublishedAt)
	}
	return domain.Item{
		Source:    domain.SourceDevTo,
		Title:     a.Title,
		URL:       a.URL,
		Summary:   a.Description,
		Author:    a.User.Username,
		Score:     a.PositiveReactionsCount,
		Comments:  a.CommentsCount,
		Published: published,
	}
}
