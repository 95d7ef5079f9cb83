package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FrequencyDaily, nil
	case FrequencyDaily, FrequencyWeekly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidArgument, s)
	}
}

// Period is the minimum spacing between two digests.
func (f Frequency) Period() time.Duration {
	if f == FrequencyWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

const (
	SourceDevTo      = "devto"
	SourceHackerNews = "hackernews"
	SourceReddit     = "reddit"
)

var AllSources = []string{SourceDevTo, SourceHackerNews, SourceReddit}

// Subscription is a periodic content digest for an owner within a scope.
type Subscription struct {
	ID          string
	OwnerID     string
	ScopeID     string
	Destination Destination
	Frequency   Frequency
	Sources     []string
	Tags        []string
	LastSent    *time.Time
	Active      bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewSubscription(id, ownerID, scopeID string, dest Destination, freq Frequency, sources, tags []string, now time.Time) (*Subscription, error) {
	if ownerID == "" || scopeID == "" {
		return nil, fmt.Errorf("%w: owner and scope are required", ErrInvalidArgument)
	}
	sub := &Subscription{
		ID:        id,
		OwnerID:   ownerID,
		ScopeID:   scopeID,
		Active:    true,
		CreatedAt: now,
	}
	if err := sub.Apply(dest, freq, sources, tags, now); err != nil {
		return nil, err
	}
	return sub, nil
}

// Apply updates the delivery preferences in place. LastSent is left untouched.
func (s *Subscription) Apply(dest Destination, freq Frequency, sources, tags []string, now time.Time) error {
	if dest.IsZero() {
		return fmt.Errorf("%w: destination is required", ErrInvalidArgument)
	}
	freq, err := ParseFrequency(string(freq))
	if err != nil {
		return err
	}
	srcs, err := NormalizeSources(sources)
	if err != nil {
		return err
	}

	s.Destination = dest
	s.Frequency = freq
	s.Sources = srcs
	s.Tags = normalizeSet(tags)
	s.Active = true
	s.UpdatedAt = now
	return nil
}

// IsDue reports whether a digest should go out at now.
func (s *Subscription) IsDue(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastSent == nil {
		return true
	}
	return now.Sub(*s.LastSent) >= s.Frequency.Period()
}

// NextDue returns the earliest instant the subscription becomes due.
func (s *Subscription) NextDue(now time.Time) time.Time {
	if s.LastSent == nil {
		return now
	}
	return s.LastSent.Add(s.Frequency.Period())
}

// MarkSent advances the watermark. It never moves backwards.
func (s *Subscription) MarkSent(now time.Time) {
	if s.LastSent != nil && now.Before(*s.LastSent) {
		now = *s.LastSent
	}
	sent := now
	s.LastSent = &sent
	s.UpdatedAt = now
}

func (s *Subscription) Deactivate(now time.Time) {
	s.Active = false
	s.UpdatedAt = now
}

// NormalizeSources lowercases, dedups and validates sources. Empty means all.
func NormalizeSources(sources []string) ([]string, error) {
	out := normalizeSet(sources)
	if len(out) == 0 {
		return slices.Clone(AllSources), nil
	}
	for _, src := range out {
		if !slices.Contains(AllSources, src) {
			return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidArgument, src)
		}
	}
	return out, nil
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
