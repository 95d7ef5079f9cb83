package domain

import "time"

// Item is a single piece of digest content returned by a ContentFetcher.
type Item struct {
	Source    string
	Title     string
	URL       string
	Summary   string
	Author    string
	Score     int
	Comments  int
	Published time.Time
}
