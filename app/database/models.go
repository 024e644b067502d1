package database

import (
	"time"
)

// Feed is a configured external syndication source. valid=false never
// implies deletion of previously cached episodes; it only pauses the
// background sweep for this source.
type Feed struct {
	ID            string
	Name          string
	URL           string
	Valid         bool
	ETag          string
	LastModified  string
	EpisodeCount  int
	LastError     string
	LastCheckedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Image maps an external artwork URL to a locally cached asset, keyed by
// the hash of the source URL.
type Image struct {
	URLHash      string
	SourceURL    string
	LocalName    string
	ETag         string
	LastModified string
	Kind         string // cover or chapter
	FeedID       string
	CachedAt     time.Time
}
