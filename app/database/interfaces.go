package database

import (
	"github.com/thewpminute/podloom/app/feed"
)

type FeedRepository interface {
	Add(name, url string) (*Feed, error)
	Rename(id, name string) error
	Delete(id string) error
	Get(id string) (*Feed, error)
	List() ([]Feed, error)
	ListValid() ([]Feed, error)
	GetFeedCount() (int, error)

	UpdateFetchSuccess(id, etag, lastModified string, episodeCount int) error
	UpdateFetchUnchanged(id string) error
	UpdateFetchFailure(id, reason string) error
}

type EpisodeRepository interface {
	Upsert(feedID string, episodes []feed.Episode) error
	Get(feedID string, limit, offset int) ([]feed.Episode, error)
	Count(feedID string) (int, error)
	DeleteFeed(feedID string) error
	DeleteAll() error
}

type ImageRepository interface {
	Get(urlHash string) (*Image, error)
	Upsert(img Image) error
	DeleteFeed(feedID string) error
}
