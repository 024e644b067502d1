package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thewpminute/podloom/app/apperr"
	"github.com/thewpminute/podloom/app/cache"
	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/feed"
	"github.com/thewpminute/podloom/app/fetch"
	"github.com/thewpminute/podloom/app/images"
)

const (
	feedTimeout  = 30 * time.Second
	feedMaxBytes = 5 << 20
	feedAccept   = "application/rss+xml, application/atom+xml, application/xml, text/xml"
)

// Refresher drives one feed through fetch, parse and the three write
// targets: ephemeral cache, durable store and registry. A refresh is
// idempotent; concurrent refreshes of the same feed are tolerated with
// last-writer-wins semantics. There is no retry loop here; retries are
// the scheduler's business.
type Refresher struct {
	feedRepo     database.FeedRepository
	episodeRepo  database.EpisodeRepository
	episodeCache *cache.EpisodeCache
	client       *fetch.Client
	parser       *feed.Parser
	images       *images.Cache
}

func NewRefresher(feedRepo database.FeedRepository, episodeRepo database.EpisodeRepository,
	episodeCache *cache.EpisodeCache, client *fetch.Client, parser *feed.Parser,
	imageCache *images.Cache) *Refresher {
	return &Refresher{
		feedRepo:     feedRepo,
		episodeRepo:  episodeRepo,
		episodeCache: episodeCache,
		client:       client,
		parser:       parser,
		images:       imageCache,
	}
}

// Run refreshes one feed. With force set, stored conditional tokens are
// ignored so a full body comes back (used on feed creation). On fetch or
// parse failure the feed is marked invalid but previously cached data
// survives: stale beats absent.
func (r *Refresher) Run(ctx context.Context, feedID string, force bool) error {
	source, err := r.feedRepo.Get(feedID)
	if err != nil {
		return err
	}
	if source == nil {
		return apperr.ErrNotFound
	}

	request := fetch.Request{
		URL:      source.URL,
		Accept:   feedAccept,
		MaxBytes: feedMaxBytes,
		Timeout:  feedTimeout,
	}
	if !force {
		request.ETag = source.ETag
		request.LastModified = source.LastModified
	}

	result, err := r.client.Fetch(ctx, request)
	if err != nil {
		r.markFailure(feedID, err)
		return err
	}

	if result.Status == http.StatusNotModified {
		slog.Debug("Feed unchanged", "feed", feedID)
		return r.feedRepo.UpdateFetchUnchanged(feedID)
	}

	if result.Status < 200 || result.Status > 299 {
		err := &apperr.TransientFetchError{URL: source.URL, Status: result.Status}
		r.markFailure(feedID, err)
		return err
	}

	channel, episodes, err := r.parser.Run(result.Body)
	if err != nil {
		r.markFailure(feedID, err)
		return err
	}

	if r.images != nil {
		for i := range episodes {
			episodes[i].ImageURL = r.images.Resolve(episodes[i].ImageURL, images.KindCover, feedID)
		}
	}

	// Ephemeral cache and durable store are projections of the same
	// refresh event; both are written before the registry flips valid.
	if err := r.episodeRepo.Upsert(feedID, episodes); err != nil {
		return fmt.Errorf("failed to store episodes: %w", err)
	}
	r.episodeCache.Set(feedID, episodes)

	if err := r.feedRepo.UpdateFetchSuccess(feedID, result.ETag, result.LastModified, len(episodes)); err != nil {
		return fmt.Errorf("failed to update feed registry: %w", err)
	}

	generation := r.episodeCache.BumpGeneration()

	slog.Info("Feed refreshed",
		"feed", feedID,
		"title", channel.Title,
		"episodes", len(episodes),
		"generation", generation)

	return nil
}

// markFailure records the failure reason without touching episode data.
// A registry write error here is only logged; the original failure is
// what the caller needs to see.
func (r *Refresher) markFailure(feedID string, cause error) {
	if err := r.feedRepo.UpdateFetchFailure(feedID, cause.Error()); err != nil {
		slog.Error("Failed to record fetch failure", "feed", feedID, "error", err)
	}
}
