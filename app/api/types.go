package api

import (
	"github.com/thewpminute/podloom/app/cache"
	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/feed"
	"github.com/thewpminute/podloom/app/fetch"
	"github.com/thewpminute/podloom/app/images"
	"github.com/thewpminute/podloom/app/ratelimit"
	"github.com/thewpminute/podloom/app/refresh"
	"github.com/thewpminute/podloom/app/tasks"
)

type Handler struct {
	feedRepo     database.FeedRepository
	episodeRepo  database.EpisodeRepository
	imageRepo    database.ImageRepository
	episodeCache *cache.EpisodeCache
	refresher    *refresh.Refresher
	chapters     *feed.ChapterResolver
	imageCache   *images.Cache
	fetchClient  *fetch.Client
	scheduler    tasks.TaskSchedulerInterface
	limiter      *ratelimit.Limiter
}

func NewHandler(feedRepo database.FeedRepository, episodeRepo database.EpisodeRepository,
	imageRepo database.ImageRepository, episodeCache *cache.EpisodeCache,
	refresher *refresh.Refresher, chapters *feed.ChapterResolver,
	imageCache *images.Cache, fetchClient *fetch.Client,
	scheduler tasks.TaskSchedulerInterface, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		feedRepo:     feedRepo,
		episodeRepo:  episodeRepo,
		imageRepo:    imageRepo,
		episodeCache: episodeCache,
		refresher:    refresher,
		chapters:     chapters,
		imageCache:   imageCache,
		fetchClient:  fetchClient,
		scheduler:    scheduler,
		limiter:      limiter,
	}
}

type feedResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	Valid         bool   `json:"valid"`
	EpisodeCount  int    `json:"episode_count"`
	LastError     string `json:"last_error,omitempty"`
	LastCheckedAt string `json:"last_checked_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type episodePage struct {
	Episodes []feed.Episode `json:"episodes"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	Pages    int            `json:"pages"`
	Error    string         `json:"error,omitempty"`
}
