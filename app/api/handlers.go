package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/thewpminute/podloom/app/apperr"
	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/feed"
	"github.com/thewpminute/podloom/app/fetch"
	"github.com/thewpminute/podloom/app/images"
	"github.com/thewpminute/podloom/app/tasks"
)

const (
	defaultPerPage  = 10
	maxPerPage      = 50
	rawFeedMaxBytes = 5 << 20
	rawFeedTimeout  = 20 * time.Second
	minSearchTerm   = 2
)

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, toFeedResponse(f))
	}

	c.JSON(http.StatusOK, gin.H{"feeds": out, "total": len(out)})
}

func (h *Handler) AddFeed(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}
	if err := fetch.ValidateURL(body.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.feedRepo.Add(body.Name, body.URL)
	if err != nil {
		slog.Error("Database error", "operation", "add_feed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// One synchronous full refresh before the feed counts as usable; an
	// unreachable feed is kept but stays invalid with the reason
	// surfaced, so the name and URL are not lost.
	if err := h.refresher.Run(c.Request.Context(), created.ID, true); err != nil {
		stored, getErr := h.feedRepo.Get(created.ID)
		if getErr != nil || stored == nil {
			stored = created
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"feed":  toFeedResponse(*stored),
			"error": err.Error(),
		})
		return
	}

	stored, err := h.feedRepo.Get(created.ID)
	if err != nil || stored == nil {
		slog.Error("Database error", "operation", "add_feed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"feed": toFeedResponse(*stored)})
}

func (h *Handler) RenameFeed(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	if err := h.feedRepo.Rename(c.Param("id"), strings.TrimSpace(body.Name)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	feedID := c.Param("id")

	if err := h.feedRepo.Delete(feedID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	h.episodeCache.Delete(feedID)

	if err := h.episodeRepo.DeleteFeed(feedID); err != nil {
		slog.Error("Database error", "operation", "delete_episodes", "feed", feedID, "error", err)
	}
	if err := h.imageRepo.DeleteFeed(feedID); err != nil {
		slog.Error("Database error", "operation", "delete_images", "feed", feedID, "error", err)
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	feedID := c.Param("id")
	force := c.Query("force") == "true" || c.Query("force") == "1"

	if err := h.refresher.Run(c.Request.Context(), feedID, force); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.feedRepo.Get(feedID)
	if err != nil || stored == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"feed": toFeedResponse(*stored)})
}

// GetEpisodes is the public read path. It must never enter a blocking
// fetch: on cache miss it schedules a background refresh and reports
// cache_miss unless an authenticated caller explicitly allows a remote
// fetch (interactive contexts) or the caller opts into the durable
// fallback.
func (h *Handler) GetEpisodes(c *gin.Context) {
	feedID := c.Param("id")

	stored, err := h.feedRepo.Get(feedID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPerPage)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	// The remote flag forces a blocking upstream fetch, so only callers
	// holding the API key may use it. Anonymous readers stay on the
	// schedule-and-cache_miss path.
	allowRemote := c.GetString("caller") == "api" &&
		(c.Query("remote") == "true" || c.Query("remote") == "1")
	allowDurable := c.Query("durable") == "true" || c.Query("durable") == "1"

	episodes, ok := h.episodeCache.Get(feedID)
	if !ok && allowRemote {
		if err := h.refresher.Run(c.Request.Context(), feedID, false); err != nil {
			slog.Warn("Synchronous refresh failed", "feed", feedID, "error", err)
		}
		episodes, ok = h.episodeCache.Get(feedID)
	}
	if !ok && allowDurable {
		durable, err := h.episodeRepo.Get(feedID, maxPerPage, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if len(durable) > 0 {
			episodes, ok = durable, true
		}
	}
	if !ok {
		h.scheduler.Once(0, tasks.NewRefreshFeedTask(feedID, h.refresher, false))
		c.JSON(http.StatusOK, episodePage{
			Episodes: []feed.Episode{},
			Page:     page,
			Error:    "cache_miss",
		})
		return
	}

	total := len(episodes)
	pages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, episodePage{
		Episodes: episodes[start:end],
		Total:    total,
		Page:     page,
		Pages:    pages,
	})
}

// GetEpisodePayload serves the extension payload for one episode's tab
// content, resolving the external chapters document on demand.
func (h *Handler) GetEpisodePayload(c *gin.Context) {
	feedID := c.Param("id")
	episodeID := c.Param("episodeID")

	episode, found := h.findEpisode(feedID, episodeID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Episode not found"})
		return
	}

	payload := episode.Extensions
	if payload.Chapters != nil {
		payload.Chapters = h.chapters.Resolve(c.Request.Context(), payload.Chapters)
		for i := range payload.Chapters.Chapters {
			chapter := &payload.Chapters.Chapters[i]
			chapter.Img = h.imageCache.Resolve(chapter.Img, images.KindChapter, feedID)
		}
	}

	c.JSON(http.StatusOK, payload)
}

func (h *Handler) SearchEpisodes(c *gin.Context) {
	feedID := c.Param("id")

	term := strings.TrimSpace(c.Query("q"))
	if utf8.RuneCountInString(term) < minSearchTerm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search term must be at least 2 characters"})
		return
	}

	limit := queryInt(c, "limit", defaultPerPage)
	if limit < 1 || limit > maxPerPage {
		limit = defaultPerPage
	}
	order := c.DefaultQuery("order", "desc")

	episodes, _ := h.episodeCache.Get(feedID)

	term = strings.ToLower(term)
	matches := make([]feed.Episode, 0)
	for _, episode := range episodes {
		if strings.Contains(strings.ToLower(episode.Title), term) {
			matches = append(matches, episode)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if order == "asc" {
			return matches[i].PublishedAt < matches[j].PublishedAt
		}
		return matches[i].PublishedAt > matches[j].PublishedAt
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"episodes": matches, "total": len(matches)})
}

// GetRawFeed re-fetches the upstream document for diagnostics, size
// capped and without conditional headers so the full body comes back.
func (h *Handler) GetRawFeed(c *gin.Context) {
	feedID := c.Param("id")

	stored, err := h.feedRepo.Get(feedID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	result, err := h.fetchClient.Fetch(c.Request.Context(), fetch.Request{
		URL:      stored.URL,
		Accept:   "application/rss+xml, application/atom+xml, application/xml, text/xml",
		MaxBytes: rawFeedMaxBytes,
		Timeout:  rawFeedTimeout,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if result.Status != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream returned status " + strconv.Itoa(result.Status)})
		return
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", result.Body)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":  time.Now().In(time.Local).Format(time.RFC3339),
		"generation": h.episodeCache.Generation(),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}

// findEpisode looks in the ephemeral cache first and falls back to the
// durable store, since extension tabs may outlive the cache entry.
func (h *Handler) findEpisode(feedID, episodeID string) (feed.Episode, bool) {
	if episodes, ok := h.episodeCache.Get(feedID); ok {
		for _, episode := range episodes {
			if episode.ID == episodeID {
				return episode, true
			}
		}
	}

	durable, err := h.episodeRepo.Get(feedID, maxPerPage, 0)
	if err != nil {
		return feed.Episode{}, false
	}
	for _, episode := range durable {
		if episode.ID == episodeID {
			return episode, true
		}
	}
	return feed.Episode{}, false
}

func toFeedResponse(f database.Feed) feedResponse {
	out := feedResponse{
		ID:           f.ID,
		Name:         f.Name,
		URL:          f.URL,
		Valid:        f.Valid,
		EpisodeCount: f.EpisodeCount,
		LastError:    f.LastError,
		CreatedAt:    f.CreatedAt.Format(time.RFC3339),
	}
	if f.LastCheckedAt != nil {
		out.LastCheckedAt = f.LastCheckedAt.Format(time.RFC3339)
	}
	return out
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
