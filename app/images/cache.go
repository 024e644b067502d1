package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"

	"github.com/thewpminute/podloom/app/apperr"
	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/fetch"
)

const (
	KindCover   = "cover"
	KindChapter = "chapter"

	queueTTL      = 5 * time.Minute
	maxImageBytes = 5 << 20
	fetchTimeout  = 15 * time.Second
)

// MIME allowlist and the file extension each type maps to.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type queueEntry struct {
	URL    string
	Kind   string
	FeedID string
}

// Cache mirrors the feed pipeline's conditional-fetch discipline for
// artwork. Resolve never blocks on network: unknown URLs are queued for
// asynchronous download and the original URL is returned meanwhile.
type Cache struct {
	repo    database.ImageRepository
	client  *fetch.Client
	dir     string
	baseURL string

	mu    sync.Mutex
	queue cache.Cache[string, queueEntry]
}

func NewCache(repo database.ImageRepository, client *fetch.Client, dir, baseURL string) *Cache {
	return &Cache{
		repo:    repo,
		client:  client,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		queue:   cache.NewCache[string, queueEntry]().WithTTL(queueTTL),
	}
}

// Resolve returns the cached local URL for an external artwork URL, or
// enqueues it and returns the original. Queue entries are deduplicated
// by URL hash and expire if never processed.
func (c *Cache) Resolve(url, kind, feedID string) string {
	if url == "" {
		return ""
	}

	hash := urlHash(url)
	if img, err := c.repo.Get(hash); err == nil && img != nil && img.LocalName != "" {
		return c.baseURL + "/" + img.LocalName
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, queued := c.queue.Get(hash); !queued {
		c.queue.Set(hash, queueEntry{URL: url, Kind: kind, FeedID: feedID}, queueTTL)
	}

	return url
}

// ProcessQueue pops up to maxItems queued URLs and downloads each with a
// conditional fetch. A failed item keeps its previous asset, if any, and
// never aborts the batch. Returns the number of items handled.
func (c *Cache) ProcessQueue(ctx context.Context, maxItems int) int {
	entries := c.pop(maxItems)

	for _, entry := range entries {
		if err := c.process(ctx, entry); err != nil {
			slog.Warn("Image download failed", "url", entry.URL, "error", err)
		}
	}

	return len(entries)
}

func (c *Cache) pop(maxItems int) []queueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries []queueEntry
	for _, key := range c.queue.Keys() {
		if len(entries) >= maxItems {
			break
		}
		if entry, ok := c.queue.Get(key); ok {
			entries = append(entries, entry)
			c.queue.Invalidate(key)
		}
	}
	return entries
}

func (c *Cache) process(ctx context.Context, entry queueEntry) error {
	hash := urlHash(entry.URL)

	existing, err := c.repo.Get(hash)
	if err != nil {
		return err
	}

	request := fetch.Request{
		URL:      entry.URL,
		Accept:   "image/*",
		MaxBytes: maxImageBytes,
		Timeout:  fetchTimeout,
	}
	if existing != nil {
		request.ETag = existing.ETag
		request.LastModified = existing.LastModified
	}

	result, err := c.client.Fetch(ctx, request)
	if err != nil {
		return err
	}

	// Unchanged or upstream trouble: the previous asset, if any, stays.
	if result.Status == http.StatusNotModified {
		return nil
	}
	if result.Status != http.StatusOK {
		return &apperr.TransientFetchError{URL: entry.URL, Status: result.Status}
	}

	mimeType, _, _ := strings.Cut(result.ContentType, ";")
	ext, allowed := allowedTypes[strings.TrimSpace(mimeType)]
	if !allowed {
		return &apperr.LimitExceededError{URL: entry.URL, Reason: "unsupported image type " + mimeType}
	}

	localName := hash + ext
	if err := os.WriteFile(filepath.Join(c.dir, localName), result.Body, 0o644); err != nil {
		return err
	}

	return c.repo.Upsert(database.Image{
		URLHash:      hash,
		SourceURL:    entry.URL,
		LocalName:    localName,
		ETag:         result.ETag,
		LastModified: result.LastModified,
		Kind:         entry.Kind,
		FeedID:       entry.FeedID,
		CachedAt:     time.Now().UTC(),
	})
}

func urlHash(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:16])
}
