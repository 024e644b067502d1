package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thewpminute/podloom/app/cache"
	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/feed"
	"github.com/thewpminute/podloom/app/fetch"
)

const refreshRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Refresh Feed</title>
    <item>
      <title>Episode 1</title>
      <link>https://example.com/ep1</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <enclosure url="https://example.com/ep1.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

// MockFeedRepository implements a simple mock for testing
type MockFeedRepository struct {
	feed *database.Feed

	successCalls   int
	unchangedCalls int
	failureCalls   int
	lastETag       string
	lastCount      int
	lastFailure    string
}

func (m *MockFeedRepository) Add(name, url string) (*database.Feed, error) { return nil, nil }
func (m *MockFeedRepository) Rename(id, name string) error                 { return nil }
func (m *MockFeedRepository) Delete(id string) error                       { return nil }
func (m *MockFeedRepository) Get(id string) (*database.Feed, error)        { return m.feed, nil }
func (m *MockFeedRepository) List() ([]database.Feed, error)               { return nil, nil }
func (m *MockFeedRepository) ListValid() ([]database.Feed, error)          { return nil, nil }
func (m *MockFeedRepository) GetFeedCount() (int, error)                   { return 0, nil }

func (m *MockFeedRepository) UpdateFetchSuccess(id, etag, lastModified string, episodeCount int) error {
	m.successCalls++
	m.lastETag = etag
	m.lastCount = episodeCount
	return nil
}

func (m *MockFeedRepository) UpdateFetchUnchanged(id string) error {
	m.unchangedCalls++
	return nil
}

func (m *MockFeedRepository) UpdateFetchFailure(id, reason string) error {
	m.failureCalls++
	m.lastFailure = reason
	return nil
}

// MockEpisodeRepository implements a simple mock for testing
type MockEpisodeRepository struct {
	upserted map[string][]feed.Episode
}

func (m *MockEpisodeRepository) Upsert(feedID string, episodes []feed.Episode) error {
	if m.upserted == nil {
		m.upserted = make(map[string][]feed.Episode)
	}
	m.upserted[feedID] = episodes
	return nil
}

func (m *MockEpisodeRepository) Get(feedID string, limit, offset int) ([]feed.Episode, error) {
	return m.upserted[feedID], nil
}

func (m *MockEpisodeRepository) Count(feedID string) (int, error) {
	return len(m.upserted[feedID]), nil
}

func (m *MockEpisodeRepository) DeleteFeed(feedID string) error { return nil }
func (m *MockEpisodeRepository) DeleteAll() error               { return nil }

func newTestRefresher(feedRepo *MockFeedRepository, episodeRepo *MockEpisodeRepository) (*Refresher, *cache.EpisodeCache) {
	// Test servers bind to loopback, which the default URL screen rejects.
	client := fetch.NewClientWithValidator("test-agent", func(string) error { return nil })
	episodeCache := cache.NewEpisodeCache(time.Minute)
	refresher := NewRefresher(feedRepo, episodeRepo, episodeCache, client, feed.NewParser(50), nil)
	return refresher, episodeCache
}

func TestRunSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(refreshRSS))
	}))
	defer server.Close()

	feedRepo := &MockFeedRepository{feed: &database.Feed{ID: "feed-1", URL: server.URL}}
	episodeRepo := &MockEpisodeRepository{}
	refresher, episodeCache := newTestRefresher(feedRepo, episodeRepo)

	if err := refresher.Run(context.Background(), "feed-1", false); err != nil {
		t.Fatal(err)
	}

	if feedRepo.successCalls != 1 {
		t.Errorf("Expected 1 success update, got %d", feedRepo.successCalls)
	}
	if feedRepo.lastETag != `"v1"` {
		t.Errorf("Expected stored ETag '\"v1\"', got '%s'", feedRepo.lastETag)
	}
	if feedRepo.lastCount != 1 {
		t.Errorf("Expected episode count 1, got %d", feedRepo.lastCount)
	}

	if len(episodeRepo.upserted["feed-1"]) != 1 {
		t.Error("Expected episodes written to the durable store")
	}

	cached, ok := episodeCache.Get("feed-1")
	if !ok || len(cached) != 1 {
		t.Error("Expected episodes in the ephemeral cache")
	}
	if episodeCache.Generation() != 1 {
		t.Errorf("Expected generation bumped to 1, got %d", episodeCache.Generation())
	}
}

func TestRunNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte(refreshRSS))
	}))
	defer server.Close()

	feedRepo := &MockFeedRepository{feed: &database.Feed{ID: "feed-1", URL: server.URL, ETag: `"v1"`}}
	episodeRepo := &MockEpisodeRepository{}
	refresher, episodeCache := newTestRefresher(feedRepo, episodeRepo)

	if err := refresher.Run(context.Background(), "feed-1", false); err != nil {
		t.Fatal(err)
	}

	if feedRepo.unchangedCalls != 1 {
		t.Errorf("Expected 1 unchanged update, got %d", feedRepo.unchangedCalls)
	}
	if feedRepo.successCalls != 0 || feedRepo.failureCalls != 0 {
		t.Error("Expected no success or failure updates on 304")
	}
	if len(episodeRepo.upserted) != 0 {
		t.Error("Expected no episode writes on 304")
	}
	if episodeCache.Generation() != 0 {
		t.Error("Expected generation untouched on 304")
	}
}

func TestRunForceSkipsConditionalHeaders(t *testing.T) {
	var sawETag bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			sawETag = true
		}
		w.Write([]byte(refreshRSS))
	}))
	defer server.Close()

	feedRepo := &MockFeedRepository{feed: &database.Feed{ID: "feed-1", URL: server.URL, ETag: `"v1"`}}
	refresher, _ := newTestRefresher(feedRepo, &MockEpisodeRepository{})

	if err := refresher.Run(context.Background(), "feed-1", true); err != nil {
		t.Fatal(err)
	}
	if sawETag {
		t.Error("Expected forced refresh to omit conditional headers")
	}
}

func TestRunUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	feedRepo := &MockFeedRepository{feed: &database.Feed{ID: "feed-1", URL: server.URL}}
	episodeRepo := &MockEpisodeRepository{}
	refresher, episodeCache := newTestRefresher(feedRepo, episodeRepo)

	// Pre-existing cached data must survive the failure.
	episodeCache.Set("feed-1", []feed.Episode{{ID: "old"}})

	if err := refresher.Run(context.Background(), "feed-1", false); err == nil {
		t.Fatal("Expected error on upstream 502")
	}

	if feedRepo.failureCalls != 1 {
		t.Errorf("Expected 1 failure update, got %d", feedRepo.failureCalls)
	}
	if feedRepo.lastFailure == "" {
		t.Error("Expected failure reason recorded")
	}

	cached, ok := episodeCache.Get("feed-1")
	if !ok || len(cached) != 1 || cached[0].ID != "old" {
		t.Error("Expected stale cache entry preserved on failure")
	}
}

func TestRunParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("completely not a feed"))
	}))
	defer server.Close()

	feedRepo := &MockFeedRepository{feed: &database.Feed{ID: "feed-1", URL: server.URL}}
	episodeRepo := &MockEpisodeRepository{}
	refresher, _ := newTestRefresher(feedRepo, episodeRepo)

	if err := refresher.Run(context.Background(), "feed-1", false); err == nil {
		t.Fatal("Expected error on unparseable body")
	}

	if feedRepo.failureCalls != 1 {
		t.Errorf("Expected 1 failure update, got %d", feedRepo.failureCalls)
	}
	if len(episodeRepo.upserted) != 0 {
		t.Error("Expected no partial episode writes on parse failure")
	}
}

func TestRunUnknownFeed(t *testing.T) {
	feedRepo := &MockFeedRepository{feed: nil}
	refresher, _ := newTestRefresher(feedRepo, &MockEpisodeRepository{})

	if err := refresher.Run(context.Background(), "missing", false); err == nil {
		t.Fatal("Expected error for unknown feed")
	}
	if feedRepo.failureCalls != 0 {
		t.Error("Expected no failure update for unknown feed")
	}
}
