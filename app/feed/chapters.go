package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/thewpminute/podloom/app/fetch"
)

const (
	chaptersTimeout  = 10 * time.Second
	chaptersMaxBytes = 1 << 20
)

// ChapterResolver fetches and parses external chapter documents. Chapter
// data is best-effort: every failure mode yields the chapter reference
// with an empty list, never an error.
type ChapterResolver struct {
	client *fetch.Client
}

func NewChapterResolver(client *fetch.Client) *ChapterResolver {
	return &ChapterResolver{client: client}
}

func (r *ChapterResolver) Resolve(ctx context.Context, chapters *Chapters) *Chapters {
	if chapters == nil || chapters.URL == "" {
		return chapters
	}

	empty := &Chapters{URL: chapters.URL, Type: chapters.Type, Chapters: []Chapter{}}

	result, err := r.client.Fetch(ctx, fetch.Request{
		URL:      chapters.URL,
		Accept:   "application/json",
		MaxBytes: chaptersMaxBytes,
		Timeout:  chaptersTimeout,
	})
	if err != nil {
		slog.Debug("Chapter fetch failed", "url", chapters.URL, "error", err)
		return empty
	}
	if result.Status != http.StatusOK {
		slog.Debug("Chapter fetch returned non-200", "url", chapters.URL, "status", result.Status)
		return empty
	}

	parsed, err := parseChapterJSON(result.Body)
	if err != nil {
		slog.Debug("Chapter JSON invalid", "url", chapters.URL, "error", err)
		return empty
	}

	return &Chapters{URL: chapters.URL, Type: chapters.Type, Chapters: parsed}
}

// parseChapterJSON accepts both the enveloped form {"chapters": [...]}
// and a bare array of chapter entries.
func parseChapterJSON(data []byte) ([]Chapter, error) {
	var envelope struct {
		Chapters []Chapter `json:"chapters"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Chapters != nil {
		return envelope.Chapters, nil
	}

	var bare []Chapter
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}
