package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/thewpminute/podloom/app/fetch"
)

// Test servers bind to loopback, which the default URL screen rejects.
func newTestResolver() *ChapterResolver {
	client := fetch.NewClientWithValidator("test-agent", func(string) error { return nil })
	return NewChapterResolver(client)
}

func TestResolveChaptersEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json+chapters")
		w.Write([]byte(`{"version":"1.2.0","chapters":[{"startTime":0,"title":"Intro"},{"startTime":120.5,"title":"Main topic","img":"https://example.com/ch2.jpg"}]}`))
	}))
	defer server.Close()

	resolver := newTestResolver()
	resolved := resolver.Resolve(context.Background(), &Chapters{URL: server.URL, Type: "application/json+chapters"})

	if len(resolved.Chapters) != 2 {
		t.Fatalf("Expected 2 chapters, got %d", len(resolved.Chapters))
	}
	if resolved.Chapters[0].Title != "Intro" || resolved.Chapters[0].StartTime != 0 {
		t.Errorf("Unexpected first chapter: %+v", resolved.Chapters[0])
	}
	if resolved.Chapters[1].StartTime != 120.5 {
		t.Errorf("Expected startTime 120.5, got %v", resolved.Chapters[1].StartTime)
	}
	if resolved.Chapters[1].Img != "https://example.com/ch2.jpg" {
		t.Errorf("Expected chapter image, got '%s'", resolved.Chapters[1].Img)
	}
}

func TestResolveChaptersBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"startTime":10,"title":"Only chapter"}]`))
	}))
	defer server.Close()

	resolver := newTestResolver()
	resolved := resolver.Resolve(context.Background(), &Chapters{URL: server.URL})

	if len(resolved.Chapters) != 1 || resolved.Chapters[0].Title != "Only chapter" {
		t.Errorf("Expected bare array accepted, got %+v", resolved.Chapters)
	}
}

func TestResolveChaptersInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	resolver := newTestResolver()
	resolved := resolver.Resolve(context.Background(), &Chapters{URL: server.URL, Type: "application/json+chapters"})

	if resolved == nil {
		t.Fatal("Expected a chapters value, got nil")
	}
	if resolved.Chapters == nil || len(resolved.Chapters) != 0 {
		t.Errorf("Expected empty chapter list on invalid JSON, got %+v", resolved.Chapters)
	}
	if resolved.URL != server.URL {
		t.Error("Expected the reference URL preserved")
	}
}

func TestResolveChaptersHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := newTestResolver()
	resolved := resolver.Resolve(context.Background(), &Chapters{URL: server.URL})

	if len(resolved.Chapters) != 0 {
		t.Errorf("Expected empty chapter list on 404, got %+v", resolved.Chapters)
	}
}

func TestResolveChaptersNilReference(t *testing.T) {
	resolver := newTestResolver()
	if resolved := resolver.Resolve(context.Background(), nil); resolved != nil {
		t.Errorf("Expected nil passthrough, got %+v", resolved)
	}
}
