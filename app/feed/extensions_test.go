package feed

import (
	"testing"
)

const extensionsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0">
  <channel>
    <title>Extended Feed</title>
    <podcast:funding url="https://example.com/support">Support the show</podcast:funding>
    <podcast:person role="host" img="https://example.com/alice.jpg" href="https://example.com/alice">Alice</podcast:person>
    <podcast:person role="co-host">Bob</podcast:person>
    <item>
      <title>Episode 1</title>
      <link>https://example.com/ep1</link>
      <podcast:transcript url="https://example.com/ep1.vtt" type="text/vtt"/>
      <podcast:transcript url="https://example.com/ep1.srt" type="application/srt" language="es"/>
      <podcast:person role="guest">Carol</podcast:person>
      <podcast:chapters url="https://example.com/ep1-chapters.json" type="application/json+chapters"/>
    </item>
  </channel>
</rss>`

func TestExtensionParserChannel(t *testing.T) {
	parser := NewExtensionParser()
	channel, items := parser.Run([]byte(extensionsRSS))

	if channel.Funding == nil {
		t.Fatal("Expected channel funding")
	}
	if channel.Funding.URL != "https://example.com/support" {
		t.Errorf("Expected funding URL 'https://example.com/support', got '%s'", channel.Funding.URL)
	}
	if channel.Funding.Text != "Support the show" {
		t.Errorf("Expected funding text 'Support the show', got '%s'", channel.Funding.Text)
	}

	if len(channel.People) != 2 {
		t.Fatalf("Expected 2 channel people, got %d", len(channel.People))
	}
	if channel.People[0].Name != "Alice" || channel.People[0].Role != "host" {
		t.Errorf("Expected Alice as host, got %s/%s", channel.People[0].Name, channel.People[0].Role)
	}
	if channel.People[0].Image != "https://example.com/alice.jpg" {
		t.Errorf("Expected person image, got '%s'", channel.People[0].Image)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item payload, got %d", len(items))
	}
}

func TestExtensionParserItem(t *testing.T) {
	parser := NewExtensionParser()
	_, items := parser.Run([]byte(extensionsRSS))
	item := items[0]

	if len(item.Transcripts) != 2 {
		t.Fatalf("Expected 2 transcripts, got %d", len(item.Transcripts))
	}
	if item.Transcripts[0].Label != "VTT" {
		t.Errorf("Expected label 'VTT' for untagged text/vtt, got '%s'", item.Transcripts[0].Label)
	}
	if item.Transcripts[1].Label != "ES" {
		t.Errorf("Expected label 'ES' from language attribute, got '%s'", item.Transcripts[1].Label)
	}

	if len(item.People) != 1 || item.People[0].Name != "Carol" || item.People[0].Role != "guest" {
		t.Errorf("Expected Carol as guest, got %+v", item.People)
	}

	if item.Chapters == nil {
		t.Fatal("Expected chapters reference")
	}
	if item.Chapters.URL != "https://example.com/ep1-chapters.json" {
		t.Errorf("Expected chapters URL, got '%s'", item.Chapters.URL)
	}
	if len(item.Chapters.Chapters) != 0 {
		t.Error("Expected chapters list empty until resolved")
	}
}

func TestExtensionParserNamespaceVariants(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:podcast="https://github.com/Podcastindex-org/podcast-namespace/blob/main/docs/1.0.md">
  <channel>
    <title>Variant Feed</title>
    <podcast:funding url="https://example.com/fund">Fund us</podcast:funding>
  </channel>
</rss>`

	parser := NewExtensionParser()
	channel, _ := parser.Run([]byte(rssData))
	if channel.Funding == nil {
		t.Fatal("Expected funding parsed under the github namespace variant")
	}
	if channel.Funding.URL != "https://example.com/fund" {
		t.Errorf("Expected funding URL 'https://example.com/fund', got '%s'", channel.Funding.URL)
	}
}

func TestExtensionParserCanonicalVariantWins(t *testing.T) {
	// Both variants declared; the canonical URI is probed first.
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0" xmlns:pc2="https://github.com/Podcastindex-org/podcast-namespace/blob/main/docs/1.0.md">
  <channel>
    <title>Dual Feed</title>
    <pc2:funding url="https://example.com/other">Other</pc2:funding>
    <podcast:funding url="https://example.com/canonical">Canonical</podcast:funding>
  </channel>
</rss>`

	parser := NewExtensionParser()
	channel, _ := parser.Run([]byte(rssData))
	if channel.Funding == nil {
		t.Fatal("Expected funding")
	}
	if channel.Funding.URL != "https://example.com/canonical" {
		t.Errorf("Expected canonical namespace to win, got '%s'", channel.Funding.URL)
	}
}

func TestExtensionParserUnknownNamespaceIgnored(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:podcast="https://example.com/not-the-namespace">
  <channel>
    <title>Feed</title>
    <podcast:funding url="https://example.com/fund">Fund us</podcast:funding>
  </channel>
</rss>`

	parser := NewExtensionParser()
	channel, _ := parser.Run([]byte(rssData))
	if channel.Funding != nil {
		t.Error("Expected elements under unknown namespaces to be ignored")
	}
}

func TestExtensionParserDefaultRole(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0">
  <channel>
    <title>Feed</title>
    <podcast:person>Dave</podcast:person>
  </channel>
</rss>`

	parser := NewExtensionParser()
	channel, _ := parser.Run([]byte(rssData))
	if len(channel.People) != 1 {
		t.Fatal("Expected one person")
	}
	if channel.People[0].Role != "host" {
		t.Errorf("Expected default role 'host', got '%s'", channel.People[0].Role)
	}
}

func TestMergeFundingItemWins(t *testing.T) {
	item := Extensions{Funding: &Funding{URL: "https://example.com/item"}}
	channel := Extensions{Funding: &Funding{URL: "https://example.com/channel"}}

	merged := Merge(item, channel)
	if merged.Funding.URL != "https://example.com/item" {
		t.Errorf("Expected item funding to win, got '%s'", merged.Funding.URL)
	}

	merged = Merge(Extensions{}, channel)
	if merged.Funding.URL != "https://example.com/channel" {
		t.Errorf("Expected channel funding fallback, got '%s'", merged.Funding.URL)
	}
}

func TestMergePeopleOrdering(t *testing.T) {
	item := Extensions{People: []Person{
		{Name: "Gary", Role: "guest"},
		{Name: "Zoe", Role: "narrator"},
	}}
	channel := Extensions{People: []Person{
		{Name: "Bob", Role: "co-host"},
		{Name: "Alice", Role: "host"},
	}}

	merged := Merge(item, channel)
	if len(merged.People) != 4 {
		t.Fatalf("Expected 4 merged people, got %d", len(merged.People))
	}

	want := []string{"Alice", "Bob", "Gary", "Zoe"}
	for i, name := range want {
		if merged.People[i].Name != name {
			t.Errorf("Position %d: expected '%s', got '%s'", i, name, merged.People[i].Name)
		}
	}

	if len(merged.PeopleChannel) != 2 || merged.PeopleChannel[0].Name != "Bob" {
		t.Errorf("Expected channel sub-list preserved in source order, got %+v", merged.PeopleChannel)
	}
	if len(merged.PeopleEpisode) != 2 || merged.PeopleEpisode[0].Name != "Gary" {
		t.Errorf("Expected episode sub-list preserved in source order, got %+v", merged.PeopleEpisode)
	}
}

func TestMergeTranscriptsConcatenate(t *testing.T) {
	item := Extensions{Transcripts: []Transcript{{URL: "https://example.com/item.vtt"}}}
	channel := Extensions{Transcripts: []Transcript{{URL: "https://example.com/channel.vtt"}}}

	merged := Merge(item, channel)
	if len(merged.Transcripts) != 2 {
		t.Fatalf("Expected 2 transcripts, got %d", len(merged.Transcripts))
	}
	if merged.Transcripts[0].URL != "https://example.com/item.vtt" {
		t.Error("Expected item transcripts first")
	}
}

func TestParserMergesExtensionsIntoEpisodes(t *testing.T) {
	parser := NewParser(50)
	_, episodes, err := parser.Run([]byte(extensionsRSS))
	if err != nil {
		t.Fatal(err)
	}
	if len(episodes) != 1 {
		t.Fatalf("Expected 1 episode, got %d", len(episodes))
	}

	ext := episodes[0].Extensions
	if ext.Funding == nil || ext.Funding.URL != "https://example.com/support" {
		t.Error("Expected channel funding inherited by the episode")
	}
	if len(ext.People) != 3 {
		t.Fatalf("Expected 3 merged people, got %d", len(ext.People))
	}
	if ext.People[0].Name != "Alice" || ext.People[2].Name != "Carol" {
		t.Errorf("Expected host first and guest last, got %+v", ext.People)
	}
	if ext.Chapters == nil {
		t.Error("Expected episode chapters reference")
	}
}
