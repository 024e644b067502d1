package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/thewpminute/podloom/app/apperr"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	extParser    *ExtensionParser
	sanitizer    *bluemonday.Policy
	maxEpisodes  int
}

func NewParser(maxEpisodes int) *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		extParser:    NewExtensionParser(),
		sanitizer:    bluemonday.UGCPolicy(),
		maxEpisodes:  maxEpisodes,
	}
}

// Run parses raw feed bytes into channel metadata and an episode list
// capped at the configured maximum, ordered newest-first. A malformed
// body yields a ParseError, never a partial result.
func (p *Parser) Run(data []byte) (*Channel, []Episode, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &apperr.ParseError{Err: err}
	}

	channel := &Channel{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}

	if parsed.Image != nil {
		channel.ImageURL = parsed.Image.URL
	}
	if parsed.ITunesExt != nil {
		channel.Author = parsed.ITunesExt.Author
		channel.ImageURL = cmp.Or(parsed.ITunesExt.Image, channel.ImageURL)
	}

	channelExt, itemExts := p.extParser.Run(data)
	channel.Extensions = channelExt

	episodes := make([]Episode, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		episode := p.normalizeItem(item, channel)

		var itemExt Extensions
		if i < len(itemExts) {
			itemExt = itemExts[i]
		}
		episode.Extensions = Merge(itemExt, channelExt)

		episodes = append(episodes, episode)
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].PublishedAt > episodes[j].PublishedAt
	})
	if p.maxEpisodes > 0 && len(episodes) > p.maxEpisodes {
		episodes = episodes[:p.maxEpisodes]
	}

	return channel, episodes, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, channel *Channel) Episode {
	episode := Episode{
		Title:       item.Title,
		Description: p.sanitizer.Sanitize(item.Description),
		Content:     p.sanitizer.Sanitize(item.Content),
		Link:        item.Link,
		ImageURL:    channel.ImageURL,
	}

	if item.PublishedParsed != nil {
		episode.PublishedAt = item.PublishedParsed.Unix()
	}

	if item.Author != nil {
		episode.Author = item.Author.Name
	}

	// First enclosure only; RSS 2.0 allows a single enclosure per item.
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		episode.AudioURL = item.Enclosures[0].URL
		episode.AudioType = item.Enclosures[0].Type
	}

	// Item-level artwork wins over the channel artwork.
	if item.Image != nil && item.Image.URL != "" {
		episode.ImageURL = item.Image.URL
	}
	if item.ITunesExt != nil {
		episode.Duration = item.ITunesExt.Duration
		episode.Author = cmp.Or(item.ITunesExt.Author, episode.Author)
		episode.ImageURL = cmp.Or(item.ITunesExt.Image, episode.ImageURL)
	}

	episode.ID = episodeID(item.Link, episode.AudioURL)

	return episode
}

// episodeID derives a stable identifier from the canonical item link,
// falling back to the audio URL when no link is present. Parsing the same
// body twice yields identical ids for identical items.
func episodeID(link, audioURL string) string {
	source := cmp.Or(link, audioURL)
	hash := sha256.Sum256([]byte(source))
	return hex.EncodeToString(hash[:])
}
