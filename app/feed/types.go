package feed

// Channel-level metadata extracted from a parsed feed.
type Channel struct {
	Title       string
	Link        string
	Description string
	Author      string
	ImageURL    string
	Language    string
	Extensions  Extensions
}

// Episode is one entry parsed from a feed. PublishedAt is epoch seconds.
// Duration is kept as sourced, not unit-normalized. ImageURL may later be
// rewritten to a cached local asset.
type Episode struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Link        string     `json:"link"`
	PublishedAt int64      `json:"published_at"`
	Author      string     `json:"author"`
	AudioURL    string     `json:"audio_url"`
	AudioType   string     `json:"audio_type"`
	Duration    string     `json:"duration"`
	ImageURL    string     `json:"image_url"`
	Extensions  Extensions `json:"extensions"`
}

// Extensions carries the Podcasting-extension payload of a channel or
// episode. People is the merged list; PeopleChannel and PeopleEpisode are
// kept separately for consumers that must distinguish hosts from guests.
type Extensions struct {
	Funding       *Funding     `json:"funding,omitempty"`
	Transcripts   []Transcript `json:"transcripts,omitempty"`
	People        []Person     `json:"people,omitempty"`
	PeopleChannel []Person     `json:"people_channel,omitempty"`
	PeopleEpisode []Person     `json:"people_episode,omitempty"`
	Chapters      *Chapters    `json:"chapters,omitempty"`
}

func (e Extensions) IsEmpty() bool {
	return e.Funding == nil && len(e.Transcripts) == 0 && len(e.People) == 0 &&
		len(e.PeopleChannel) == 0 && len(e.PeopleEpisode) == 0 && e.Chapters == nil
}

type Funding struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

type Transcript struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Rel      string `json:"rel,omitempty"`
	Label    string `json:"label"`
}

type Person struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Group string `json:"group,omitempty"`
	Image string `json:"image,omitempty"`
	Href  string `json:"href,omitempty"`
}

// Chapters references an external chapters document. The Chapters list is
// empty until resolved, and stays empty when resolution fails.
type Chapters struct {
	URL      string    `json:"url"`
	Type     string    `json:"type"`
	Chapters []Chapter `json:"chapters"`
}

type Chapter struct {
	StartTime float64 `json:"startTime"`
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	Img       string  `json:"img,omitempty"`
}

// rolePriority orders people for display: hosts before co-hosts before
// guests, everything else last.
func rolePriority(role string) int {
	switch role {
	case "host":
		return 1
	case "co-host":
		return 2
	case "guest":
		return 3
	default:
		return 999
	}
}
