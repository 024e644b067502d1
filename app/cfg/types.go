package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath   string
	ImageDir string

	// Application configuration
	Port         string
	ImageBaseUrl string
	WorkerCount  int
	CacheTTL     time.Duration
	MaxEpisodes  int
	SeedFile     string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// SweepInterval derives the background sweep cadence from the cache TTL,
// never dropping below 30 minutes.
func (c *Cfg) SweepInterval() time.Duration {
	interval := c.CacheTTL * 2 / 3
	if interval < 30*time.Minute {
		interval = 30 * time.Minute
	}
	return interval
}
