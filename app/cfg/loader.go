package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./podloom.sqlite3" description:"Path to the SQLite database file"`
	ImageDir string `long:"image-dir" env:"IMAGE_DIR" default:"./images" description:"Directory for cached artwork files"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	ImageBaseUrl string `long:"image-base-url" env:"IMAGE_BASE_URL" default:"/images" description:"Public base URL under which cached artwork is served"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed processing"`
	CacheTTL     int    `long:"cache-ttl" env:"CACHE_TTL" default:"21600" description:"Episode cache TTL in seconds"`
	MaxEpisodes  int    `long:"max-episodes" env:"MAX_EPISODES" default:"50" description:"Maximum number of episodes kept per feed"`
	SeedFile     string `long:"seed-file" env:"SEED_FILE" description:"Optional YAML file with feeds to register at startup"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for mutating endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"PodLoom/1.0 (+https://github.com/thewpminute/podloom)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:       raw.DBPath,
		ImageDir:     raw.ImageDir,
		Port:         raw.Port,
		ImageBaseUrl: raw.ImageBaseUrl,
		WorkerCount:  raw.WorkerCount,
		CacheTTL:     time.Duration(raw.CacheTTL) * time.Second,
		MaxEpisodes:  raw.MaxEpisodes,
		SeedFile:     raw.SeedFile,
		APIAccessKey: raw.APIAccessKey,
		UserAgent:    raw.UserAgent,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
