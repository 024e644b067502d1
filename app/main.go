package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thewpminute/podloom/app/api"
	"github.com/thewpminute/podloom/app/cache"
	"github.com/thewpminute/podloom/app/cfg"
	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/feed"
	"github.com/thewpminute/podloom/app/fetch"
	"github.com/thewpminute/podloom/app/images"
	"github.com/thewpminute/podloom/app/ratelimit"
	"github.com/thewpminute/podloom/app/refresh"
	"github.com/thewpminute/podloom/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting PodLoom server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	if err := os.MkdirAll(appCfg.ImageDir, 0o755); err != nil {
		slog.Error("Failed to create image directory", "dir", appCfg.ImageDir, "error", err)
		os.Exit(1)
	}

	feedRepo := database.NewFeedRepository(db)
	episodeRepo := database.NewEpisodeRepository(db)
	imageRepo := database.NewImageRepository(db)

	fetchClient := fetch.NewClient(appCfg.UserAgent)
	feedParser := feed.NewParser(appCfg.MaxEpisodes)
	chapterResolver := feed.NewChapterResolver(fetchClient)
	episodeCache := cache.NewEpisodeCache(appCfg.CacheTTL)
	imageCache := images.NewCache(imageRepo, fetchClient, appCfg.ImageDir, appCfg.ImageBaseUrl)
	refresher := refresh.NewRefresher(feedRepo, episodeRepo, episodeCache, fetchClient, feedParser, imageCache)
	limiter := ratelimit.NewLimiter()

	if appCfg.SeedFile != "" {
		if err := registerSeedFeeds(appCfg.SeedFile, feedRepo); err != nil {
			slog.Error("Failed to load seed file", "file", appCfg.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "sweep_interval", appCfg.SweepInterval())
	scheduler := tasks.NewScheduler(feedRepo, refresher, imageCache, appCfg.SweepInterval(), appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(feedRepo, episodeRepo, imageRepo, episodeCache, refresher,
		chapterResolver, imageCache, fetchClient, scheduler, limiter)
	server := api.NewServer(handler, appCfg.APIAccessKey, appCfg.ImageDir, appCfg.ImageBaseUrl)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

type seedFeed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// registerSeedFeeds registers feeds listed in a YAML file. Feeds whose
// URL is already known are skipped, so the file can stay in place across
// restarts. Seeded feeds are fetched by the first scheduler sweep rather
// than synchronously here.
func registerSeedFeeds(path string, feedRepo database.FeedRepository) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var seeds []seedFeed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	existing, err := feedRepo.List()
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, f := range existing {
		known[f.URL] = true
	}

	registered := 0
	for _, seed := range seeds {
		if seed.Name == "" || seed.URL == "" {
			slog.Warn("Skipping seed entry with missing name or url")
			continue
		}
		if known[seed.URL] {
			continue
		}
		if err := fetch.ValidateURL(seed.URL); err != nil {
			slog.Warn("Skipping seed entry with invalid URL", "url", seed.URL, "error", err)
			continue
		}
		if _, err := feedRepo.Add(seed.Name, seed.URL); err != nil {
			slog.Warn("Failed to register seed feed", "name", seed.Name, "error", err)
			continue
		}
		registered++
	}

	slog.Info("Seed feeds registered", "file", path, "registered", registered, "listed", len(seeds))
	return nil
}
