package tasks

import (
	"context"
	"log/slog"

	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/refresh"
)

// SweepFeedsTask refreshes every feed currently marked valid, plus
// registered feeds never checked yet. Feeds that failed a check are
// skipped until an operator-initiated refresh restores their validity,
// so a permanently broken host costs nothing per sweep. One feed's
// failure never aborts the sweep.
type SweepFeedsTask struct {
	Task
	feedRepo  database.FeedRepository
	refresher *refresh.Refresher
}

func NewSweepFeedsTask(feedRepo database.FeedRepository, refresher *refresh.Refresher) *SweepFeedsTask {
	return &SweepFeedsTask{
		Task:      NewTask(TaskTypeSweepFeeds, ""),
		feedRepo:  feedRepo,
		refresher: refresher,
	}
}

func (t *SweepFeedsTask) Execute(ctx context.Context) error {
	feeds, err := t.feedRepo.ListValid()
	if err != nil {
		return err
	}

	refreshed := 0
	failed := 0
	for _, feed := range feeds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := t.refresher.Run(ctx, feed.ID, false); err != nil {
			slog.Warn("Sweep refresh failed", "feed", feed.ID, "url", feed.URL, "error", err)
			failed++
			continue
		}
		refreshed++
	}

	slog.Info("Task completed",
		"type", "SweepFeeds",
		"duration", t.GetDuration(),
		"total", len(feeds),
		"refreshed", refreshed,
		"failed", failed)

	return nil
}
