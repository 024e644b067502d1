package tasks

import (
	"context"
	"log/slog"

	"github.com/thewpminute/podloom/app/refresh"
)

type RefreshFeedTask struct {
	Task
	refresher *refresh.Refresher
	force     bool
}

func NewRefreshFeedTask(feedID string, refresher *refresh.Refresher, force bool) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:      NewTask(TaskTypeRefreshFeed, feedID),
		refresher: refresher,
		force:     force,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.refresher.Run(ctx, t.FeedID, t.force); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed", t.FeedID,
		"duration", t.GetDuration())

	return nil
}
