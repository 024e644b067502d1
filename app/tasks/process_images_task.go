package tasks

import (
	"context"
	"log/slog"

	"github.com/thewpminute/podloom/app/images"
)

// Batch size per run keeps image processing jobs short lived.
const imageBatchSize = 5

type ProcessImagesTask struct {
	Task
	imageCache *images.Cache
	maxItems   int
}

func NewProcessImagesTask(imageCache *images.Cache, maxItems int) *ProcessImagesTask {
	if maxItems <= 0 {
		maxItems = imageBatchSize
	}
	return &ProcessImagesTask{
		Task:       NewTask(TaskTypeProcessImages, ""),
		imageCache: imageCache,
		maxItems:   maxItems,
	}
}

func (t *ProcessImagesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	processed := t.imageCache.ProcessQueue(ctx, t.maxItems)
	if processed > 0 {
		slog.Info("Task completed",
			"type", "ProcessImages",
			"duration", t.GetDuration(),
			"processed", processed)
	}

	return nil
}
