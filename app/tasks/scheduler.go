package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thewpminute/podloom/app/apperr"
	"github.com/thewpminute/podloom/app/database"
	"github.com/thewpminute/podloom/app/images"
	"github.com/thewpminute/podloom/app/refresh"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs the recurring sweep and image-processing jobs on a
// worker pool. The sweep interval is derived from the cache TTL so the
// cache stays warm without depending on visitor traffic.
type Scheduler struct {
	feedRepo    database.FeedRepository
	refresher   *refresh.Refresher
	imageCache  *images.Cache
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(feedRepo database.FeedRepository, refresher *refresh.Refresher,
	imageCache *images.Cache, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		feedRepo:    feedRepo,
		refresher:   refresher,
		imageCache:  imageCache,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Image processing runs on a short cadence independent of the
		// feed sweep so queued artwork does not sit for hours.
		imageTicker := time.NewTicker(time.Minute)
		defer imageTicker.Stop()

		sweepTicker := time.NewTicker(s.interval)
		defer sweepTicker.Stop()

		s.enqueueSweep()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-sweepTicker.C:
				s.enqueueSweep()
			case <-imageTicker.C:
				if err := s.EnqueueTask(NewProcessImagesTask(s.imageCache, imageBatchSize)); err != nil {
					slog.Warn("Failed to enqueue ProcessImagesTask", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the context and waits for the workers to drain. The
// queue is never closed: a delayed Once or retry goroutine may still
// fire afterwards, and its enqueue must fail cleanly instead of
// panicking on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	// Checked before the send so a task fired after Stop is refused
	// deterministically.
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Once enqueues a task after a delay. Used for one-off background
// refreshes scheduled from public read paths on cache miss.
func (s *Scheduler) Once(delay time.Duration, task TaskInterface) {
	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return
			}
		}
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue one-off task", "type", string(task.GetType()), "error", err)
		}
	}()
}

func (s *Scheduler) enqueueSweep() {
	if err := s.EnqueueTask(NewSweepFeedsTask(s.feedRepo, s.refresher)); err != nil {
		slog.Warn("Failed to enqueue SweepFeedsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		// Oversize and validation failures do not self-heal; retrying
		// them only burns the budget.
		if apperr.IsLimitExceeded(err) || apperr.IsValidation(err) {
			return
		}

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			s.Once(retryDelay, task)
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
