package tasks

import "time"

type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Once(delay time.Duration, task TaskInterface)
}
