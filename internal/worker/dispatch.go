package worker

import (
	"context"
	"sync"

	"newsdesk/pkg/logging"
)

// Dispatcher hands a task to the background worker. The caller gets control
// back immediately; execution happens elsewhere.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// InProcessDispatcher runs tasks on goroutines inside the same process. The
// default deployment; tasks do not survive a restart.
type InProcessDispatcher struct {
	worker *Worker
	logger logging.Logger
	wg     sync.WaitGroup
}

func NewInProcessDispatcher(w *Worker, logger logging.Logger) *InProcessDispatcher {
	return &InProcessDispatcher{worker: w, logger: logger}
}

func (d *InProcessDispatcher) Dispatch(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	// The dispatching request finishes long before the task does, so the
	// task must not inherit its cancellation.
	taskCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// No durable transport behind us, so a crashed task is only logged.
		if err := d.worker.Execute(taskCtx, task); err != nil {
			d.logger.WithError(err).WithField("task_id", task.TaskID).Error("Task crashed")
		}
	}()

	d.logger.WithField("task_id", task.TaskID).Debug("Task dispatched in process")
	return nil
}

// Wait blocks until all dispatched tasks finish. Used on shutdown.
func (d *InProcessDispatcher) Wait() {
	d.wg.Wait()
}
