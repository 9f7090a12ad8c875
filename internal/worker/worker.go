package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"newsdesk/internal/models"
	"newsdesk/internal/pipeline"
	"newsdesk/internal/telegram"
	"newsdesk/pkg/logging"
)

// Runner executes the publish pipeline for one item.
type Runner interface {
	Run(ctx context.Context, contentID string) pipeline.Report
}

// Notifier delivers the outcome report to the moderation chat.
type Notifier interface {
	EditOrSend(ctx context.Context, ref models.ChatRef, text string, opts *telegram.MessageOptions) (models.ChatRef, error)
}

// QueueKicker admits the next waiting item.
type QueueKicker interface {
	Kick(ctx context.Context)
}

// ChatRefSaver records where the latest report for an item lives.
type ChatRefSaver interface {
	SetChatRef(ctx context.Context, id string, ref models.ChatRef) error
}

type Config struct {
	Pipeline Runner
	Notifier Notifier
	Queue    QueueKicker
	Store    ChatRefSaver
	Logger   logging.Logger
	// TaskTimeout bounds one task execution end to end.
	TaskTimeout time.Duration
}

// Worker executes background tasks. Whatever happens inside a task, two
// things always follow: the moderation chat gets a report, and the queue is
// kicked so the next item is never stranded behind a finished or broken run.
type Worker struct {
	pipeline    Runner
	notifier    Notifier
	queue       QueueKicker
	store       ChatRefSaver
	logger      logging.Logger
	taskTimeout time.Duration
}

func NewWorker(cfg Config) *Worker {
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = 10 * time.Minute
	}
	return &Worker{
		pipeline:    cfg.Pipeline,
		notifier:    cfg.Notifier,
		queue:       cfg.Queue,
		store:       cfg.Store,
		logger:      cfg.Logger,
		taskTimeout: cfg.TaskTimeout,
	}
}

// Execute runs one task to completion. It never lets a panic escape: the
// chat still gets a report and the queue still advances. The returned error
// is non-nil only when the task crashed, so a durable transport can decide
// whether to redeliver it.
func (w *Worker) Execute(ctx context.Context, task Task) (err error) {
	ctx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	log := w.logger.WithFields(logrus.Fields{
		"task_id":    task.TaskID,
		"action":     string(task.Action),
		"content_id": task.Params.ContentID,
		"attempt":    task.Attempt,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Background task panicked")
			w.report(ctx, task, "⚠️ Publishing crashed with an internal error. The item was not published.")
			w.queue.Kick(ctx)
			err = fmt.Errorf("task %s crashed: %v", task.TaskID, r)
		}
	}()

	switch task.Action {
	case ActionPublish:
		w.executePublish(ctx, task, log)
	case ActionKickQueue:
		w.queue.Kick(ctx)
	default:
		log.Error("Dropping task with unknown action")
	}
	return nil
}

func (w *Worker) executePublish(ctx context.Context, task Task, log *logrus.Entry) {
	log.Info("Publish task started")
	started := time.Now()

	report := w.pipeline.Run(ctx, task.Params.ContentID)

	log.WithFields(logrus.Fields{
		"outcome":     string(report.Outcome),
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("Publish task finished")

	w.report(ctx, task, FormatReport(report))

	// Success and failure both advance the queue; a failed run must not
	// stall everything behind it.
	w.queue.Kick(ctx)
}

// report delivers text to the task's chat. Losing the report is logged and
// swallowed: the pipeline outcome is already durable in the store.
func (w *Worker) report(ctx context.Context, task Task, text string) {
	if task.Chat.ChatID == 0 {
		w.logger.WithField("task_id", task.TaskID).Warn("Task has no chat to report into")
		return
	}

	newRef, err := w.notifier.EditOrSend(ctx, task.Chat, text, nil)
	if err != nil {
		w.logger.WithError(err).WithField("task_id", task.TaskID).
			Error("Failed to deliver task report to chat")
		return
	}

	if w.store == nil || task.Params.ContentID == "" || newRef == task.Chat {
		return
	}
	if err := w.store.SetChatRef(ctx, task.Params.ContentID, newRef); err != nil {
		w.logger.WithError(err).WithField("content_id", task.Params.ContentID).
			Warn("Failed to record new report message")
	}
}
