package worker

import (
	"context"

	"newsdesk/internal/models"
	"newsdesk/pkg/logging"
)

// ItemGetter reads one content item.
type ItemGetter interface {
	Get(ctx context.Context, id string) (models.ContentItem, error)
}

// Launcher turns a queue admission into a dispatched publish task. The chat
// reference comes from the store, so the report lands on the item's own
// moderation message no matter which trigger advanced the queue.
type Launcher struct {
	store      ItemGetter
	dispatcher Dispatcher
	logger     logging.Logger
}

func NewLauncher(store ItemGetter, dispatcher Dispatcher, logger logging.Logger) *Launcher {
	return &Launcher{store: store, dispatcher: dispatcher, logger: logger}
}

func (l *Launcher) Start(ctx context.Context, contentID string) {
	item, err := l.store.Get(ctx, contentID)
	if err != nil {
		l.logger.WithError(err).WithField("content_id", contentID).
			Error("Cannot launch publish task for admitted item")
		return
	}

	task := NewPublishTask(contentID, item.Chat)
	if err := l.dispatcher.Dispatch(ctx, task); err != nil {
		l.logger.WithError(err).WithField("content_id", contentID).
			Error("Failed to dispatch publish task")
	}
}
