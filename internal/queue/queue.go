package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"newsdesk/internal/models"
	"newsdesk/internal/store"
)

// Starter launches the publish pipeline for an admitted item. The queue only
// decides who runs next; it never runs the pipeline itself.
type Starter interface {
	Start(ctx context.Context, contentID string)
}

// StarterFunc adapts a function to the Starter interface.
type StarterFunc func(ctx context.Context, contentID string)

func (f StarterFunc) Start(ctx context.Context, contentID string) { f(ctx, contentID) }

// Queue serializes publishing: at most one item is in flight at a time, and
// waiting items run in enqueue order. Both admission and ordering are decided
// by single conditional updates so concurrent triggers cannot double-admit.
type Queue struct {
	db      *sql.DB
	starter Starter
	logger  *logrus.Logger
}

func NewQueue(db *sql.DB, logger *logrus.Logger) *Queue {
	return &Queue{db: db, logger: logger}
}

// SetStarter wires the pipeline launcher. The queue and the pipeline
// reference each other, so the starter arrives after construction.
func (q *Queue) SetStarter(s Starter) {
	q.starter = s
}

// Enqueue marks the item as waiting to publish. Only idle and previously
// failed items may enter the queue; anything already waiting, in flight or
// completed is rejected.
func (q *Queue) Enqueue(ctx context.Context, contentID string) error {
	if q == nil || q.db == nil {
		return errors.New("publish queue unavailable")
	}

	res, err := q.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET publish_status = $2, publish_error = '', enqueued_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND publish_status = ANY($3)
	`, contentID, string(models.PublishQueued),
		pq.Array([]string{string(models.PublishNone), string(models.PublishFailed)}))
	if err != nil {
		return fmt.Errorf("enqueue content item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err := q.db.QueryRowContext(ctx,
			`SELECT publish_status FROM herald.content_items WHERE id = $1`, contentID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read publish status: %w", err)
		}
		return fmt.Errorf("%w: item is %s", store.ErrInvalidTransition, status)
	}

	q.logger.WithFields(logrus.Fields{
		"content_id": contentID,
	}).Info("Content item enqueued for publishing")
	return nil
}

// TryAdmit promotes the oldest queued item to pending, but only while nothing
// is in flight. The whole decision is one UPDATE: two concurrent callers
// cannot both admit, and an admission while another item runs matches no row.
func (q *Queue) TryAdmit(ctx context.Context) (string, bool, error) {
	if q == nil || q.db == nil {
		return "", false, errors.New("publish queue unavailable")
	}

	inFlight := make([]string, 0, len(models.InFlightStatuses))
	for _, s := range models.InFlightStatuses {
		inFlight = append(inFlight, string(s))
	}

	var id string
	err := q.db.QueryRowContext(ctx, `
		UPDATE herald.content_items
		SET publish_status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM herald.content_items
			WHERE publish_status = $2
				AND NOT EXISTS (
					SELECT 1 FROM herald.content_items WHERE publish_status = ANY($3)
				)
			ORDER BY enqueued_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, string(models.PublishPending), string(models.PublishQueued), pq.Array(inFlight)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("admit queued item: %w", err)
	}
	return id, true, nil
}

// Kick admits the next item if the queue is free and hands it to the starter.
// Called after Enqueue and after every pipeline run, success or failure, so
// the chain never stalls.
func (q *Queue) Kick(ctx context.Context) {
	id, admitted, err := q.TryAdmit(ctx)
	if err != nil {
		q.logger.WithError(err).Error("Failed to admit next queued item")
		return
	}
	if !admitted {
		return
	}

	q.logger.WithFields(logrus.Fields{
		"content_id": id,
	}).Info("Admitted next item from publish queue")

	if q.starter == nil {
		q.logger.WithFields(logrus.Fields{
			"content_id": id,
		}).Warn("No pipeline starter wired; admitted item will wait for next kick")
		return
	}
	q.starter.Start(ctx, id)
}

// Depth reports how many items are waiting behind the current one.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	if q == nil || q.db == nil {
		return 0, errors.New("publish queue unavailable")
	}

	var depth int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM herald.content_items WHERE publish_status = $1`,
		string(models.PublishQueued),
	).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("count queued items: %w", err)
	}
	return depth, nil
}
