package queue

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"newsdesk/internal/models"
	"newsdesk/internal/store"
)

func newMockQueue(t *testing.T) (*Queue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewQueue(db, logger), mock
}

func TestEnqueue_IdleItem(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectExec(`UPDATE herald\.content_items`).
		WithArgs("item-1", string(models.PublishQueued), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := q.Enqueue(context.Background(), "item-1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEnqueue_AlreadyInFlight(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectExec(`UPDATE herald\.content_items`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT publish_status FROM herald\.content_items`).
		WillReturnRows(sqlmock.NewRows([]string{"publish_status"}).
			AddRow(string(models.PublishContentRewrite)))

	err := q.Enqueue(context.Background(), "item-1")
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestEnqueue_MissingItem(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectExec(`UPDATE herald\.content_items`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT publish_status FROM herald\.content_items`).
		WillReturnRows(sqlmock.NewRows([]string{"publish_status"}))

	err := q.Enqueue(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTryAdmit_PromotesOldestQueued(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectQuery(`UPDATE herald\.content_items`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-1"))

	id, admitted, err := q.TryAdmit(context.Background())
	if err != nil {
		t.Fatalf("TryAdmit failed: %v", err)
	}
	if !admitted || id != "item-1" {
		t.Errorf("expected admission of item-1, got admitted=%v id=%q", admitted, id)
	}
}

func TestTryAdmit_BusyOrEmpty(t *testing.T) {
	q, mock := newMockQueue(t)

	// No queued row matches while another item is in flight.
	mock.ExpectQuery(`UPDATE herald\.content_items`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, admitted, err := q.TryAdmit(context.Background())
	if err != nil {
		t.Fatalf("TryAdmit failed: %v", err)
	}
	if admitted {
		t.Error("expected no admission while queue is busy or empty")
	}
}

func TestKick_StartsAdmittedItem(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectQuery(`UPDATE herald\.content_items`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-2"))

	var started string
	q.SetStarter(StarterFunc(func(ctx context.Context, contentID string) {
		started = contentID
	}))

	q.Kick(context.Background())
	if started != "item-2" {
		t.Errorf("expected starter to receive item-2, got %q", started)
	}
}

func TestKick_NoStarterDoesNotPanic(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectQuery(`UPDATE herald\.content_items`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-3"))

	q.Kick(context.Background())
}

func TestDepth(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM herald\.content_items`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	depth, err := q.Depth(context.Background())
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if depth != 3 {
		t.Errorf("expected depth 3, got %d", depth)
	}
}
