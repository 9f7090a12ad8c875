package worker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"newsdesk/internal/models"
	"newsdesk/internal/pipeline"
	"newsdesk/internal/telegram"
	"newsdesk/pkg/logging"
)

type stubRunner struct {
	report pipeline.Report
	panics bool
	calls  int
}

func (r *stubRunner) Run(ctx context.Context, contentID string) pipeline.Report {
	r.calls++
	if r.panics {
		panic("boom")
	}
	r.report.ContentID = contentID
	return r.report
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
	refs     []models.ChatRef
	newRef   models.ChatRef
	err      error
}

func (n *stubNotifier) EditOrSend(ctx context.Context, ref models.ChatRef, text string, opts *telegram.MessageOptions) (models.ChatRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return models.ChatRef{}, n.err
	}
	n.messages = append(n.messages, text)
	n.refs = append(n.refs, ref)
	if n.newRef.Valid() {
		return n.newRef, nil
	}
	return ref, nil
}

type stubKicker struct {
	mu    sync.Mutex
	kicks int
}

func (k *stubKicker) Kick(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kicks++
}

type stubRefSaver struct {
	saved map[string]models.ChatRef
}

func (s *stubRefSaver) SetChatRef(ctx context.Context, id string, ref models.ChatRef) error {
	if s.saved == nil {
		s.saved = make(map[string]models.ChatRef)
	}
	s.saved[id] = ref
	return nil
}

func newTestWorker(r Runner, n Notifier, k QueueKicker, s ChatRefSaver) *Worker {
	return NewWorker(Config{
		Pipeline:    r,
		Notifier:    n,
		Queue:       k,
		Store:       s,
		Logger:      logging.NewLoggerWithService("test"),
		TaskTimeout: 5 * time.Second,
	})
}

func TestExecute_SuccessReportsAndKicks(t *testing.T) {
	runner := &stubRunner{report: pipeline.Report{Outcome: pipeline.OutcomeCompleted}}
	notifier := &stubNotifier{}
	kicker := &stubKicker{}

	w := newTestWorker(runner, notifier, kicker, nil)
	if err := w.Execute(context.Background(), NewPublishTask("item-1", models.ChatRef{ChatID: -100, MessageID: 5})); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if runner.calls != 1 {
		t.Errorf("expected one pipeline run, got %d", runner.calls)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "Published") {
		t.Errorf("expected a success report, got %v", notifier.messages)
	}
	if kicker.kicks != 1 {
		t.Errorf("expected one queue kick, got %d", kicker.kicks)
	}
}

func TestExecute_FailureStillReportsAndKicks(t *testing.T) {
	runner := &stubRunner{report: pipeline.Report{
		Outcome: pipeline.OutcomeFailed,
		Error:   "rewrite timed out",
	}}
	notifier := &stubNotifier{}
	kicker := &stubKicker{}

	w := newTestWorker(runner, notifier, kicker, nil)
	w.Execute(context.Background(), NewPublishTask("item-1", models.ChatRef{ChatID: -100, MessageID: 5}))

	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "failed") {
		t.Errorf("expected a failure report, got %v", notifier.messages)
	}
	if kicker.kicks != 1 {
		t.Errorf("queue must advance after a failed run, got %d kicks", kicker.kicks)
	}
}

func TestExecute_PanicIsContainedAndQueueAdvances(t *testing.T) {
	runner := &stubRunner{panics: true}
	notifier := &stubNotifier{}
	kicker := &stubKicker{}

	w := newTestWorker(runner, notifier, kicker, nil)
	err := w.Execute(context.Background(), NewPublishTask("item-1", models.ChatRef{ChatID: -100, MessageID: 5}))

	if err == nil {
		t.Error("expected Execute to surface the crash")
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "internal error") {
		t.Errorf("expected a crash report, got %v", notifier.messages)
	}
	if kicker.kicks != 1 {
		t.Errorf("queue must advance after a panic, got %d kicks", kicker.kicks)
	}
}

func TestExecute_NewMessageRefIsSaved(t *testing.T) {
	runner := &stubRunner{report: pipeline.Report{Outcome: pipeline.OutcomeCompleted}}
	notifier := &stubNotifier{newRef: models.ChatRef{ChatID: -100, MessageID: 99}}
	saver := &stubRefSaver{}

	w := newTestWorker(runner, notifier, &stubKicker{}, saver)
	w.Execute(context.Background(), NewPublishTask("item-1", models.ChatRef{ChatID: -100, MessageID: 5}))

	if saver.saved["item-1"].MessageID != 99 {
		t.Errorf("expected new message ref to be saved, got %+v", saver.saved)
	}
}

func TestExecute_KickQueueTask(t *testing.T) {
	kicker := &stubKicker{}
	w := newTestWorker(&stubRunner{}, &stubNotifier{}, kicker, nil)

	w.Execute(context.Background(), Task{TaskID: "t-1", Action: ActionKickQueue})
	if kicker.kicks != 1 {
		t.Errorf("expected one kick, got %d", kicker.kicks)
	}
}

func TestInProcessDispatcher(t *testing.T) {
	runner := &stubRunner{report: pipeline.Report{Outcome: pipeline.OutcomeCompleted}}
	notifier := &stubNotifier{}
	kicker := &stubKicker{}

	w := newTestWorker(runner, notifier, kicker, nil)
	d := NewInProcessDispatcher(w, logging.NewLoggerWithService("test"))

	if err := d.Dispatch(context.Background(), NewPublishTask("item-1", models.ChatRef{ChatID: -1})); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	d.Wait()

	if runner.calls != 1 {
		t.Errorf("expected dispatched task to run, got %d calls", runner.calls)
	}
}

func TestInProcessDispatcher_RejectsInvalidTask(t *testing.T) {
	d := NewInProcessDispatcher(newTestWorker(&stubRunner{}, &stubNotifier{}, &stubKicker{}, nil),
		logging.NewLoggerWithService("test"))

	if err := d.Dispatch(context.Background(), Task{TaskID: "t", Action: ActionPublish}); err == nil {
		t.Fatal("expected validation error for publish task without content_id")
	}
}

func TestDecodeTask(t *testing.T) {
	task := NewPublishTask("item-1", models.ChatRef{ChatID: -100, MessageID: 5})
	raw, err := task.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeTask(raw)
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}
	if decoded.Params.ContentID != "item-1" || decoded.Chat.MessageID != 5 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestDecodeTask_UnknownAction(t *testing.T) {
	if _, err := DecodeTask([]byte(`{"task_id":"t","action":"explode"}`)); err == nil {
		t.Fatal("expected error for unknown action")
	}
}
