package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"newsdesk/pkg/logging"
)

func TestScheduler_RunsStep(t *testing.T) {
	s := NewScheduler(logging.NewLoggerWithService("test"))
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule("k", 5*time.Millisecond, func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled step never ran")
	}
	if s.Pending() != 0 {
		t.Errorf("expected no pending steps, got %d", s.Pending())
	}
}

func TestScheduler_ReschedulingReplacesStep(t *testing.T) {
	s := NewScheduler(logging.NewLoggerWithService("test"))
	defer s.Stop()

	var runs int64
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		s.Schedule("k", 20*time.Millisecond, func(ctx context.Context) {
			atomic.AddInt64(&runs, 1)
			close(done)
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled step never ran")
	}
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Errorf("expected a burst to collapse into one run, got %d", got)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler(logging.NewLoggerWithService("test"))
	defer s.Stop()

	var runs int64
	s.Schedule("k", 10*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt64(&runs, 1)
	})
	s.Cancel("k")

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != 0 {
		t.Errorf("cancelled step still ran %d times", got)
	}
}

func TestScheduler_PanicIsContained(t *testing.T) {
	s := NewScheduler(logging.NewLoggerWithService("test"))
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule("k", time.Millisecond, func(ctx context.Context) {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled step never ran")
	}
}
