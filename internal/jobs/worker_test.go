package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/careerlens/careerlens-backend/internal/pkg/errors"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

func TestWorkerRunsSubmittedTasks(t *testing.T) {
	w := NewWorker(logger.Nop(), 4, 2)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		n := i
		if err := w.Submit(func(context.Context) { done <- n }); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		select {
		case n := <-done:
			seen[n] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d never ran", i)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("tasks run: want=3 got=%d", len(seen))
	}

	cancel()
	w.Wait()
}

func TestWorkerSubmitQueueFull(t *testing.T) {
	w := NewWorker(logger.Nop(), 1, 1)

	if err := w.Submit(func(context.Context) {}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	err := w.Submit(func(context.Context) {})
	if !errors.Is(err, pkgerrors.ErrQueueFull) {
		t.Fatalf("second Submit: want=ErrQueueFull got=%v", err)
	}
}

func TestWorkerSubmitNilTask(t *testing.T) {
	w := NewWorker(logger.Nop(), 1, 1)
	if err := w.Submit(nil); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("Submit(nil): want=ErrInvalidArgument got=%v", err)
	}
}

func TestWorkerSurvivesTaskPanic(t *testing.T) {
	w := NewWorker(logger.Nop(), 4, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	if err := w.Submit(func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit panicking task: %v", err)
	}
	done := make(chan struct{})
	if err := w.Submit(func(context.Context) { close(done) }); err != nil {
		t.Fatalf("Submit follow-up task: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive task panic")
	}
}

func TestWorkerStartIsIdempotent(t *testing.T) {
	w := NewWorker(logger.Nop(), 4, 1)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	w.Start(ctx)

	done := make(chan struct{})
	if err := w.Submit(func(context.Context) { close(done) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	cancel()
	w.Wait()
}
