package syncq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestQueue_RunsInOrder(t *testing.T) {
	q := New(zerolog.Nop())
	q.Start(context.Background())
	defer q.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		i := i
		q.Enqueue(Job{Name: "append", Run: func(ctx context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}})
	}
	q.Wait()

	if len(got) != 20 {
		t.Fatalf("expected 20 jobs, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestQueue_FailureDoesNotStopLaterJobs(t *testing.T) {
	q := New(zerolog.Nop())
	q.Start(context.Background())
	defer q.Close()

	ran := false
	q.Enqueue(Job{Name: "fail", Run: func(ctx context.Context) error { return errors.New("boom") }})
	q.Enqueue(Job{Name: "ok", Run: func(ctx context.Context) error { ran = true; return nil }})
	q.Wait()

	if !ran {
		t.Error("expected job after failure to run")
	}
}

func TestQueue_JobTimeout(t *testing.T) {
	q := New(zerolog.Nop(), WithJobTimeout(10*time.Millisecond))
	q.Start(context.Background())
	defer q.Close()

	var ctxErr error
	q.Enqueue(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		ctxErr = ctx.Err()
		return ctxErr
	}})
	q.Wait()

	if !errors.Is(ctxErr, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", ctxErr)
	}
}

func TestQueue_CloseRunsQueuedJobs(t *testing.T) {
	q := New(zerolog.Nop(), WithBuffer(4))
	count := 0
	for i := 0; i < 3; i++ {
		q.Enqueue(Job{Name: "count", Run: func(ctx context.Context) error { count++; return nil }})
	}
	q.Start(context.Background())
	q.Close()

	if count != 3 {
		t.Errorf("expected 3 jobs before close returned, got %d", count)
	}
}

func TestQueue_EnqueueAfterCloseIsDropped(t *testing.T) {
	q := New(zerolog.Nop())
	q.Start(context.Background())
	q.Close()

	ran := false
	q.Enqueue(Job{Name: "late", Run: func(ctx context.Context) error { ran = true; return nil }})
	q.Wait()
	if ran {
		t.Error("a job enqueued after Close must not run")
	}
}

func TestQueue_EnqueueAfterCancelDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := New(zerolog.Nop(), WithBuffer(1))
	q.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			q.Enqueue(Job{Name: "late", Run: func(ctx context.Context) error { return nil }})
		}
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked after the worker stopped")
	}
}
