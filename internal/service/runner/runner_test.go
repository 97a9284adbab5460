package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExecutor struct {
	err      error
	calls    int32
	block    chan struct{}
	canceled int32
}

func (f *fakeExecutor) ExecuteRun(ctx context.Context, bookID string) error {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		select {
		case <-ctx.Done():
			atomic.AddInt32(&f.canceled, 1)
			return ctx.Err()
		case <-f.block:
		}
	}
	return f.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSubmitExecutesRun(t *testing.T) {
	executor := &fakeExecutor{}
	r, err := NewRunner(1, executor)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	defer r.Stop()

	if err := r.Submit("book-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&executor.calls) == 1 })
}

func TestCancelStopsRunningExecution(t *testing.T) {
	executor := &fakeExecutor{block: make(chan struct{})}
	r, err := NewRunner(1, executor)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	defer r.Stop()

	if err := r.Submit("book-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&executor.calls) == 1 })

	if !r.Cancel("book-1") {
		t.Fatalf("Cancel should find an active run")
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&executor.canceled) == 1 })
}

func TestCancelUnknownBook(t *testing.T) {
	executor := &fakeExecutor{}
	r, err := NewRunner(1, executor)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	defer r.Stop()

	if r.Cancel("missing") {
		t.Fatalf("Cancel should return false for unknown book")
	}
}

func TestCancelRegistryClearedAfterRun(t *testing.T) {
	executor := &fakeExecutor{}
	r, err := NewRunner(1, executor)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	defer r.Stop()

	if err := r.Submit("book-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitFor(t, func() bool {
		r.cancelMutex.Lock()
		defer r.cancelMutex.Unlock()
		return atomic.LoadInt32(&executor.calls) == 1 && len(r.activeCancellations) == 0
	})
}

func TestSubmitAfterStop(t *testing.T) {
	executor := &fakeExecutor{}
	r, err := NewRunner(1, executor)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	r.Stop()

	if err := r.Submit("book-1"); err == nil {
		t.Fatalf("Submit after Stop should fail")
	}
}
