package notifier

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sax-estudios/internal/model"
)

func TestFanoutNotifiesAllAndJoinsErrors(t *testing.T) {
	t.Parallel()

	ok := &stubNotifier{}
	bad := &stubNotifier{err: errors.New("down")}
	f := Fanout{ok, nil, bad}

	err := f.Notify(context.Background(), model.Purchase{SubmissionID: "doc1"})
	if err == nil || err.Error() != "down" {
		t.Fatalf("expected joined error, got %v", err)
	}
	if ok.calls.Load() != 1 || bad.calls.Load() != 1 {
		t.Fatalf("expected each notifier called once, got %d/%d", ok.calls.Load(), bad.calls.Load())
	}
}

func TestAsyncRunsInBackground(t *testing.T) {
	t.Parallel()

	next := &stubNotifier{block: make(chan struct{}), err: errors.New("ignored")}
	a := NewAsync(next, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Notify(ctx, model.Purchase{SubmissionID: "doc1"}); err != nil {
		t.Fatalf("expected nil from async notify, got %v", err)
	}
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	if err := a.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wait to time out while notifier blocked, got %v", err)
	}

	close(next.block)
	if err := a.Wait(context.Background()); err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if next.calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", next.calls.Load())
	}
	if next.ctxErr != nil {
		t.Fatalf("expected background context to survive request cancel, got %v", next.ctxErr)
	}
}

// --- stubs ---

type stubNotifier struct {
	calls  atomic.Int32
	err    error
	block  chan struct{}
	ctxErr error
}

func (s *stubNotifier) Notify(ctx context.Context, p model.Purchase) error {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	s.ctxErr = ctx.Err()
	return s.err
}
