package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var (
		mu    sync.Mutex
		calls int
		done  = make(chan struct{})
	)
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return fmt.Errorf("write: %w", syscall.ECONNRESET)
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed")
	}
	d.Close()
	if d.ErrorCount() != 0 {
		t.Fatalf("errors = %d, want 0", d.ErrorCount())
	}
}

func TestDispatcherReportsPermanentFailure(t *testing.T) {
	var kinds []string
	d := NewDispatcher(Options{
		Workers:    1,
		MaxRetries: 3,
		OnFailure:  func(_, kind string) { kinds = append(kinds, kind) },
	})
	calls := 0
	_ = d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls++
		return errors.New("bad request")
	})
	d.Close()
	if calls != 1 {
		t.Fatalf("calls = %d, permanent errors must not be retried", calls)
	}
	if d.ErrorCount() != 1 || len(kinds) != 1 || kinds[0] != "unknown" {
		t.Fatalf("errors=%d kinds=%v", d.ErrorCount(), kinds)
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	if err := d.Enqueue(context.Background(), "a", "b", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": timeout`)
	if got := sanitizeErrorMessage(err); got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout` {
		t.Fatalf("sanitized = %s", got)
	}
}
