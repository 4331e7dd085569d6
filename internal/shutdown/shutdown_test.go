package shutdown

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/seolens/seolens/internal/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ErrorLevel, Output: io.Discard, Pretty: false})
}

func TestHandler_CallbacksRunLIFO(t *testing.T) {
	h := New(time.Second, quietLogger())

	var mu sync.Mutex
	var order []string
	add := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	h.Register("first", add("first"))
	h.Register("second", add("second"))
	h.Register("third", add("third"))

	h.Trigger()
	h.Wait()

	want := []string{"third", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("ran %d callbacks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestHandler_ContextCancelledOnTrigger(t *testing.T) {
	h := New(time.Second, quietLogger())

	select {
	case <-h.Context().Done():
		t.Fatal("context cancelled before trigger")
	default:
	}

	h.Trigger()
	h.Wait()

	select {
	case <-h.Context().Done():
	default:
		t.Fatal("context not cancelled after trigger")
	}
}

func TestHandler_FailedCallbackDoesNotBlockOthers(t *testing.T) {
	h := New(time.Second, quietLogger())

	ran := false
	h.Register("early", func(context.Context) error {
		ran = true
		return nil
	})
	h.Register("failing", func(context.Context) error {
		return errors.New("boom")
	})

	h.Trigger()
	h.Wait()

	if !ran {
		t.Error("callback after a failing one did not run")
	}
}

func TestHandler_SlowCallbackTimesOut(t *testing.T) {
	h := New(50*time.Millisecond, quietLogger())

	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Second)
		return nil
	})

	start := time.Now()
	h.Trigger()
	h.Wait()

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took %v, grace period not enforced", elapsed)
	}
}

func TestHandler_TriggerIsIdempotent(t *testing.T) {
	h := New(time.Second, quietLogger())

	var runs int
	var mu sync.Mutex
	h.Register("counted", func(context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})

	h.Trigger()
	h.Trigger()
	h.Wait()

	if runs != 1 {
		t.Errorf("callback ran %d times, want 1", runs)
	}
}
