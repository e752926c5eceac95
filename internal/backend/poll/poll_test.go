package poll_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskboard/internal/backend/poll"
	"taskboard/internal/service"
)

type counter struct {
	mu     sync.Mutex
	events []service.Event
}

func (c *counter) add(ev service.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *counter) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestWatch_EmitsOnChange(t *testing.T) {
	var version atomic.Int64
	fp := func(ctx context.Context) (string, error) {
		return strconv.FormatInt(version.Load(), 10), nil
	}

	var c counter
	sub, err := poll.Watch(context.Background(), time.Millisecond, fp, c.add, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Close()

	time.Sleep(20 * time.Millisecond)
	if c.len() != 0 {
		t.Fatalf("expected no events while unchanged, got %d", c.len())
	}

	version.Store(1)
	waitFor(t, func() bool { return c.len() == 1 })

	c.mu.Lock()
	got := c.events[0].Type
	c.mu.Unlock()
	if got != service.EventUnknown {
		t.Errorf("expected unknown event, got %q", got)
	}
}

func TestWatch_InitialErrorFails(t *testing.T) {
	fp := func(ctx context.Context) (string, error) {
		return "", errors.New("unreachable")
	}
	_, err := poll.Watch(context.Background(), time.Millisecond, fp, func(service.Event) {}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestWatch_SkipsFailedPolls(t *testing.T) {
	var calls atomic.Int64
	fp := func(ctx context.Context) (string, error) {
		n := calls.Add(1)
		if n == 1 {
			return "a", nil
		}
		if n < 5 {
			return "", errors.New("flaky")
		}
		return "b", nil
	}

	var c counter
	sub, err := poll.Watch(context.Background(), time.Millisecond, fp, c.add, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Close()

	waitFor(t, func() bool { return c.len() == 1 })
}

func TestWatch_CloseStopsPolling(t *testing.T) {
	var calls atomic.Int64
	fp := func(ctx context.Context) (string, error) {
		return strconv.FormatInt(calls.Add(1), 10), nil
	}

	var c counter
	sub, err := poll.Watch(context.Background(), time.Millisecond, fp, c.add, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitFor(t, func() bool { return c.len() > 0 })

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("polling continued after Close")
	}
}

func TestWatch_StopsWhenContextDone(t *testing.T) {
	var calls atomic.Int64
	fp := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "same", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := poll.Watch(ctx, time.Millisecond, fp, func(service.Event) {}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	cancel()
	// Close waits for the goroutine, so this returns once polling stopped.
	_ = sub.Close()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("polling continued after context cancel")
	}
}
