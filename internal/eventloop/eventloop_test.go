package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) *EventLoop {
	t.Helper()
	el := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = el.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return el
}

func TestPostRunsInOrder(t *testing.T) {
	el := startLoop(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		el.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	if err := el.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("Call: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("ran %d tasks, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestTimerFires(t *testing.T) {
	el := startLoop(t)

	fired := make(chan time.Time, 1)
	start := time.Now()
	el.RegisterTimer(20*time.Millisecond, false, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if at.Sub(start) < 20*time.Millisecond {
			t.Errorf("timer fired after %v, want >= 20ms", at.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	if n := el.TimerCount(); n != 0 {
		t.Errorf("TimerCount = %d after one-shot fired, want 0", n)
	}
}

func TestClearTimer(t *testing.T) {
	el := startLoop(t)

	fired := make(chan struct{}, 1)
	id := el.RegisterTimer(30*time.Millisecond, false, func() { fired <- struct{}{} })
	el.ClearTimer(id)

	select {
	case <-fired:
		t.Fatal("cleared timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIntervalRepeats(t *testing.T) {
	el := startLoop(t)

	ticks := make(chan struct{}, 10)
	id := el.RegisterTimer(10*time.Millisecond, true, func() { ticks <- struct{}{} })
	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("interval tick %d missing", i)
		}
	}
	el.ClearTimer(id)
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	el := startLoop(t)

	el.Post(func() { panic("boom") })
	ran := false
	if err := el.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !ran {
		t.Error("task after panic did not run")
	}
}

func TestAfterTaskHook(t *testing.T) {
	el := New(0)
	var hooks int
	el.SetAfterTask(func() { hooks++ })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = el.Run(ctx) }()

	el.Post(func() {})
	el.Post(func() {})
	var seen int
	if err := el.Call(context.Background(), func() { seen = hooks }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if seen != 2 {
		t.Errorf("hook ran %d times before third task, want 2", seen)
	}
}

func TestPostAfterClose(t *testing.T) {
	el := New(0)
	el.Close()
	if el.Post(func() {}) {
		t.Error("Post succeeded on closed loop")
	}
	if err := el.Run(context.Background()); err != ErrClosed {
		t.Errorf("Run = %v, want ErrClosed", err)
	}
}
