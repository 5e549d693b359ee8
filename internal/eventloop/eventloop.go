package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("rtcbridge/eventloop")

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("eventloop: closed")

// timerEntry represents a pending timer callback. Intervals are rescheduled
// after each fire.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for one-shot timers
	id       int
	fn       func()
	cleared  bool
}

// EventLoop is the designated callback queue. Native completions, native
// events, timers and script callbacks are all posted here and run one at a
// time, in post order, on the goroutine that calls Run.
type EventLoop struct {
	mu     sync.Mutex
	tasks  []func()
	timers map[int]*timerEntry
	nextID int
	wake   chan struct{}
	closed bool

	afterTask func()
	running   bool
}

// New creates an EventLoop whose task queue starts with the given capacity.
func New(capacity int) *EventLoop {
	if capacity <= 0 {
		capacity = 16
	}
	return &EventLoop{
		tasks:  make([]func(), 0, capacity),
		timers: make(map[int]*timerEntry),
		wake:   make(chan struct{}, 1),
	}
}

// SetAfterTask installs a hook run after every task and timer callback.
// Script hosts use it as their microtask checkpoint. It takes effect from
// the next task; nil removes it.
func (el *EventLoop) SetAfterTask(fn func()) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.afterTask = fn
}

// Post queues fn. It reports false when the loop is closed and fn was
// dropped. Safe to call from any goroutine.
func (el *EventLoop) Post(fn func()) bool {
	el.mu.Lock()
	if el.closed {
		el.mu.Unlock()
		return false
	}
	el.tasks = append(el.tasks, fn)
	el.mu.Unlock()
	el.signal()
	return true
}

// Call runs fn on the loop and waits for it to return. It must not be called
// from the loop goroutine.
func (el *EventLoop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !el.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterTimer schedules fn after delay and returns the timer ID.
func (el *EventLoop) RegisterTimer(delay time.Duration, isInterval bool, fn func()) int {
	el.mu.Lock()
	el.nextID++
	id := el.nextID
	entry := &timerEntry{
		deadline: time.Now().Add(delay),
		id:       id,
		fn:       fn,
	}
	if isInterval {
		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond // minimum interval
		}
		entry.interval = delay
	}
	el.timers[id] = entry
	el.mu.Unlock()
	el.signal()
	return id
}

// ClearTimer cancels a timer by ID.
func (el *EventLoop) ClearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if t, ok := el.timers[id]; ok {
		t.cleared = true
		delete(el.timers, id)
	}
}

// TimerCount returns the number of active timers.
func (el *EventLoop) TimerCount() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.timers)
}

// HasPending returns true if there are queued tasks or active timers.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.tasks) > 0 || len(el.timers) > 0
}

// Close stops the loop. Queued tasks that have not started are dropped.
func (el *EventLoop) Close() {
	el.mu.Lock()
	if el.closed {
		el.mu.Unlock()
		return
	}
	el.closed = true
	el.tasks = nil
	el.timers = make(map[int]*timerEntry)
	el.mu.Unlock()
	el.signal()
}

// Closed reports whether Close has been called.
func (el *EventLoop) Closed() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.closed
}

// Run executes tasks and timers until ctx is done or Close is called.
// Only one goroutine may run the loop.
func (el *EventLoop) Run(ctx context.Context) error {
	el.mu.Lock()
	if el.running {
		el.mu.Unlock()
		return errors.New("eventloop: already running")
	}
	el.running = true
	el.mu.Unlock()
	defer func() {
		el.mu.Lock()
		el.running = false
		el.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if el.Closed() {
			return ErrClosed
		}

		if el.runOne() {
			continue
		}

		// Nothing runnable: sleep until the next timer, a post, or cancel.
		var timerC <-chan time.Time
		if wait, ok := el.nextTimerWait(); ok {
			t := time.NewTimer(wait)
			timerC = t.C
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-el.wake:
				t.Stop()
			case <-timerC:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-el.wake:
		}
	}
}

// runOne runs the next queued task, or the earliest due timer. It reports
// whether anything ran.
func (el *EventLoop) runOne() bool {
	el.mu.Lock()
	if len(el.tasks) > 0 {
		fn := el.tasks[0]
		el.tasks[0] = nil
		el.tasks = el.tasks[1:]
		after := el.afterTask
		el.mu.Unlock()
		el.invoke(fn, after)
		return true
	}

	now := time.Now()
	var next *timerEntry
	for _, t := range el.timers {
		if t.cleared || t.deadline.After(now) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	if next == nil {
		el.mu.Unlock()
		return false
	}
	if next.interval > 0 {
		next.deadline = now.Add(next.interval)
	} else {
		delete(el.timers, next.id)
	}
	fn, after := next.fn, el.afterTask
	el.mu.Unlock()
	el.invoke(fn, after)
	return true
}

func (el *EventLoop) nextTimerWait() (time.Duration, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	var next *timerEntry
	for _, t := range el.timers {
		if t.cleared {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	if next == nil {
		return 0, false
	}
	wait := time.Until(next.deadline)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// invoke runs one callback. A panicking callback is logged and does not
// stop the loop.
func (el *EventLoop) invoke(fn, after func()) {
	func() {
		defer func() {
			if p := recover(); p != nil {
				log.Warnf("eventloop: recovered panic in task: %v", p)
			}
		}()
		fn()
	}()
	if after != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					log.Warnf("eventloop: recovered panic in after-task hook: %v", p)
				}
			}()
			after()
		}()
	}
}

func (el *EventLoop) signal() {
	select {
	case el.wake <- struct{}{}:
	default:
	}
}
