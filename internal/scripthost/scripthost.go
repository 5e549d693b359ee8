// Package scripthost runs JavaScript applications against a bridge. The
// script sees the proxy layer (RtcEngineKit and friends) as globals; every
// call it makes crosses into Go through a handful of __rtc_* functions and
// every result or event comes back on the bridge event loop.
package scripthost

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cryguy/rtcbridge"
	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/eventloop"
)

var (
	log       = logging.Logger("rtcbridge/scripthost")
	scriptLog = logging.Logger("rtcbridge/script")
)

//go:embed prelude.js
var prelude string

// ErrTimeout is returned by Run when the script still has work pending
// after the configured script timeout.
var ErrTimeout = errors.New("scripthost: script timed out")

type subKey struct {
	sub  core.Subsystem
	name string
}

// Host owns one JavaScript runtime bound to a bridge. The runtime is only
// touched on the bridge event loop goroutine.
type Host struct {
	b    *rtcbridge.Bridge
	loop *eventloop.EventLoop

	// loop goroutine only
	rt       core.JSRuntime
	subs     map[subKey]func()
	timers   map[int]struct{}
	inflight int
	errs     []error
	closed   bool
}

// New creates a runtime, installs the proxy layer and binds it to b.
func New(b *rtcbridge.Bridge) (*Host, error) {
	h := &Host{
		b:      b,
		loop:   b.Loop(),
		subs:   make(map[subKey]func()),
		timers: make(map[int]struct{}),
	}
	var err error
	if callErr := h.onLoop(context.Background(), func() { err = h.init() }); callErr != nil {
		return nil, callErr
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) init() error {
	rt, err := newRuntime(h.b.Config().ScriptMemoryLimitMB)
	if err != nil {
		return err
	}
	funcs := []struct {
		name string
		fn   any
	}{
		{"__rtc_call", h.call},
		{"__rtc_surface", h.surface},
		{"__rtc_subscribe", h.subscribe},
		{"__rtc_unsubscribeAll", h.unsubscribeAll},
		{"__rtc_constants", h.constants},
		{"__rtc_newViewTag", h.b.NewViewTag},
		{"__rtc_setTimer", h.setTimer},
		{"__rtc_clearTimer", h.clearTimer},
		{"__rtc_console", h.console},
		{"__rtc_error", h.scriptError},
	}
	for _, f := range funcs {
		if err := rt.RegisterFunc(f.name, f.fn); err != nil {
			rt.Close()
			return fmt.Errorf("scripthost: registering %s: %w", f.name, err)
		}
	}
	if err := rt.Eval(prelude); err != nil {
		rt.Close()
		return fmt.Errorf("scripthost: loading proxy layer: %w", err)
	}
	h.rt = rt
	h.loop.SetAfterTask(h.checkpoint)
	return nil
}

// Run evaluates source and waits until the script has no calls in flight
// and the loop has no queued work or timers, or until the configured script
// timeout. Errors thrown by listeners and timer callbacks are logged and
// returned joined once the script is idle. Run must not be called from the
// bridge event loop goroutine.
func (h *Host) Run(ctx context.Context, source string) error {
	ctx, cancel := context.WithTimeout(ctx, h.b.Config().ScriptTimeout)
	defer cancel()

	var evalErr error
	err := h.onLoop(ctx, func() {
		if h.closed {
			evalErr = eventloop.ErrClosed
			return
		}
		h.errs = nil
		evalErr = h.rt.Eval(source)
	})
	if err != nil {
		return h.timeout(err)
	}
	if evalErr != nil {
		return fmt.Errorf("scripthost: %w", evalErr)
	}

	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		var idle bool
		var errs []error
		err := h.onLoop(ctx, func() {
			idle = h.inflight == 0 && !h.loop.HasPending()
			errs = h.errs
		})
		if err != nil {
			return h.timeout(err)
		}
		if idle {
			return errors.Join(errs...)
		}
		select {
		case <-ctx.Done():
			return h.timeout(ctx.Err())
		case <-tick.C:
		}
	}
}

// Eval evaluates js on the loop and returns its value as a string.
func (h *Host) Eval(ctx context.Context, js string) (string, error) {
	var out string
	var evalErr error
	err := h.onLoop(ctx, func() {
		if h.closed {
			evalErr = eventloop.ErrClosed
			return
		}
		out, evalErr = h.rt.EvalString(js)
	})
	if err != nil {
		return "", err
	}
	return out, evalErr
}

// Close cancels the script's subscriptions and timers and releases the
// runtime. The bridge stays usable.
func (h *Host) Close() {
	err := h.onLoop(context.Background(), h.shutdown)
	if errors.Is(err, eventloop.ErrClosed) {
		// The loop goroutine is gone; nothing else can touch the runtime.
		h.shutdown()
	}
}

func (h *Host) shutdown() {
	if h.closed {
		return
	}
	h.closed = true
	h.loop.SetAfterTask(nil)
	for k, cancel := range h.subs {
		cancel()
		delete(h.subs, k)
	}
	for id := range h.timers {
		h.loop.ClearTimer(id)
		delete(h.timers, id)
	}
	if h.rt != nil {
		h.rt.Close()
	}
}

func (h *Host) timeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, h.b.Config().ScriptTimeout)
	}
	return err
}

// onLoop runs fn on the loop goroutine and waits for it. fn's writes are
// visible to the caller only when onLoop returns nil.
func (h *Host) onLoop(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !h.loop.Post(func() {
		defer close(done)
		fn()
	}) {
		return eventloop.ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) checkpoint() {
	if h.closed || h.rt == nil {
		return
	}
	h.rt.RunMicrotasks()
}

func (h *Host) eval(js string) {
	if h.closed {
		return
	}
	if err := h.rt.Eval(js); err != nil {
		h.fail(err)
	}
}

func (h *Host) fail(err error) {
	log.Warnf("scripthost: uncaught: %v", err)
	h.errs = append(h.errs, err)
}

// call backs __rtc_call. Like every __rtc_* callback it returns at most an
// error: QuickJS cannot hand a Go bool back to a script.
func (h *Host) call(sub, method, argsJSON string, id int) error {
	s, ok := core.ParseSubsystem(sub)
	if !ok {
		return fmt.Errorf("unknown subsystem %q", sub)
	}
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", sub, method, err)
	}
	h.inflight++
	h.b.Call(s, method, args).Then(func(v any, err error) {
		h.inflight--
		h.settle(id, v, err)
	})
	return nil
}

func (h *Host) surface(kind string, tag int, method, argsJSON string, requestID int) error {
	s, ok := core.ParseSubsystem(kind)
	if !ok || !s.Surface() {
		return fmt.Errorf("%q is not a surface kind", kind)
	}
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", kind, method, err)
	}
	h.inflight++
	h.b.DispatchSurface(rtcbridge.View{Tag: tag, Kind: s}, method, requestID, args).Then(func(any, error) {
		h.inflight--
	})
	return nil
}

func (h *Host) settle(id int, v any, err error) {
	ok := err == nil
	var payload any = v
	if err != nil {
		var be *core.Error
		if !errors.As(err, &be) {
			be = &core.Error{Message: err.Error()}
		}
		payload = be
	}
	data, merr := json.Marshal(payload)
	if merr != nil {
		ok = false
		data, _ = json.Marshal(core.NewError(core.CodeInvalidResult, "%v", merr))
	}
	h.eval(fmt.Sprintf("__rtc_settle(%d, %t, %s)", id, ok, data))
}

func (h *Host) subscribe(sub, name string) error {
	s, ok := core.ParseSubsystem(sub)
	if !ok {
		return fmt.Errorf("unknown subsystem %q", sub)
	}
	key := subKey{s, name}
	if _, ok := h.subs[key]; ok {
		return nil
	}
	h.subs[key] = h.b.Subscribe(s, name, func(payload map[string]any) {
		h.dispatch(s, name, payload)
	})
	return nil
}

func (h *Host) unsubscribeAll(sub, name string) {
	key := subKey{core.Subsystem(sub), name}
	if cancel, ok := h.subs[key]; ok {
		cancel()
		delete(h.subs, key)
	}
}

func (h *Host) dispatch(s core.Subsystem, name string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warnf("scripthost: %s: payload not representable: %v", name, err)
		return
	}
	h.eval(fmt.Sprintf("__rtc_dispatch(%s, %s, %s)", core.JsEscape(string(s)), core.JsEscape(name), data))
}

func (h *Host) constants() string {
	data, err := json.Marshal(map[string]any{
		"subsystems":  h.b.Constants(),
		"resultCodes": core.ResultCodes(),
	})
	if err != nil {
		log.Errorf("scripthost: encoding constants: %v", err)
		return "{}"
	}
	return string(data)
}

func (h *Host) setTimer(delayMs int, repeat bool) int {
	var id int
	id = h.loop.RegisterTimer(time.Duration(delayMs)*time.Millisecond, repeat, func() {
		if !repeat {
			delete(h.timers, id)
		}
		h.eval(fmt.Sprintf("__rtc_fireTimer(%d)", id))
	})
	h.timers[id] = struct{}{}
	return id
}

func (h *Host) clearTimer(id int) {
	h.loop.ClearTimer(id)
	delete(h.timers, id)
}

func (h *Host) console(level, message string) {
	switch level {
	case "debug":
		scriptLog.Debug(message)
	case "warn":
		scriptLog.Warn(message)
	case "error":
		scriptLog.Error(message)
	default:
		scriptLog.Info(message)
	}
}

func (h *Host) scriptError(message string) {
	h.fail(errors.New(message))
}

func decodeArgs(s string) (core.Args, error) {
	if s == "" || s == "null" || s == "undefined" {
		return nil, nil
	}
	var args core.Args
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, fmt.Errorf("decoding arguments: %w", err)
	}
	return args, nil
}
