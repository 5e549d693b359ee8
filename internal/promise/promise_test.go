package promise

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/eventloop"
)

func runLoop(t *testing.T) *eventloop.EventLoop {
	t.Helper()
	el := eventloop.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = el.Run(ctx) }()
	t.Cleanup(cancel)
	return el
}

func await(t *testing.T, f *Future[any]) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := f.Await(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("future never settled")
	}
	return v, err
}

func TestResolverExactlyOnce(t *testing.T) {
	el := runLoop(t)
	f, r := New(el, "engine.test")

	var calls int
	var mu sync.Mutex
	f.Then(func(any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	r.Succeed(1)
	r.Succeed(2)
	r.Fail("Failed", "late")
	r.FailError(errors.New("later"))

	v, err := await(t, f)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if v != 1 {
		t.Errorf("value = %v, want 1", v)
	}

	// Flush the loop so any stray continuation would have run.
	_ = el.Call(context.Background(), func() {})
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("continuation ran %d times, want 1", calls)
	}
}

func TestResolverConcurrentArms(t *testing.T) {
	el := runLoop(t)
	f, r := New(el, "engine.race")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); r.Succeed(true) }()
		go func() { defer wg.Done(); r.Fail("Failed", "x") }()
	}
	wg.Wait()

	v, err := await(t, f)
	if (err == nil) == (v == nil) {
		t.Fatalf("settled with v=%v err=%v, want exactly one arm", v, err)
	}
}

func TestResolverFail(t *testing.T) {
	el := runLoop(t)
	f, r := New(el, "engine.joinChannel")
	r.Fail("AuthFailed", "token expired")

	_, err := await(t, f)
	var ce *core.Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %T, want *core.Error", err)
	}
	if ce.Code != "AuthFailed" || ce.Message != "token expired" {
		t.Errorf("err = %+v, want {AuthFailed token expired}", ce)
	}
}

func TestResolverFailSynthesis(t *testing.T) {
	el := runLoop(t)

	f1, r1 := New(el, "a")
	r1.FailError(errors.New("disk full"))
	_, err := await(t, f1)
	if ce := err.(*core.Error); ce.Code != "" || ce.Message != "disk full" {
		t.Errorf("FailError = %+v", ce)
	}

	f2, r2 := New(el, "b")
	r2.FailCode("NetworkError")
	_, err = await(t, f2)
	if ce := err.(*core.Error); ce.Code != "NetworkError" || ce.Message != "" {
		t.Errorf("FailCode = %+v", ce)
	}
}

func TestResolverInvalidResult(t *testing.T) {
	el := runLoop(t)
	f, r := New(el, "engine.weird")
	r.Succeed(struct{ X int }{1})

	_, err := await(t, f)
	if !errors.Is(err, core.ErrInvalidResult) {
		t.Fatalf("err = %v, want InvalidResult", err)
	}
}

type handle struct{ code core.ResultCode }

func (h handle) ResultCode() core.ResultCode { return h.code }

func TestMapValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, 42},
		{"int32", int32(-3), -3},
		{"string", "hi", "hi"},
		{"coded", core.AuthFailed, -101},
		{"coded wrapper", handle{core.ChannelFull}, -152},
		{"float32", float32(1.5), 1.5},
		{"int64 widened", int64(7), float64(7)},
		{"uint64 widened", uint64(9), float64(9)},
		{"sequence", []any{1, "a", nil}, []any{1, "a", nil}},
		{"typed sequence", []string{"x", "y"}, []any{"x", "y"}},
		{"string map", map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"non-string keys dropped", map[any]any{"a": 1, 2: "b", "c": core.OK}, map[string]any{"a": 1, "c": 0}},
		{"int keyed map", map[int]string{1: "x"}, map[string]any{}},
		{"nested", map[string]any{"l": []any{map[any]any{"k": int64(1), 3: 3}}}, map[string]any{"l": []any{map[string]any{"k": float64(1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapValue(tt.in)
			if err != nil {
				t.Fatalf("MapValue: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MapValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapValueRejects(t *testing.T) {
	for _, in := range []any{[]byte("x"), struct{}{}, make(chan int), []any{1, struct{}{}}} {
		if _, err := MapValue(in); !errors.Is(err, core.ErrInvalidResult) {
			t.Errorf("MapValue(%T) err = %v, want InvalidResult", in, err)
		}
	}
}

func TestMapFuture(t *testing.T) {
	el := runLoop(t)
	f, r := New(el, "engine.startAudio")
	codes := Map(f, ResultCode)
	r.Succeed(core.OK)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	code, err := codes.Await(ctx)
	if err != nil || code != core.OK {
		t.Errorf("code = %v, err = %v, want OK", code, err)
	}
}

func TestThenAfterSettleRunsOnLoop(t *testing.T) {
	el := runLoop(t)
	f := Resolved[any](el, "done")
	got := make(chan any, 1)
	f.Then(func(v any, _ error) { got <- v })
	select {
	case v := <-got:
		if v != "done" {
			t.Errorf("v = %v, want done", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never ran")
	}
}
