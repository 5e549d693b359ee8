package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

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

// flush waits until everything posted so far has run.
func flush(t *testing.T, el *eventloop.EventLoop) {
	t.Helper()
	if err := el.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

type recorder struct {
	mu   sync.Mutex
	args [][]any
}

func (r *recorder) listener() *Listener {
	return NewListener(func(args ...any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.args = append(r.args, args)
	})
}

func (r *recorder) calls() [][]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]any(nil), r.args...)
}

func TestNamespacing(t *testing.T) {
	el := runLoop(t)
	engine := NewChannel[Envelope](el, core.Engine.Prefix())
	wb := NewChannel[Envelope](el, core.Whiteboard.Prefix())

	var a recorder
	NewRegistry(engine, "").Add("onMessage", a.listener())

	wb.Publish(wb.Name("onMessage"), Envelope{InstanceKey: "whiteboardId", InstanceID: "w1", Data: []any{"x"}})
	engine.Publish(wb.Name("onMessage"), Envelope{Data: []any{"y"}})
	flush(t, el)
	if n := len(a.calls()); n != 0 {
		t.Fatalf("engine listener got %d foreign events, want 0", n)
	}

	engine.Publish(engine.Name("onMessage"), Envelope{Data: []any{"z"}})
	flush(t, el)
	if got := a.calls(); len(got) != 1 || got[0][0] != "z" {
		t.Errorf("engine listener calls = %v, want [[z]]", got)
	}
}

func TestInstanceFiltering(t *testing.T) {
	el := runLoop(t)
	ch := NewChannel[Envelope](el, core.Annotation.Prefix())

	var one, two recorder
	NewRegistry(ch, "ann-1").Add("onAnnoRoleChanged", one.listener())
	NewRegistry(ch, "ann-2").Add("onAnnoRoleChanged", two.listener())

	ch.Publish(ch.Name("onAnnoRoleChanged"), Envelope{InstanceKey: "annotationId", InstanceID: "ann-1", Data: []any{1}})
	flush(t, el)

	if got := one.calls(); len(got) != 1 || got[0][0] != 1 {
		t.Errorf("ann-1 calls = %v, want [[1]]", got)
	}
	if got := two.calls(); len(got) != 0 {
		t.Errorf("ann-2 calls = %v, want none", got)
	}
}

func TestRemovePrecision(t *testing.T) {
	el := runLoop(t)
	ch := NewChannel[Envelope](el, core.Engine.Prefix())
	reg := NewRegistry(ch, "")

	var r1, r2 recorder
	l1, l2 := r1.listener(), r2.listener()
	reg.Add("onUserJoinIndication", l1)
	reg.Add("onUserJoinIndication", l2)
	reg.Remove("onUserJoinIndication", l1)

	ch.Publish(ch.Name("onUserJoinIndication"), Envelope{Data: []any{"u1", "name"}})
	flush(t, el)

	if n := len(r1.calls()); n != 0 {
		t.Errorf("removed listener called %d times", n)
	}
	if n := len(r2.calls()); n != 1 {
		t.Errorf("remaining listener called %d times, want 1", n)
	}
}

func TestRemoveAllScopedToInstance(t *testing.T) {
	el := runLoop(t)
	ch := NewChannel[Envelope](el, core.Whiteboard.Prefix())
	a := NewRegistry(ch, "w1")
	b := NewRegistry(ch, "w2")

	var ra, rb recorder
	a.Add("onMessage", ra.listener())
	a.Add("onRoleTypeChanged", ra.listener())
	b.Add("onMessage", rb.listener())

	a.RemoveAll("")
	if n := ch.Count(ch.Name("onMessage")); n != 1 {
		t.Fatalf("onMessage subscriptions = %d, want 1", n)
	}
	ch.Publish(ch.Name("onMessage"), Envelope{InstanceKey: "whiteboardId", InstanceID: "w2", Data: []any{"u", "m"}})
	flush(t, el)
	if n := len(rb.calls()); n != 1 {
		t.Errorf("w2 listener calls = %d, want 1", n)
	}
}

func TestRemoveAllForEvent(t *testing.T) {
	el := runLoop(t)
	ch := NewChannel[Envelope](el, core.Engine.Prefix())
	reg := NewRegistry(ch, "")
	var r recorder
	reg.Add("a", r.listener())
	reg.Add("a", r.listener())
	reg.Add("b", r.listener())

	reg.RemoveAll("a")
	if reg.Len("a") != 0 || ch.Count(ch.Name("a")) != 0 {
		t.Errorf("event a still has subscriptions")
	}
	if reg.Len("b") != 1 {
		t.Errorf("event b lost its listener")
	}
}

func TestPublishOrder(t *testing.T) {
	el := runLoop(t)
	ch := NewChannel[Envelope](el, "p.")
	var r recorder
	NewRegistry(ch, "").Add("e", r.listener())

	for i := 0; i < 50; i++ {
		ch.Publish("p.e", Envelope{Data: []any{i}})
	}
	flush(t, el)
	got := r.calls()
	if len(got) != 50 {
		t.Fatalf("got %d events, want 50", len(got))
	}
	for i, args := range got {
		if args[0] != i {
			t.Fatalf("event %d delivered at position %d", args[0], i)
		}
	}
}

func TestListenerPanicIsolated(t *testing.T) {
	el := runLoop(t)
	ch := NewChannel[Envelope](el, "p.")
	reg := NewRegistry(ch, "")
	reg.Add("e", NewListener(func(...any) { panic("bad listener") }))
	var r recorder
	reg.Add("e", r.listener())

	ch.Publish("p.e", Envelope{})
	flush(t, el)
	if n := len(r.calls()); n != 1 {
		t.Errorf("second listener calls = %d, want 1", n)
	}
}

func TestDuplicateAddIgnored(t *testing.T) {
	el := runLoop(t)
	ch := NewChannel[Envelope](el, "p.")
	reg := NewRegistry(ch, "")
	var r recorder
	l := r.listener()
	reg.Add("e", l)
	reg.Add("e", l)
	if n := ch.Count("p.e"); n != 1 {
		t.Errorf("subscriptions = %d, want 1", n)
	}
}

func TestEnvelopeJSON(t *testing.T) {
	tests := []struct {
		env  Envelope
		want string
	}{
		{Envelope{Data: []any{0}}, `{"data":[0]}`},
		{Envelope{}, `{"data":[]}`},
		{Envelope{InstanceKey: "annotationId", InstanceID: "ann-1", Data: []any{1}}, `{"annotationId":"ann-1","data":[1]}`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.env)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(b) != tt.want {
			t.Errorf("Marshal = %s, want %s", b, tt.want)
		}
	}
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope(map[string]any{"whiteboardId": "w1", "data": []any{"a"}}, "whiteboardId")
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.InstanceID != "w1" || len(env.Data) != 1 {
		t.Errorf("env = %+v", env)
	}
	if _, err := ParseEnvelope(map[string]any{"data": []any{}}, "whiteboardId"); err == nil {
		t.Error("missing instance id accepted")
	}
	if _, err := ParseEnvelope(map[string]any{"data": "nope"}, ""); err == nil {
		t.Error("non-array data accepted")
	}
}

func TestSurfaceResultJSON(t *testing.T) {
	msg := "AuthFailed"
	b, _ := json.Marshal(SurfaceResult{ReactTag: 3, RequestID: 7, Error: &msg})
	want := `{"reactTag":3,"requestId":7,"result":null,"error":"AuthFailed"}`
	if string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}
}
