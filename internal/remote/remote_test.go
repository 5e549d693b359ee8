package remote

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/cryguy/rtcbridge"
	"github.com/cryguy/rtcbridge/internal/loopback"
)

func newServer(t *testing.T) (*Server, *httptest.Server, *loopback.Engine) {
	t.Helper()
	lb := loopback.New()
	b := rtcbridge.New(rtcbridge.Config{}, lb)
	t.Cleanup(b.Close)
	s := New(b)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return s, hs, lb
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http")+Path, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, f ClientFrame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c, f); err != nil {
		t.Fatalf("write %s: %v", f.Type, err)
	}
}

func recv(t *testing.T, c *websocket.Conn) ServerFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f ServerFrame
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

// result reads frames until the result for id arrives, returning the
// events seen on the way.
func result(t *testing.T, c *websocket.Conn, id int) (ServerFrame, []ServerFrame) {
	t.Helper()
	var events []ServerFrame
	for {
		f := recv(t, c)
		if f.Type == FrameResult && f.ID == id {
			return f, events
		}
		events = append(events, f)
	}
}

func create(t *testing.T, c *websocket.Conn) {
	t.Helper()
	send(t, c, ClientFrame{Type: FrameCall, ID: 1, Subsystem: "engine", Method: "create",
		Args: map[string]any{"config": map[string]any{"appId": "app"}}})
	if f, _ := result(t, c, 1); f.OK == nil || !*f.OK {
		t.Fatalf("create = %+v", f)
	}
}

func TestCallAndEvent(t *testing.T) {
	_, hs, lb := newServer(t)
	c := dial(t, hs.URL)
	create(t, c)

	send(t, c, ClientFrame{Type: FrameSubscribe, Subsystem: "engine", Event: "onChannelJoinConfirm"})
	send(t, c, ClientFrame{Type: FrameCall, ID: 2, Subsystem: "engine", Method: "joinChannel",
		Args: map[string]any{"token": "t", "channelId": "room", "userId": "me"}})

	res, events := result(t, c, 2)
	if res.OK == nil || !*res.OK || res.Value != float64(0) {
		t.Errorf("join result = %+v", res)
	}
	if len(events) == 0 {
		events = append(events, recv(t, c))
	}
	ev := events[0]
	if ev.Type != FrameEvent || ev.Name != "video.pano.rtc.engine.onChannelJoinConfirm" || ev.Subsystem != "engine" {
		t.Errorf("event = %+v", ev)
	}
	if ch, _, joined := lb.Channel(); ch != "room" || !joined {
		t.Errorf("channel = %q joined=%v", ch, joined)
	}
}

func TestCallFailure(t *testing.T) {
	_, hs, _ := newServer(t)
	c := dial(t, hs.URL)
	create(t, c)

	send(t, c, ClientFrame{Type: FrameCall, ID: 7, Subsystem: "engine", Method: "joinChannel",
		Args: map[string]any{"token": "", "channelId": "room", "userId": "me"}})
	f, _ := result(t, c, 7)
	if f.OK == nil || *f.OK || f.Error == nil || f.Error.Code != "AuthFailed" || f.Error.Message != "token rejected" {
		t.Errorf("result = %+v err=%+v", f, f.Error)
	}

	send(t, c, ClientFrame{Type: FrameCall, ID: 8, Subsystem: "engine", Method: "noSuchMethod"})
	f, _ = result(t, c, 8)
	if f.Error == nil || f.Error.Code != "MethodNotFound" {
		t.Errorf("unknown method = %+v", f)
	}

	send(t, c, ClientFrame{Type: FrameCall, ID: 9, Subsystem: "bogus", Method: "x"})
	f, _ = result(t, c, 9)
	if f.Error == nil || f.Error.Code != "MethodNotFound" {
		t.Errorf("unknown subsystem = %+v", f)
	}
}

func TestConstants(t *testing.T) {
	_, hs, _ := newServer(t)
	c := dial(t, hs.URL)
	send(t, c, ClientFrame{Type: FrameConstants})
	f := recv(t, c)
	if f.Type != FrameConstants || f.Prefixes["whiteboard"] != "video.pano.rtc.whiteboard." {
		t.Errorf("constants = %+v", f)
	}
	if f.ResultCodes["AuthFailed"] != int(rtcbridge.AuthFailed) {
		t.Errorf("result codes = %v", f.ResultCodes)
	}
}

func TestUnknownFrame(t *testing.T) {
	_, hs, _ := newServer(t)
	c := dial(t, hs.URL)
	send(t, c, ClientFrame{Type: "nope"})
	if f := recv(t, c); f.Type != FrameError || !strings.Contains(f.Message, "nope") {
		t.Errorf("frame = %+v", f)
	}
	send(t, c, ClientFrame{Type: FrameSubscribe, Subsystem: "engine"})
	if f := recv(t, c); f.Type != FrameError {
		t.Errorf("subscribe without event = %+v", f)
	}
}

func TestUnsubscribe(t *testing.T) {
	_, hs, _ := newServer(t)
	c := dial(t, hs.URL)
	create(t, c)

	full := "video.pano.rtc.engine.onChannelJoinConfirm"
	send(t, c, ClientFrame{Type: FrameSubscribe, Subsystem: "engine", Event: full})
	send(t, c, ClientFrame{Type: FrameUnsubscribe, Subsystem: "engine", Event: "onChannelJoinConfirm"})
	send(t, c, ClientFrame{Type: FrameCall, ID: 3, Subsystem: "engine", Method: "joinChannel",
		Args: map[string]any{"token": "t", "channelId": "room", "userId": "me"}})
	_, events := result(t, c, 3)

	// A later round trip flushes any event queued behind the result.
	send(t, c, ClientFrame{Type: FrameConstants})
	for {
		f := recv(t, c)
		if f.Type == FrameConstants {
			break
		}
		events = append(events, f)
	}
	for _, ev := range events {
		if ev.Name == full {
			t.Errorf("event delivered after unsubscribe: %+v", ev)
		}
	}
}

func TestSessionsRemovedOnDisconnect(t *testing.T) {
	s, hs, _ := newServer(t)
	c := dial(t, hs.URL)
	send(t, c, ClientFrame{Type: FrameSubscribe, Subsystem: "engine", Event: "onChannelJoinConfirm"})
	send(t, c, ClientFrame{Type: FrameConstants})
	recv(t, c)
	if n := s.Sessions(); n != 1 {
		t.Fatalf("sessions = %d", n)
	}

	_ = c.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for s.Sessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeStopsWithContext(t *testing.T) {
	b := rtcbridge.New(rtcbridge.Config{RemoteMaxConns: 2}, loopback.New())
	t.Cleanup(b.Close)
	s := New(b)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	c := dial(t, "http://"+ln.Addr().String())
	send(t, c, ClientFrame{Type: FrameConstants})
	if f := recv(t, c); f.Type != FrameConstants {
		t.Fatalf("frame = %+v", f)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(7 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
