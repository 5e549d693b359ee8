package loopback

import (
	"sync"
	"testing"

	"github.com/cryguy/rtcbridge/internal/core"
)

type result struct {
	value any
	code  string
	msg   string
	ok    bool
}

type completion struct {
	res *result
}

func (c completion) Succeed(v any)              { *c.res = result{value: v, ok: true} }
func (c completion) Fail(code, message string) { *c.res = result{code: code, msg: message} }

type emitted struct {
	sub   core.Subsystem
	event string
	id    string
	data  []any
}

type sink struct {
	mu     sync.Mutex
	events []emitted
}

func (s *sink) Emit(sub core.Subsystem, event, id string, data ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emitted{sub, event, id, data})
}

func (s *sink) find(event string) (emitted, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.event == event {
			return e, true
		}
	}
	return emitted{}, false
}

func call(t *testing.T, e *Engine, s core.Subsystem, id, method string, args core.Args) result {
	t.Helper()
	reg, ok := e.Target(s, id)
	if !ok {
		t.Fatalf("no target %s %q", s, id)
	}
	h, ok := reg[method]
	if !ok {
		t.Fatalf("%s has no method %s", s, method)
	}
	var r result
	if args == nil {
		if h.NoArgs == nil {
			t.Fatalf("%s.%s has no zero-argument shape", s, method)
		}
		h.NoArgs(completion{&r})
	} else {
		if h.WithArgs == nil {
			t.Fatalf("%s.%s has no argument shape", s, method)
		}
		h.WithArgs(args, completion{&r})
	}
	return r
}

func started(t *testing.T) (*Engine, *sink) {
	t.Helper()
	e := New()
	s := &sink{}
	e.Attach(s)
	if r := call(t, e, core.Engine, "", "create", core.Args{"config": map[string]any{"appId": "app"}}); !r.ok {
		t.Fatalf("create failed: %+v", r)
	}
	return e, s
}

func join(t *testing.T, e *Engine) {
	t.Helper()
	r := call(t, e, core.Engine, "", "joinChannel", core.Args{"token": "t", "channelId": "c", "userId": "me"})
	if !r.ok || r.value != core.OK {
		t.Fatalf("joinChannel = %+v", r)
	}
}

func TestCreateRequiresAppID(t *testing.T) {
	e := New()
	r := call(t, e, core.Engine, "", "create", core.Args{"config": map[string]any{}})
	if r.ok || r.code != "InvalidArgs" {
		t.Fatalf("create without appId = %+v", r)
	}
}

func TestJoinEmitsConfirm(t *testing.T) {
	e, s := started(t)
	join(t, e)

	ev, ok := s.find("onChannelJoinConfirm")
	if !ok {
		t.Fatal("onChannelJoinConfirm not emitted")
	}
	if ev.sub != core.Engine || len(ev.data) != 1 || ev.data[0] != 0 {
		t.Errorf("event = %+v", ev)
	}
	if ch, user, joined := e.Channel(); ch != "c" || user != "me" || !joined {
		t.Errorf("channel = %q %q %v", ch, user, joined)
	}
}

func TestJoinRejectsEmptyToken(t *testing.T) {
	e, _ := started(t)
	r := call(t, e, core.Engine, "", "joinChannel", core.Args{"token": "", "channelId": "c", "userId": "me"})
	if r.ok || r.code != "AuthFailed" {
		t.Fatalf("joinChannel = %+v, want AuthFailed", r)
	}
}

func TestJoinBeforeCreate(t *testing.T) {
	e := New()
	r := call(t, e, core.Engine, "", "joinChannel", core.Args{"token": "t", "channelId": "c", "userId": "me"})
	if !r.ok || r.value != core.NotInitialized {
		t.Fatalf("joinChannel = %+v, want NotInitialized", r)
	}
}

func TestAudioRequiresChannel(t *testing.T) {
	e, _ := started(t)
	if r := call(t, e, core.Engine, "", "startAudio", nil); r.value != core.InvalidState {
		t.Errorf("startAudio before join = %v", r.value)
	}
	join(t, e)
	if r := call(t, e, core.Engine, "", "startAudio", nil); r.value != core.OK {
		t.Errorf("startAudio = %v", r.value)
	}
	if audio, _ := e.Media(); !audio {
		t.Error("audio not started")
	}
}

func TestSurfaceMethodNeedsView(t *testing.T) {
	e, _ := started(t)
	if r := call(t, e, core.Engine, "", "startVideo", core.Args{"config": nil}); r.value != core.InvalidArgs {
		t.Errorf("startVideo without view = %v", r.value)
	}
	view := core.View{Tag: 1, Kind: core.SurfaceView}
	if r := call(t, e, core.Engine, "", "startVideo", core.Args{core.ViewKey: view}); r.value != core.OK {
		t.Errorf("startVideo = %v", r.value)
	}
}

func TestWhiteboardPages(t *testing.T) {
	e, s := started(t)
	if _, ok := e.Target(core.Whiteboard, "nope"); ok {
		t.Fatal("unknown whiteboard resolved")
	}
	if r := call(t, e, core.Whiteboard, DefaultWhiteboardID, "addPage", core.Args{"autoSwitch": true}); r.value != core.OK {
		t.Fatalf("addPage = %v", r.value)
	}
	if r := call(t, e, core.Whiteboard, DefaultWhiteboardID, "getCurrentPageNumber", nil); r.value != 2 {
		t.Errorf("page = %v, want 2", r.value)
	}
	if r := call(t, e, core.Whiteboard, DefaultWhiteboardID, "gotoPage", core.Args{"pageNo": 9}); r.value != core.InvalidIndex {
		t.Errorf("gotoPage(9) = %v", r.value)
	}
	ev, ok := s.find("onPageNumberChanged")
	if !ok || ev.id != DefaultWhiteboardID || ev.data[0] != 2 || ev.data[1] != 2 {
		t.Errorf("onPageNumberChanged = %+v", ev)
	}
}

func TestSwitchWhiteboard(t *testing.T) {
	e, _ := started(t)
	call(t, e, core.Engine, "", "switchWhiteboardEngine", core.Args{"whiteboardId": "wb-2"})
	if r := call(t, e, core.Engine, "", "whiteboardEngine", nil); r.value != "wb-2" {
		t.Errorf("whiteboardEngine = %v", r.value)
	}
	if _, ok := e.Target(core.Whiteboard, "wb-2"); !ok {
		t.Error("switched whiteboard does not resolve")
	}
}

func TestMessageEcho(t *testing.T) {
	e, s := started(t)
	join(t, e)
	r := call(t, e, core.MessageService, "", "broadcastMessage", core.Args{"message": []byte("hi"), "sendBack": true})
	if r.value != core.OK {
		t.Fatalf("broadcastMessage = %v", r.value)
	}
	ev, ok := s.find("onUserMessage")
	if !ok {
		t.Fatal("onUserMessage not emitted")
	}
	if ev.data[0] != "me" || string(ev.data[1].([]byte)) != "hi" {
		t.Errorf("onUserMessage data = %v", ev.data)
	}
}

func TestMessageRejectsText(t *testing.T) {
	e, _ := started(t)
	join(t, e)
	r := call(t, e, core.MessageService, "", "sendMessage", core.Args{"message": "text", "userId": "me"})
	if r.value != core.InvalidArgs {
		t.Errorf("sendMessage with text = %v, want InvalidArgs", r.value)
	}
}

func TestAnnotationIDs(t *testing.T) {
	e, _ := started(t)
	r := call(t, e, core.AnnotationManager, "", "getVideoAnnotation", core.Args{"userId": "u", "streamId": 0})
	if r.value != "video-u-0" {
		t.Fatalf("getVideoAnnotation = %v", r.value)
	}
	if _, ok := e.Target(core.Annotation, "video-u-0"); !ok {
		t.Error("annotation id does not resolve")
	}
}

func TestVideoStreams(t *testing.T) {
	e, _ := started(t)
	r := call(t, e, core.VideoStreamManager, "", "createVideoStream", core.Args{"deviceId": "cam-1"})
	id, ok := r.value.(int)
	if !ok || id <= 0 {
		t.Fatalf("createVideoStream = %v", r.value)
	}
	if r := call(t, e, core.VideoStreamManager, "", "getCaptureDevice", core.Args{"streamId": id}); r.value != "cam-1" {
		t.Errorf("getCaptureDevice = %v", r.value)
	}
	call(t, e, core.VideoStreamManager, "", "destroyVideoStream", core.Args{"streamId": id})
	if r := call(t, e, core.VideoStreamManager, "", "muteVideo", core.Args{"streamId": id}); r.value != core.NotExist {
		t.Errorf("muteVideo on destroyed stream = %v", r.value)
	}
}

func TestCallLog(t *testing.T) {
	e, _ := started(t)
	call(t, e, core.Engine, "", "setParameters", core.Args{"param": "{}"})
	c, ok := e.LastCall("setParameters")
	if !ok || c.Subsystem != core.Engine || c.Args["param"] != "{}" {
		t.Errorf("last call = %+v", c)
	}
	if got := e.Parameters(); len(got) != 1 || got[0] != "{}" {
		t.Errorf("parameters = %v", got)
	}
}

func TestEveryTargetHasMethods(t *testing.T) {
	e, _ := started(t)
	for _, s := range []core.Subsystem{core.Engine, core.AnnotationManager, core.VideoStreamManager,
		core.MessageService, core.NetworkManager} {
		reg, ok := e.Target(s, "")
		if !ok || len(reg.Methods()) == 0 {
			t.Errorf("%s: no methods", s)
		}
	}
}
