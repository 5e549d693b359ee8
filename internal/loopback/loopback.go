// Package loopback is an in-process stand-in for the native RTC engine. It
// keeps just enough state to answer every bridged method plausibly and
// raises the events a real engine would, which makes the bridge usable in
// tests, the CLI and hosted scripts without media hardware.
package loopback

import (
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/invoker"
)

var log = logging.Logger("rtcbridge/loopback")

// DefaultWhiteboardID is the whiteboard that exists once a channel with the
// whiteboard service is joined.
const DefaultWhiteboardID = "default"

// Call is one recorded native invocation.
type Call struct {
	Subsystem  core.Subsystem
	InstanceID string
	Method     string
	Args       core.Args
}

// Engine is the simulated native engine. All methods are safe for
// concurrent use.
type Engine struct {
	mu   sync.Mutex
	sink core.EventSink

	created   bool
	params    []string
	channelID string
	userID    string
	joined    bool
	audio     bool
	video     bool
	muted     bool
	speaker   bool
	front     bool

	currentWB   string
	whiteboards map[string]*board
	annotations map[string]bool
	streams     map[int]string
	nextStream  int
	calls       []Call

	targets map[core.Subsystem]func(id string) invoker.Registry
}

type board struct {
	page, pages int
	tool        int
	undo        int
}

// New creates an engine with no native state.
func New() *Engine {
	e := &Engine{
		front:       true,
		whiteboards: make(map[string]*board),
		annotations: make(map[string]bool),
		streams:     make(map[int]string),
	}
	e.targets = map[core.Subsystem]func(string) invoker.Registry{
		core.Engine:             func(string) invoker.Registry { return e.engineMethods() },
		core.Whiteboard:         e.whiteboardMethods,
		core.AnnotationManager:  func(string) invoker.Registry { return e.annotationManagerMethods() },
		core.Annotation:         e.annotationMethods,
		core.VideoStreamManager: func(string) invoker.Registry { return e.videoStreamMethods() },
		core.MessageService:     func(string) invoker.Registry { return e.messageMethods() },
		core.NetworkManager:     func(string) invoker.Registry { return e.networkMethods() },
	}
	return e
}

// Attach stores the sink events are raised on.
func (e *Engine) Attach(sink core.EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Target returns the method table of a subsystem instance. Instance
// subsystems resolve only ids the engine has handed out.
func (e *Engine) Target(s core.Subsystem, instanceID string) (invoker.Registry, bool) {
	build, ok := e.targets[s]
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	switch s {
	case core.Whiteboard:
		ok = e.whiteboards[instanceID] != nil
	case core.Annotation:
		ok = e.annotations[instanceID]
	default:
		ok = instanceID == ""
	}
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.recording(s, instanceID, build(instanceID)), true
}

// recording wraps reg so every call is appended to the call log.
func (e *Engine) recording(s core.Subsystem, id string, reg invoker.Registry) invoker.Registry {
	out := make(invoker.Registry, len(reg))
	for name, h := range reg {
		name, h := name, h
		var w invoker.Handler
		if h.NoArgs != nil {
			w.NoArgs = func(done core.Completion) {
				e.record(Call{Subsystem: s, InstanceID: id, Method: name})
				h.NoArgs(done)
			}
		}
		if h.WithArgs != nil {
			w.WithArgs = func(args core.Args, done core.Completion) {
				e.record(Call{Subsystem: s, InstanceID: id, Method: name, Args: args})
				h.WithArgs(args, done)
			}
		}
		out[name] = w
	}
	return out
}

func (e *Engine) record(c Call) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
}

// Calls returns a copy of the call log.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// LastCall returns the most recent call of method, if any.
func (e *Engine) LastCall(method string) (Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.calls) - 1; i >= 0; i-- {
		if e.calls[i].Method == method {
			return e.calls[i], true
		}
	}
	return Call{}, false
}

// Parameters returns every setParameters payload received.
func (e *Engine) Parameters() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.params...)
}

// Emit raises an event as if the native engine had. It is exported so tests
// and demos can inject remote-user activity.
func (e *Engine) Emit(s core.Subsystem, event, instanceID string, data ...any) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		log.Debugf("loopback: no sink, dropped %s.%s", s, event)
		return
	}
	sink.Emit(s, event, instanceID, data...)
}

// JoinRemoteUser simulates another participant joining the channel.
func (e *Engine) JoinRemoteUser(userID, userName string) {
	e.Emit(core.Engine, "onUserJoinIndication", "", userID, userName)
}

func ok(done core.Completion) {
	done.Succeed(core.OK)
}

func code(done core.Completion, c core.ResultCode) {
	done.Succeed(c)
}

// invalid reports an argument error as the InvalidArgs result code, which
// is how the engine answers malformed calls.
func invalid(done core.Completion, err error) {
	log.Debugf("loopback: %v", err)
	done.Succeed(core.InvalidArgs)
}

// okMethods registers methods that only report success.
func okMethods(reg invoker.Registry, noArgs []string, withArgs []string) {
	for _, m := range noArgs {
		reg.NoArgs(m, ok)
	}
	for _, m := range withArgs {
		reg.WithArgs(m, func(_ core.Args, done core.Completion) { ok(done) })
	}
}

func (e *Engine) requireJoined(done core.Completion) bool {
	e.mu.Lock()
	joined := e.joined
	e.mu.Unlock()
	if !joined {
		code(done, core.InvalidState)
	}
	return joined
}

func (e *Engine) selfID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("loopback: "+format, args...)
}

// Channel reports the joined channel and local user.
func (e *Engine) Channel() (channelID, userID string, joined bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channelID, e.userID, e.joined
}

// Media reports whether local audio and video are started.
func (e *Engine) Media() (audio, video bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audio, e.video
}
