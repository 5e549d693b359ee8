package rtcbridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cryguy/rtcbridge/internal/codec"
	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/eventloop"
	"github.com/cryguy/rtcbridge/internal/events"
	"github.com/cryguy/rtcbridge/internal/invoker"
	"github.com/cryguy/rtcbridge/internal/promise"
)

var log = logging.Logger("rtcbridge")

// Config is the runtime configuration of a Bridge.
type Config = core.Config

// Subsystem names a native module.
type Subsystem = core.Subsystem

const (
	SubsystemEngine                = core.Engine
	SubsystemWhiteboard            = core.Whiteboard
	SubsystemAnnotation            = core.Annotation
	SubsystemAnnotationManager     = core.AnnotationManager
	SubsystemVideoStreamManager    = core.VideoStreamManager
	SubsystemMessageService        = core.MessageService
	SubsystemNetworkManager        = core.NetworkManager
	SubsystemSurfaceView           = core.SurfaceView
	SubsystemWhiteboardSurfaceView = core.WhiteboardSurfaceView
)

// Future is the asynchronous result of a bridge call.
type Future[T any] = promise.Future[T]

// Completion, EventSink and Registry are the native side of the bridge.
type (
	Completion = core.Completion
	EventSink  = core.EventSink
	Registry   = invoker.Registry
	View       = core.View
)

// Native is the native engine the bridge drives. Target returns the method
// table of one subsystem instance; instanceID is empty for single-instance
// subsystems.
type Native interface {
	Attach(sink EventSink)
	Target(s Subsystem, instanceID string) (Registry, bool)
}

// Recorder observes every invocation and every published event. It is used
// by the trace journal.
type Recorder interface {
	invoker.Observer
	Event(s Subsystem, name string, payload any)
}

type engineState int

const (
	engineUninitialized engineState = iota
	engineCreating
	engineReady
	engineDestroyed
)

// Bridge connects proxies to a Native engine. It owns the callback queue
// goroutine; every completion, event delivery and surface result runs
// there.
type Bridge struct {
	cfg      core.Config
	native   Native
	loop     *eventloop.EventLoop
	recorder Recorder

	channels map[Subsystem]*events.Channel[events.Envelope]
	surfaces map[Subsystem]*events.Channel[events.SurfaceResult]
	invokers map[Subsystem]*invoker.Invoker

	mu       sync.Mutex
	state    engineState
	engine   *Engine
	creating *promise.Future[*Engine]
	nextTag  int

	cancel context.CancelFunc
	done   chan struct{}
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithRecorder installs r as the invocation and event recorder.
func WithRecorder(r Recorder) BridgeOption {
	return func(b *Bridge) { b.recorder = r }
}

// New creates a bridge over native and starts its callback queue.
func New(cfg Config, native Native, opts ...BridgeOption) *Bridge {
	cfg = cfg.WithDefaults()
	b := &Bridge{
		cfg:      cfg,
		native:   native,
		loop:     eventloop.New(cfg.QueueSize),
		channels: make(map[Subsystem]*events.Channel[events.Envelope]),
		surfaces: make(map[Subsystem]*events.Channel[events.SurfaceResult]),
		invokers: make(map[Subsystem]*invoker.Invoker),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	ivOpts := []invoker.Option{invoker.WithAppContext(cfg.AppContext)}
	if b.recorder != nil {
		ivOpts = append(ivOpts, invoker.WithObserver(b.recorder))
	}
	for _, s := range core.Subsystems() {
		if s.Surface() {
			ch := events.NewChannel[events.SurfaceResult](b.loop, s.Prefix())
			b.tapSurface(s, ch)
			b.surfaces[s] = ch
			continue
		}
		ch := events.NewChannel[events.Envelope](b.loop, s.Prefix())
		b.tapEnvelope(s, ch)
		b.channels[s] = ch
		sub := s
		b.invokers[s] = invoker.New(s, b.loop, func(id string) (invoker.Registry, bool) {
			return native.Target(sub, id)
		}, ivOpts...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go func() {
		defer close(b.done)
		_ = b.loop.Run(ctx)
	}()

	native.Attach(b)
	return b
}

func (b *Bridge) tapEnvelope(s Subsystem, ch *events.Channel[events.Envelope]) {
	if b.recorder == nil {
		return
	}
	ch.Tap(func(name string, env events.Envelope) { b.recorder.Event(s, name, env.Map()) })
}

func (b *Bridge) tapSurface(s Subsystem, ch *events.Channel[events.SurfaceResult]) {
	if b.recorder == nil {
		return
	}
	ch.Tap(func(name string, r events.SurfaceResult) { b.recorder.Event(s, name, r.Map()) })
}

// Config returns the effective configuration.
func (b *Bridge) Config() Config {
	return b.cfg
}

// Loop returns the callback queue. Script hosts schedule their work on it.
func (b *Bridge) Loop() *eventloop.EventLoop {
	return b.loop
}

// Close stops the callback queue. Pending futures stay pending.
func (b *Bridge) Close() {
	b.loop.Close()
	b.cancel()
	<-b.done
}

// Emit implements EventSink. Binary fields listed for the event are decoded
// to text before the envelope is published.
func (b *Bridge) Emit(s Subsystem, event, instanceID string, data ...any) {
	ch, ok := b.channels[s]
	if !ok {
		log.Warnf("bridge: event %s from %s has no channel", event, s)
		return
	}
	env := events.Envelope{
		InstanceKey: s.InstanceKey(),
		InstanceID:  instanceID,
		Data:        codec.DecodeEvent(s, event, data),
	}
	ch.Publish(s.EventName(event), env)
}

// Publish delivers a raw envelope mapping under a fully qualified event
// name, the way the native side puts it on the wire.
func (b *Bridge) Publish(s Subsystem, fullName string, payload map[string]any) error {
	ch, ok := b.channels[s]
	if !ok {
		return fmt.Errorf("bridge: %s has no event channel", s)
	}
	env, err := events.ParseEnvelope(payload, s.InstanceKey())
	if err != nil {
		return fmt.Errorf("bridge: %s: %w", fullName, err)
	}
	env.Data = codec.DecodeEvent(s, strings.TrimPrefix(fullName, ch.Prefix()), env.Data)
	ch.Publish(fullName, env)
	return nil
}

// Call invokes method on a subsystem without a typed proxy. Instance
// subsystems take the instance id from args. Engine create and destroy go
// through the singleton, and engine and whiteboard setOption payloads are
// validated here, so every transport sees the same engine and rejects the
// same payloads.
func (b *Bridge) Call(s Subsystem, method string, args Args) *Future[any] {
	iv, ok := b.invokers[s]
	if !ok {
		return promise.Rejected[any](b.loop, core.NewError(core.CodeMethodNotFound,
			"%s is not an invocable subsystem", s))
	}
	if method == "setOption" {
		checked, err := checkOption(s, args)
		if err != nil {
			log.Debugf("bridge: %s setOption rejected: %v", s, err)
			return promise.Resolved[any](b.loop, int(InvalidArgs))
		}
		args = checked
	}
	if s != core.Engine {
		return iv.Invoke(method, args)
	}
	switch method {
	case "create":
		cfg, _ := args["config"].(map[string]any)
		return promise.Map(b.Create(ParseEngineConfig(cfg)), func(*Engine) (any, error) {
			return nil, nil
		})
	case "destroy":
		e, err := b.Engine()
		if err != nil {
			return promise.Rejected[any](b.loop, err)
		}
		return promise.Map(e.Destroy(), func(c ResultCode) (any, error) {
			return int(c), nil
		})
	}
	return iv.Invoke(method, args)
}

// Subscribe attaches fn to a fully qualified event of s. The payload is the
// envelope mapping, or the surface result mapping for surface channels.
// The returned function removes the subscription.
func (b *Bridge) Subscribe(s Subsystem, fullName string, fn func(payload map[string]any)) (cancel func()) {
	if ch, ok := b.channels[s]; ok {
		id := ch.Subscribe(fullName, func(env events.Envelope) { fn(env.Map()) })
		return func() { ch.Unsubscribe(id) }
	}
	if ch, ok := b.surfaces[s]; ok {
		id := ch.Subscribe(fullName, func(r events.SurfaceResult) { fn(r.Map()) })
		return func() { ch.Unsubscribe(id) }
	}
	log.Warnf("bridge: subscribe to unknown subsystem %s", s)
	return func() {}
}

// Constants returns the exported constants of every subsystem, keyed by
// subsystem name.
func (b *Bridge) Constants() map[string]any {
	out := make(map[string]any, len(core.Subsystems()))
	for _, s := range core.Subsystems() {
		out[string(s)] = s.Constants()
	}
	return out
}

// Create returns the engine singleton, creating the native engine on first
// use. Concurrent callers share one creation. After Destroy a new engine can
// be created.
func (b *Bridge) Create(cfg EngineConfig) *Future[*Engine] {
	b.mu.Lock()
	switch b.state {
	case engineReady:
		e := b.engine
		b.mu.Unlock()
		return promise.Resolved(b.loop, e)
	case engineCreating:
		f := b.creating
		b.mu.Unlock()
		return f
	}
	prev := b.state
	b.state = engineCreating
	f, settle := promise.Pending[*Engine](b.loop)
	b.creating = f
	b.mu.Unlock()

	b.invokers[core.Engine].Invoke("create", Args{"config": cfg.args()}).Then(func(_ any, err error) {
		b.mu.Lock()
		b.creating = nil
		if err != nil {
			b.state = prev
			b.mu.Unlock()
			settle(nil, err)
			return
		}
		e := newEngine(b)
		b.engine = e
		b.state = engineReady
		b.mu.Unlock()

		e.SetParameters(`{"pano_sdk":{"sdk_type":"go"}}`)
		settle(e, nil)
	})
	return f
}

// Engine returns the live engine singleton.
func (b *Bridge) Engine() (*Engine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case engineReady:
		return b.engine, nil
	case engineDestroyed:
		return nil, ErrDestroyed
	}
	return nil, ErrNotInitialized
}

// release clears the singleton slot if it still holds e.
func (b *Bridge) release(e *Engine) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.engine != e {
		return false
	}
	b.engine = nil
	b.state = engineDestroyed
	return true
}

// NewViewTag allocates the identity of a new render surface.
func (b *Bridge) NewViewTag() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTag++
	return b.nextTag
}

func (b *Bridge) invoke(s Subsystem, method string, args Args) *Future[any] {
	return b.invokers[s].Invoke(method, args)
}

func (b *Bridge) channel(s Subsystem) *events.Channel[events.Envelope] {
	return b.channels[s]
}
