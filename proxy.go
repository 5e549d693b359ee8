package rtcbridge

import (
	"sync/atomic"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/events"
	"github.com/cryguy/rtcbridge/internal/promise"
)

// proxy holds what every subsystem proxy shares: the invoker route, the
// instance id and the listener side table.
type proxy struct {
	b         *Bridge
	sub       Subsystem
	id        string
	listeners *events.Registry
	dead      atomic.Bool
}

func newProxy(b *Bridge, sub Subsystem, id string) proxy {
	return proxy{
		b:         b,
		sub:       sub,
		id:        id,
		listeners: events.NewRegistry(b.channel(sub), id),
	}
}

// AddListener subscribes l to a bare event name. Instance proxies only see
// events addressed to their own instance.
func (p *proxy) AddListener(event string, l *Listener) Subscription {
	p.listeners.Add(event, l)
	return Subscription{remove: func() { p.listeners.Remove(event, l) }}
}

// RemoveListener removes exactly the subscription created for l.
func (p *proxy) RemoveListener(event string, l *Listener) {
	p.listeners.Remove(event, l)
}

// RemoveAllListeners removes this proxy's listeners for the given events,
// or for every event when none is given.
func (p *proxy) RemoveAllListeners(event ...string) {
	if len(event) == 0 {
		p.listeners.RemoveAll("")
		return
	}
	for _, e := range event {
		if e != "" {
			p.listeners.RemoveAll(e)
		}
	}
}

// CallMethod invokes any native method of the subsystem. A nil args selects
// the zero-argument native shape. An invalid setOption payload resolves
// InvalidArgs without a native call.
func (p *proxy) CallMethod(method string, args Args) *Future[any] {
	if method == "setOption" {
		checked, err := checkOption(p.sub, args)
		if err != nil {
			log.Debugf("%s setOption rejected: %v", p.sub, err)
			return promise.Resolved[any](p.b.loop, int(InvalidArgs))
		}
		args = checked
	}
	return p.call(method, args)
}

// Constants returns the subsystem constants, currently the event prefix.
func (p *proxy) Constants() map[string]any {
	return p.sub.Constants()
}

func (p *proxy) call(method string, args Args) *Future[any] {
	if p.dead.Load() {
		return promise.Rejected[any](p.b.loop, core.NewError(core.CodeDestroyed,
			"%s.%s on a destroyed proxy", p.sub, method))
	}
	return p.b.invoke(p.sub, method, p.withInstance(args))
}

func (p *proxy) code(method string, args Args) *Future[ResultCode] {
	return promise.Map(p.call(method, args), promise.ResultCode)
}

func (p *proxy) withInstance(args Args) Args {
	key := p.sub.InstanceKey()
	if key == "" {
		return args
	}
	out := make(Args, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out[key] = p.id
	return out
}

// surface runs a surface-scoped method through view. A nil or unmounted
// view resolves InvalidArgs without reaching native code.
func (p *proxy) surface(view *SurfaceView, method string, args Args) *Future[ResultCode] {
	if view == nil || view.Unmounted() {
		return promise.Resolved(p.b.loop, InvalidArgs)
	}
	if p.dead.Load() {
		return promise.Rejected[ResultCode](p.b.loop, core.NewError(core.CodeDestroyed,
			"%s.%s on a destroyed proxy", p.sub, method))
	}
	return promise.Map(view.Call(method, p.withInstance(args)), promise.ResultCode)
}

// release drops every listener and fails later calls with ErrDestroyed.
func (p *proxy) release() {
	p.dead.Store(true)
	p.listeners.RemoveAll("")
}

func boolResult(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, core.NewError(core.CodeInvalidResult, "result is %T, want bool", v)
	}
	return b, nil
}

func stringResult(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", core.NewError(core.CodeInvalidResult, "result is %T, want string", v)
	}
	return s, nil
}

func numberResult(v any) (float64, error) {
	n, ok := number(v)
	if !ok {
		return 0, core.NewError(core.CodeInvalidResult, "result is %T, want number", v)
	}
	return n, nil
}
