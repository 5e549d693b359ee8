package invoker

import (
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cryguy/rtcbridge/internal/codec"
	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/eventloop"
	"github.com/cryguy/rtcbridge/internal/promise"
)

var log = logging.Logger("rtcbridge/invoker")

// Resolver locates the native method table for an instance. instanceID is
// empty for single-instance subsystems. ok is false when the native
// counterpart does not exist.
type Resolver func(instanceID string) (reg Registry, ok bool)

// Call describes one dispatched invocation, after argument rewriting.
type Call struct {
	Subsystem  core.Subsystem
	Method     string
	InstanceID string
	Args       core.Args
	Started    time.Time
}

// Observer is told about every invocation together with its future.
type Observer interface {
	Invoked(c Call, f *promise.Future[any])
}

// Invoker forwards named calls with keyed arguments to the native target of
// one subsystem.
type Invoker struct {
	sub        core.Subsystem
	loop       *eventloop.EventLoop
	resolve    Resolver
	appContext any
	observer   Observer
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithAppContext sets the handle injected into engine create.
func WithAppContext(ctx any) Option {
	return func(iv *Invoker) { iv.appContext = ctx }
}

// WithObserver installs an invocation observer.
func WithObserver(o Observer) Option {
	return func(iv *Invoker) { iv.observer = o }
}

// New creates an invoker for sub.
func New(sub core.Subsystem, loop *eventloop.EventLoop, resolve Resolver, opts ...Option) *Invoker {
	iv := &Invoker{sub: sub, loop: loop, resolve: resolve}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

// Subsystem returns the subsystem this invoker targets.
func (iv *Invoker) Subsystem() core.Subsystem {
	return iv.sub
}

// Invoke calls method. A nil args selects the zero-argument native shape.
func (iv *Invoker) Invoke(method string, args core.Args) *promise.Future[any] {
	return iv.dispatch(method, args, nil)
}

// InvokeSurface calls a surface-scoped method, injecting the surface
// identity under core.ViewKey.
func (iv *Invoker) InvokeSurface(method string, view core.View, args core.Args) *promise.Future[any] {
	return iv.dispatch(method, args, &view)
}

func (iv *Invoker) dispatch(method string, args core.Args, view *core.View) *promise.Future[any] {
	label := string(iv.sub) + "." + method
	c := Call{Subsystem: iv.sub, Method: method, Args: clone(args), Started: time.Now()}

	if key := iv.sub.InstanceKey(); key != "" {
		id, _ := c.Args[key].(string)
		if id == "" {
			return iv.reject(c, core.NewError(core.CodeNotInitialized, "%s: missing %s", label, key))
		}
		c.InstanceID = id
		delete(c.Args, key)
		if len(c.Args) == 0 {
			c.Args = nil
		}
	}

	if iv.sub == core.Engine && method == "create" {
		if c.Args == nil {
			c.Args = core.Args{}
		}
		c.Args[core.ContextKey] = iv.appContext
	}
	if view != nil {
		if c.Args == nil {
			c.Args = core.Args{}
		}
		c.Args[core.ViewKey] = *view
	}

	c.Args = codec.EncodeArgs(iv.sub, method, c.Args)

	reg, ok := iv.resolve(c.InstanceID)
	if !ok {
		target := string(iv.sub)
		if c.InstanceID != "" {
			target += " " + c.InstanceID
		}
		return iv.reject(c, core.NewError(core.CodeNotInitialized, "%s: %s is not available", label, target))
	}

	h, ok := reg[method]
	var call func(done core.Completion)
	switch {
	case !ok:
	case c.Args == nil && h.NoArgs != nil:
		call = h.NoArgs
	case c.Args != nil && h.WithArgs != nil:
		a := c.Args
		call = func(done core.Completion) { h.WithArgs(a, done) }
	}
	if call == nil {
		log.Warnf("invoker: no method %s with %d argument(s)", label, arity(c.Args))
		return iv.reject(c, core.NewError(core.CodeMethodNotFound,
			"%s has no method %q taking %d argument(s)", iv.sub, method, arity(c.Args)))
	}

	f, r := promise.New(iv.loop, label)
	iv.observe(c, f)
	log.Debugf("invoker: %s instance=%q args=%d", label, c.InstanceID, len(c.Args))

	func() {
		defer func() {
			if p := recover(); p != nil {
				r.FailError(fmt.Errorf("native %s panicked: %v", label, p))
			}
		}()
		call(r)
	}()
	return f
}

// reject fails c before it reaches native code. The observer still sees it.
func (iv *Invoker) reject(c Call, err error) *promise.Future[any] {
	f := promise.Rejected[any](iv.loop, err)
	iv.observe(c, f)
	return f
}

func (iv *Invoker) observe(c Call, f *promise.Future[any]) {
	if iv.observer != nil {
		iv.observer.Invoked(c, f)
	}
}

func arity(args core.Args) int {
	if args == nil {
		return 0
	}
	return 1
}

func clone(args core.Args) core.Args {
	if args == nil {
		return nil
	}
	out := make(core.Args, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
