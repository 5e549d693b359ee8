package promise

import (
	"errors"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/eventloop"
)

var log = logging.Logger("rtcbridge/promise")

// Resolver is the completion handle handed to native code for one
// invocation. Exactly one of its arms takes effect; later calls are logged
// and ignored. Settlement always hops onto the event loop.
type Resolver struct {
	f     *Future[any]
	loop  *eventloop.EventLoop
	label string
	used  atomic.Bool
}

var _ core.Completion = (*Resolver)(nil)

// New returns a pending future and the resolver that settles it. label names
// the invocation in log messages, e.g. "engine.joinChannel".
func New(loop *eventloop.EventLoop, label string) (*Future[any], *Resolver) {
	f := newFuture[any](loop)
	return f, &Resolver{f: f, loop: loop, label: label}
}

// Succeed resolves with v after mapping it through MapValue. A value that
// cannot be mapped rejects with an InvalidResult error instead.
func (r *Resolver) Succeed(v any) {
	if !r.claim("succeed") {
		return
	}
	mapped, err := MapValue(v)
	if err != nil {
		log.Warnf("promise: %s: %v", r.label, err)
	}
	r.deliver(mapped, err)
}

// Fail rejects with the {code, message} pair.
func (r *Resolver) Fail(code, message string) {
	if !r.claim("fail") {
		return
	}
	r.deliver(nil, &core.Error{Code: code, Message: message})
}

// FailCode rejects with a code and an empty message.
func (r *Resolver) FailCode(code string) {
	r.Fail(code, "")
}

// FailError rejects with err. A *core.Error is kept as is; any other error
// becomes {code: "", message: err.Error()}.
func (r *Resolver) FailError(err error) {
	if !r.claim("fail") {
		return
	}
	var ce *core.Error
	if !errors.As(err, &ce) {
		ce = &core.Error{Message: err.Error()}
	}
	r.deliver(nil, ce)
}

// Future returns the future this resolver settles.
func (r *Resolver) Future() *Future[any] {
	return r.f
}

func (r *Resolver) claim(arm string) bool {
	if r.used.CompareAndSwap(false, true) {
		return true
	}
	log.Warnf("promise: %s: %s after completion ignored", r.label, arm)
	return false
}

func (r *Resolver) deliver(v any, err error) {
	if r.loop == nil || !r.loop.Post(func() { r.f.settle(v, err) }) {
		r.f.settle(v, err)
	}
}
