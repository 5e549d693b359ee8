package rtcbridge

import (
	"sync"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/events"
	"github.com/cryguy/rtcbridge/internal/promise"
)

// surfaceRoutes maps each surface kind and method to the subsystem that
// implements it.
var surfaceRoutes = map[Subsystem]map[string]Subsystem{
	core.SurfaceView: {
		"startVideo":                 core.Engine,
		"subscribeVideo":             core.Engine,
		"subscribeScreen":            core.Engine,
		"startPreview":               core.Engine,
		"startVideoWithStreamId":     core.VideoStreamManager,
		"subscribeVideoWithStreamId": core.VideoStreamManager,
		"startAnnotation":            core.Annotation,
	},
	core.WhiteboardSurfaceView: {
		"open":            core.Whiteboard,
		"startAnnotation": core.Annotation,
	},
}

// DispatchSurface runs method against the native target behind a render
// surface. The outcome is published as onResultReturned on the surface
// channel of view.Kind, tagged with view.Tag and requestID. The returned
// future settles after the result has been published.
func (b *Bridge) DispatchSurface(view View, method string, requestID int, args Args) *Future[any] {
	ch, ok := b.surfaces[view.Kind]
	if !ok {
		return promise.Rejected[any](b.loop, core.NewError(core.CodeMethodNotFound,
			"%s is not a surface kind", view.Kind))
	}
	done, settle := promise.Pending[any](b.loop)
	publish := func(v any, err error) {
		r := events.SurfaceResult{ReactTag: view.Tag, RequestID: requestID}
		if err != nil {
			msg := err.Error()
			r.Error = &msg
		} else {
			r.Result = v
		}
		ch.Publish(view.Kind.EventName(core.ResultReturnedEvent), r)
		settle(v, err)
	}

	target, ok := surfaceRoutes[view.Kind][method]
	if !ok {
		publish(nil, core.NewError(core.CodeMethodNotFound, "%s has no method %q", view.Kind, method))
		return done
	}
	b.invokers[target].InvokeSurface(method, view, args).Then(publish)
	return done
}

// SurfaceView is a mounted render surface. Calls through it are correlated
// with their results by a per-view request id.
type SurfaceView struct {
	b    *Bridge
	view View
	ch   *events.Channel[events.SurfaceResult]

	mu        sync.Mutex
	nextID    int
	pending   map[int]func(any, error) bool
	sub       events.SubID
	unmounted bool
}

// MountSurface mounts a video render surface.
func (b *Bridge) MountSurface() *SurfaceView {
	return b.mount(core.SurfaceView)
}

// MountWhiteboardSurface mounts a whiteboard render surface.
func (b *Bridge) MountWhiteboardSurface() *SurfaceView {
	return b.mount(core.WhiteboardSurfaceView)
}

func (b *Bridge) mount(kind Subsystem) *SurfaceView {
	v := &SurfaceView{
		b:       b,
		view:    View{Tag: b.NewViewTag(), Kind: kind},
		ch:      b.surfaces[kind],
		pending: make(map[int]func(any, error) bool),
	}
	v.sub = v.ch.Subscribe(kind.EventName(core.ResultReturnedEvent), v.onResult)
	return v
}

// Tag returns the identity of the surface.
func (v *SurfaceView) Tag() int {
	return v.view.Tag
}

// Kind returns SubsystemSurfaceView or SubsystemWhiteboardSurfaceView.
func (v *SurfaceView) Kind() Subsystem {
	return v.view.Kind
}

// Call invokes a surface-scoped method. A failed call rejects with an Error
// whose Message is the native error text.
func (v *SurfaceView) Call(method string, args Args) *Future[any] {
	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		return promise.Rejected[any](v.b.loop, core.NewError(core.CodeUnmounted,
			"surface %d is unmounted", v.view.Tag))
	}
	v.nextID++
	id := v.nextID
	f, settle := promise.Pending[any](v.b.loop)
	v.pending[id] = settle
	v.mu.Unlock()

	v.b.DispatchSurface(v.view, method, id, args)
	return f
}

// Pending returns the number of requests awaiting a result.
func (v *SurfaceView) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// Unmount detaches the surface. Requests still in flight are abandoned and
// their results dropped when they arrive.
func (v *SurfaceView) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.unmounted {
		return
	}
	v.unmounted = true
	v.ch.Unsubscribe(v.sub)
	if n := len(v.pending); n > 0 {
		log.Debugf("bridge: surface %d unmounted with %d pending request(s)", v.view.Tag, n)
	}
	v.pending = nil
}

// Unmounted reports whether Unmount was called.
func (v *SurfaceView) Unmounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unmounted
}

func (v *SurfaceView) onResult(r events.SurfaceResult) {
	if r.ReactTag != v.view.Tag {
		return
	}
	v.mu.Lock()
	settle, ok := v.pending[r.RequestID]
	delete(v.pending, r.RequestID)
	v.mu.Unlock()
	if !ok {
		log.Warnf("bridge: surface %d: result for unknown request %d dropped", v.view.Tag, r.RequestID)
		return
	}
	if r.Error != nil {
		settle(nil, &core.Error{Message: *r.Error})
		return
	}
	settle(r.Result, nil)
}
