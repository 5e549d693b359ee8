package rtcbridge

import (
	"errors"
	"strings"
	"testing"

	"github.com/cryguy/rtcbridge/internal/core"
)

func TestSurfaceCallInjectsView(t *testing.T) {
	b, lb := newBridge(t)
	e := joined(t, b)
	view := b.MountSurface()

	mustCode(t, e.StartVideo(view, nil), OK)
	c, ok := lb.LastCall("startVideo")
	if !ok {
		t.Fatal("startVideo not called")
	}
	if got := c.Args["view"]; got != (View{Tag: view.Tag(), Kind: SubsystemSurfaceView}) {
		t.Errorf("view = %v", got)
	}
	if view.Pending() != 0 {
		t.Errorf("pending = %d after result", view.Pending())
	}
}

func TestSurfaceNilOrUnmounted(t *testing.T) {
	b, lb := newBridge(t)
	e := joined(t, b)

	mustCode(t, e.StartVideo(nil, nil), InvalidArgs)
	view := b.MountSurface()
	view.Unmount()
	mustCode(t, e.SubscribeVideo(view, "peer", nil), InvalidArgs)
	if _, ok := lb.LastCall("startVideo"); ok {
		t.Error("nil view reached native code")
	}
	if _, ok := lb.LastCall("subscribeVideo"); ok {
		t.Error("unmounted view reached native code")
	}
	if _, err := await(t, view.Call("startVideo", nil)); !errors.Is(err, ErrUnmounted) {
		t.Errorf("direct call on unmounted view = %v", err)
	}
}

func TestSurfaceUnknownMethod(t *testing.T) {
	b, _ := newBridge(t)
	createEngine(t, b)
	view := b.MountSurface()

	_, err := await(t, view.Call("open", nil))
	var be *Error
	if !errors.As(err, &be) || !strings.Contains(be.Message, core.CodeMethodNotFound) {
		t.Fatalf("err = %v, want method-not-found text", err)
	}
}

func TestSurfaceResultsStayWithTheirView(t *testing.T) {
	b, _ := newBridge(t)
	e := joined(t, b)
	v1, v2 := b.MountSurface(), b.MountSurface()
	if v1.Tag() == v2.Tag() {
		t.Fatal("views share a tag")
	}

	f1 := e.StartPreview(v1, nil)
	f2 := e.SubscribeScreen(v2, "peer")
	mustCode(t, f1, OK)
	mustCode(t, f2, OK)
	if v1.Pending() != 0 || v2.Pending() != 0 {
		t.Errorf("pending = %d, %d", v1.Pending(), v2.Pending())
	}
}

func TestWhiteboardOpenNeedsWhiteboardSurface(t *testing.T) {
	b, lb := newBridge(t)
	e := joined(t, b)
	wb, _ := await(t, e.Whiteboard())

	mustCode(t, wb.Open(b.MountSurface()), InvalidArgs)

	rec := &captured{}
	wb.AddListener("onStatusSynced", rec.listener())
	surface := b.MountWhiteboardSurface()
	mustCode(t, wb.Open(surface), OK)
	c, _ := lb.LastCall("open")
	if c.InstanceID != wb.ID() {
		t.Errorf("open routed to %q", c.InstanceID)
	}
	if _, ok := c.Args["whiteboardId"]; ok {
		t.Error("whiteboard id reached native code")
	}
	flush(t, b)
	if len(rec.calls()) != 1 {
		t.Errorf("onStatusSynced calls = %v", rec.calls())
	}
}

func TestAnnotationOnEitherSurface(t *testing.T) {
	b, lb := newBridge(t)
	e := joined(t, b)
	am, _ := await(t, e.AnnotationManager())
	ann, err := await(t, am.VideoAnnotation("peer", 0))
	if err != nil || ann == nil {
		t.Fatalf("VideoAnnotation = %v, %v", ann, err)
	}
	again, _ := await(t, am.VideoAnnotation("peer", 0))
	if again != ann {
		t.Error("annotation proxy not cached")
	}

	mustCode(t, ann.StartAnnotation(b.MountSurface()), OK)
	mustCode(t, ann.StartAnnotation(b.MountWhiteboardSurface()), OK)
	c, _ := lb.LastCall("startAnnotation")
	if c.Subsystem != core.Annotation || c.InstanceID != ann.ID() {
		t.Errorf("startAnnotation call = %+v", c)
	}
}

func TestAnnotationListenerFiltered(t *testing.T) {
	b, _ := newBridge(t)
	e := joined(t, b)
	am, _ := await(t, e.AnnotationManager())
	a1, _ := await(t, am.ShareAnnotation("u1"))
	a2, _ := await(t, am.ShareAnnotation("u2"))

	r1, r2 := &captured{}, &captured{}
	a1.AddListener("onSnapshotComplete", r1.listener())
	a2.AddListener("onSnapshotComplete", r2.listener())
	mustCode(t, a2.Snapshot("/tmp"), OK)
	flush(t, b)

	if len(r1.calls()) != 0 || len(r2.calls()) != 1 {
		t.Errorf("calls = %v / %v", r1.calls(), r2.calls())
	}
}
