package core

// Subsystem names one bridged capability group. Every subsystem owns a
// native target, a namespace prefix for its events and a listener registry.
type Subsystem string

const (
	Engine                Subsystem = "engine"
	Whiteboard            Subsystem = "whiteboard"
	Annotation            Subsystem = "annotation"
	AnnotationManager     Subsystem = "annotationManager"
	VideoStreamManager    Subsystem = "videoStreamManager"
	MessageService        Subsystem = "messageService"
	NetworkManager        Subsystem = "networkManager"
	SurfaceView           Subsystem = "surfaceView"
	WhiteboardSurfaceView Subsystem = "whiteboardSurfaceView"
)

// SurfacePrefix is shared by both render-surface result emitters. They are
// separate channels, so the common prefix never collides.
const SurfacePrefix = "video.pano.rtc."

// ResultReturnedEvent is the single event raised by render-surface emitters.
const ResultReturnedEvent = "onResultReturned"

var prefixes = map[Subsystem]string{
	Engine:                "video.pano.rtc.engine.",
	Whiteboard:            "video.pano.rtc.whiteboard.",
	Annotation:            "video.pano.rtc.annotation.",
	AnnotationManager:     "video.pano.rtc.annotationmgr.",
	VideoStreamManager:    "video.pano.rtc.videostream.",
	MessageService:        "video.pano.rtc.message.",
	NetworkManager:        "video.pano.rtc.network.",
	SurfaceView:           SurfacePrefix,
	WhiteboardSurfaceView: SurfacePrefix,
}

// Subsystems lists every subsystem in initialization order.
func Subsystems() []Subsystem {
	return []Subsystem{
		Engine, Whiteboard, Annotation, AnnotationManager, VideoStreamManager,
		MessageService, NetworkManager, SurfaceView, WhiteboardSurfaceView,
	}
}

// ParseSubsystem returns the subsystem with the given name.
func ParseSubsystem(name string) (Subsystem, bool) {
	s := Subsystem(name)
	_, ok := prefixes[s]
	return s, ok
}

// Prefix returns the namespace string prepended to every event name the
// subsystem emits.
func (s Subsystem) Prefix() string {
	return prefixes[s]
}

// EventName returns the fully qualified event name for a bare event name.
func (s Subsystem) EventName(event string) string {
	return prefixes[s] + event
}

// InstanceKey returns the envelope and argument key carrying the instance id
// for multi-instance subsystems, or "" for singletons.
func (s Subsystem) InstanceKey() string {
	switch s {
	case Whiteboard:
		return "whiteboardId"
	case Annotation:
		return "annotationId"
	}
	return ""
}

// MultiInstance reports whether the subsystem has several live instances
// sharing one event channel.
func (s Subsystem) MultiInstance() bool {
	return s.InstanceKey() != ""
}

// Surface reports whether the subsystem is a render-surface result emitter.
func (s Subsystem) Surface() bool {
	return s == SurfaceView || s == WhiteboardSurfaceView
}

// Constants returns the metadata exported for the subsystem. Alternate
// transports need the prefix to compute full event names.
func (s Subsystem) Constants() map[string]any {
	return map[string]any{"prefix": s.Prefix()}
}
