package core

// Args is the keyed argument bag of one invocation. A nil Args means the
// call has no argument at all, which is distinct from an empty mapping.
type Args = map[string]any

// Completion is the implicit last parameter of every native call. Native
// code must call exactly one arm exactly once; it may do so from any
// goroutine.
type Completion interface {
	Succeed(value any)
	Fail(code, message string)
}

// EventSink receives events raised by native code. instanceID is empty for
// single-instance subsystems. Implementations hop onto the callback queue
// before any listener runs.
type EventSink interface {
	Emit(s Subsystem, event, instanceID string, data ...any)
}

// View is the opaque identity of a mounted render surface. It is injected
// under the "view" key of surface-scoped invocations.
type View struct {
	Tag  int
	Kind Subsystem
}

// ViewKey is the reserved argument key carrying a surface identity.
const ViewKey = "view"

// ContextKey is the reserved argument key carrying the application context
// handle on engine create.
const ContextKey = "context"
