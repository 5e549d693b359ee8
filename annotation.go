package rtcbridge

import (
	"sync"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/promise"
)

// AnnotationManager hands out annotation proxies, cached by annotation id.
type AnnotationManager struct {
	proxy

	mu          sync.Mutex
	annotations map[string]*Annotation
}

func newAnnotationManager(b *Bridge) *AnnotationManager {
	return &AnnotationManager{
		proxy:       newProxy(b, core.AnnotationManager, ""),
		annotations: make(map[string]*Annotation),
	}
}

// VideoAnnotation returns the annotation over userID's video stream. The
// future resolves nil when native code has no annotation for it.
func (m *AnnotationManager) VideoAnnotation(userID string, streamID int) *Future[*Annotation] {
	return promise.Map(m.call("getVideoAnnotation", Args{"userId": userID, "streamId": streamID}), m.annotation)
}

// ShareAnnotation returns the annotation over userID's shared screen.
func (m *AnnotationManager) ShareAnnotation(userID string) *Future[*Annotation] {
	return promise.Map(m.call("getShareAnnotation", Args{"userId": userID}), m.annotation)
}

func (m *AnnotationManager) annotation(v any) (*Annotation, error) {
	id, ok := v.(string)
	if !ok {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.annotations[id]
	if !ok {
		a = &Annotation{proxy: newProxy(m.b, core.Annotation, id)}
		m.annotations[id] = a
	}
	return a, nil
}

func (m *AnnotationManager) destroy() {
	m.mu.Lock()
	anns := m.annotations
	m.annotations = make(map[string]*Annotation)
	m.mu.Unlock()
	for _, a := range anns {
		a.release()
	}
	m.release()
}

// Annotation is the proxy of one annotation layer. Its listeners only
// receive events carrying its annotation id.
type Annotation struct {
	proxy
}

// ID returns the annotation id.
func (a *Annotation) ID() string {
	return a.id
}

// StartAnnotation shows the annotation layer over a mounted surface.
func (a *Annotation) StartAnnotation(view *SurfaceView) *Future[ResultCode] {
	return a.surface(view, "startAnnotation", nil)
}

func (a *Annotation) StopAnnotation() *Future[ResultCode] { return a.code("stopAnnotation", nil) }

func (a *Annotation) SetVisible(visible bool) *Future[ResultCode] {
	return a.code("setVisible", Args{"visible": visible})
}

func (a *Annotation) SetRoleType(t WBRoleType) *Future[ResultCode] {
	return a.code("setRoleType", Args{"type": int(t)})
}

func (a *Annotation) SetToolType(t WBToolType) *Future[ResultCode] {
	return a.code("setToolType", Args{"type": int(t)})
}

func (a *Annotation) SetLineWidth(size float64) *Future[ResultCode] {
	return a.code("setLineWidth", Args{"size": size})
}

func (a *Annotation) SetColor(c WBColor) *Future[ResultCode] {
	return a.code("setColor", Args{"color": c.args()})
}

func (a *Annotation) SetFontStyle(s WBFontStyle) *Future[ResultCode] {
	return a.code("setFontStyle", Args{"style": int(s)})
}

func (a *Annotation) SetFontSize(size int) *Future[ResultCode] {
	return a.code("setFontSize", Args{"size": size})
}

func (a *Annotation) Undo() *Future[ResultCode]          { return a.code("undo", nil) }
func (a *Annotation) Redo() *Future[ResultCode]          { return a.code("redo", nil) }
func (a *Annotation) ClearContents() *Future[ResultCode] { return a.code("clearContents", nil) }

func (a *Annotation) ClearUserContents(userID string) *Future[ResultCode] {
	return a.code("clearUserContents", Args{"userId": userID})
}

func (a *Annotation) Snapshot(outputDir string) *Future[ResultCode] {
	return a.code("snapshot", Args{"outputDir": outputDir})
}
