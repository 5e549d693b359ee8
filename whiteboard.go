package rtcbridge

import (
	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/promise"
)

// Whiteboard is the proxy of one native whiteboard instance. Its listeners
// only receive events carrying its whiteboard id.
type Whiteboard struct {
	proxy
}

func newWhiteboard(b *Bridge, id string) *Whiteboard {
	return &Whiteboard{proxy: newProxy(b, core.Whiteboard, id)}
}

// ID returns the whiteboard id.
func (w *Whiteboard) ID() string {
	return w.id
}

func (w *Whiteboard) destroy() {
	w.release()
}

// Open renders the whiteboard into a whiteboard surface.
func (w *Whiteboard) Open(view *SurfaceView) *Future[ResultCode] {
	if view != nil && view.Kind() != core.WhiteboardSurfaceView {
		return promise.Resolved(w.b.loop, InvalidArgs)
	}
	return w.surface(view, "open", nil)
}

func (w *Whiteboard) Close() *Future[ResultCode] { return w.code("close", nil) }
func (w *Whiteboard) Leave() *Future[ResultCode] { return w.code("leave", nil) }
func (w *Whiteboard) Stop() *Future[ResultCode]  { return w.code("stop", nil) }

func (w *Whiteboard) GetCurrentWhiteboardID() *Future[string] {
	return promise.Map(w.call("getCurrentWhiteboardId", nil), stringResult)
}

func (w *Whiteboard) SetRoleType(t WBRoleType) *Future[ResultCode] {
	return w.code("setRoleType", Args{"type": int(t)})
}

func (w *Whiteboard) SetToolType(t WBToolType) *Future[ResultCode] {
	return w.code("setToolType", Args{"type": int(t)})
}

func (w *Whiteboard) GetToolType() *Future[WBToolType] {
	return promise.Map(w.call("getToolType", nil), func(v any) (WBToolType, error) {
		n, err := numberResult(v)
		return WBToolType(n), err
	})
}

func (w *Whiteboard) SetLineWidth(width float64) *Future[ResultCode] {
	return w.code("setLineWidth", Args{"width": width})
}

func (w *Whiteboard) SetFillType(t WBFillType) *Future[ResultCode] {
	return w.code("setFillType", Args{"type": int(t)})
}

func (w *Whiteboard) SetFillColor(c WBColor) *Future[ResultCode] {
	return w.code("setFillColor", Args{"color": c.args()})
}

func (w *Whiteboard) SetForegroundColor(c WBColor) *Future[ResultCode] {
	return w.code("setForegroundColor", Args{"color": c.args()})
}

func (w *Whiteboard) SetBackgroundColor(c WBColor) *Future[ResultCode] {
	return w.code("setBackgroundColor", Args{"color": c.args()})
}

func (w *Whiteboard) SetFontStyle(s WBFontStyle) *Future[ResultCode] {
	return w.code("setFontStyle", Args{"style": int(s)})
}

func (w *Whiteboard) SetFontSize(size int) *Future[ResultCode] {
	return w.code("setFontSize", Args{"size": size})
}

func (w *Whiteboard) AddStamp(s WBStamp) *Future[ResultCode] {
	return w.code("addStamp", Args{"stamp": s.args()})
}

func (w *Whiteboard) SetStamp(stampID string) *Future[ResultCode] {
	return w.code("setStamp", Args{"stampId": stampID})
}

func (w *Whiteboard) SetBackgroundImage(imageURL string) *Future[ResultCode] {
	return w.code("setBackgroundImage", Args{"imageUrl": imageURL})
}

func (w *Whiteboard) GetCurrentPageNumber() *Future[int] {
	return promise.Map(w.call("getCurrentPageNumber", nil), intResult)
}

func (w *Whiteboard) GetTotalNumberOfPages() *Future[int] {
	return promise.Map(w.call("getTotalNumberOfPages", nil), intResult)
}

func (w *Whiteboard) AddPage(autoSwitch bool) *Future[ResultCode] {
	return w.code("addPage", Args{"autoSwitch": autoSwitch})
}

func (w *Whiteboard) InsertPage(pageNo int, autoSwitch bool) *Future[ResultCode] {
	return w.code("insertPage", Args{"pageNo": pageNo, "autoSwitch": autoSwitch})
}

func (w *Whiteboard) RemovePage(pageNo int, switchNext bool) *Future[ResultCode] {
	return w.code("removePage", Args{"pageNo": pageNo, "switchNext": switchNext})
}

func (w *Whiteboard) GotoPage(pageNo int) *Future[ResultCode] {
	return w.code("gotoPage", Args{"pageNo": pageNo})
}

func (w *Whiteboard) NextPage() *Future[ResultCode] { return w.code("nextPage", nil) }
func (w *Whiteboard) PrevPage() *Future[ResultCode] { return w.code("prevPage", nil) }
func (w *Whiteboard) Undo() *Future[ResultCode]     { return w.code("undo", nil) }
func (w *Whiteboard) Redo() *Future[ResultCode]     { return w.code("redo", nil) }

// ClearContents clears the current page, or every page when curPage is
// false. clearType selects what is removed.
func (w *Whiteboard) ClearContents(curPage bool, clearType int) *Future[ResultCode] {
	return w.code("clearContents", Args{"curPage": curPage, "type": clearType})
}

func (w *Whiteboard) ClearUserContents(userID string, curPage bool, clearType int) *Future[ResultCode] {
	return w.code("clearUserContents", Args{"userId": userID, "curPage": curPage, "type": clearType})
}

func (w *Whiteboard) Snapshot(mode int, outputDir string) *Future[ResultCode] {
	return w.code("snapshot", Args{"mode": mode, "outputDir": outputDir})
}

func (w *Whiteboard) StartShareVision() *Future[ResultCode]  { return w.code("startShareVision", nil) }
func (w *Whiteboard) StopShareVision() *Future[ResultCode]   { return w.code("stopShareVision", nil) }
func (w *Whiteboard) StartFollowVision() *Future[ResultCode] { return w.code("startFollowVision", nil) }
func (w *Whiteboard) StopFollowVision() *Future[ResultCode]  { return w.code("stopFollowVision", nil) }

// SendMessage sends message to one user of the whiteboard. The text crosses
// the bridge as bytes.
func (w *Whiteboard) SendMessage(message, userID string) *Future[ResultCode] {
	return w.code("sendMessage", Args{"message": message, "userId": userID})
}

// BroadcastMessage sends message to every user of the whiteboard.
func (w *Whiteboard) BroadcastMessage(message string) *Future[ResultCode] {
	return w.code("broadcastMessage", Args{"message": message})
}

// SetOption applies one whiteboard option. An invalid variant or payload
// resolves InvalidArgs without a native call.
func (w *Whiteboard) SetOption(o WBOption) *Future[ResultCode] {
	args, ok := wbOptionArgs(o)
	if !ok {
		return promise.Resolved(w.b.loop, InvalidArgs)
	}
	return w.code("setOption", args)
}

func intResult(v any) (int, error) {
	n, err := numberResult(v)
	return int(n), err
}
