package rtcbridge

import (
	"sync"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/promise"
)

// Engine is the proxy of the native RTC engine. There is at most one live
// Engine per Bridge; obtain it with Bridge.Create.
type Engine struct {
	proxy

	mu          sync.Mutex
	whiteboards map[string]*Whiteboard
	videoStream *VideoStreamManager
	annotations *AnnotationManager
	messages    *MessageService
	network     *NetworkManager
}

func newEngine(b *Bridge) *Engine {
	return &Engine{
		proxy:       newProxy(b, core.Engine, ""),
		whiteboards: make(map[string]*Whiteboard),
	}
}

// UpdateConfig changes the engine configuration. Only allowed before
// joining a channel.
func (e *Engine) UpdateConfig(cfg EngineConfig) *Future[ResultCode] {
	return e.code("updateConfig", Args{"config": cfg.args()})
}

// Destroy releases the engine. The singleton slot is cleared first, then
// every cached whiteboard and manager is destroyed and the engine's own
// listeners are released, before native destroy runs.
func (e *Engine) Destroy() *Future[ResultCode] {
	if !e.b.release(e) {
		return promise.Rejected[ResultCode](e.b.loop, ErrDestroyed)
	}

	e.mu.Lock()
	wbs := e.whiteboards
	e.whiteboards = make(map[string]*Whiteboard)
	vs, am, ms, nm := e.videoStream, e.annotations, e.messages, e.network
	e.videoStream, e.annotations, e.messages, e.network = nil, nil, nil, nil
	e.mu.Unlock()

	for _, wb := range wbs {
		wb.destroy()
	}
	if am != nil {
		am.destroy()
	}
	if vs != nil {
		vs.release()
	}
	if ms != nil {
		ms.release()
	}
	if nm != nil {
		nm.release()
	}
	e.listeners.RemoveAll("")

	f := promise.Map(e.b.invoke(core.Engine, "destroy", nil), promise.ResultCode)
	e.dead.Store(true)
	return f
}

// JoinChannel joins channelID as userID. A nil cfg uses
// DefaultChannelConfig.
func (e *Engine) JoinChannel(token, channelID, userID string, cfg *ChannelConfig) *Future[ResultCode] {
	c := DefaultChannelConfig()
	if cfg != nil {
		c = *cfg
	}
	return e.code("joinChannel", Args{
		"token":     token,
		"channelId": channelID,
		"userId":    userID,
		"config":    c.args(),
	})
}

func (e *Engine) LeaveChannel() *Future[ResultCode] { return e.code("leaveChannel", nil) }
func (e *Engine) StartAudio() *Future[ResultCode]   { return e.code("startAudio", nil) }
func (e *Engine) StopAudio() *Future[ResultCode]    { return e.code("stopAudio", nil) }
func (e *Engine) StopVideo() *Future[ResultCode]    { return e.code("stopVideo", nil) }
func (e *Engine) StopScreen() *Future[ResultCode]   { return e.code("stopScreen", nil) }
func (e *Engine) MuteAudio() *Future[ResultCode]    { return e.code("muteAudio", nil) }
func (e *Engine) UnmuteAudio() *Future[ResultCode]  { return e.code("unmuteAudio", nil) }
func (e *Engine) MuteVideo() *Future[ResultCode]    { return e.code("muteVideo", nil) }
func (e *Engine) UnmuteVideo() *Future[ResultCode]  { return e.code("unmuteVideo", nil) }
func (e *Engine) SwitchCamera() *Future[ResultCode] { return e.code("switchCamera", nil) }
func (e *Engine) StopPreview() *Future[ResultCode]  { return e.code("stopPreview", nil) }
func (e *Engine) StopAudioDump() *Future[ResultCode] {
	return e.code("stopAudioDump", nil)
}

// StartVideo starts local video rendered into view.
func (e *Engine) StartVideo(view *SurfaceView, cfg *RenderConfig) *Future[ResultCode] {
	return e.surface(view, "startVideo", Args{"config": renderArgs(cfg)})
}

// StartPreview starts a local camera preview in view.
func (e *Engine) StartPreview(view *SurfaceView, cfg *RenderConfig) *Future[ResultCode] {
	return e.surface(view, "startPreview", Args{"config": renderArgs(cfg)})
}

// SubscribeVideo renders userID's video into view.
func (e *Engine) SubscribeVideo(view *SurfaceView, userID string, cfg *RenderConfig) *Future[ResultCode] {
	return e.surface(view, "subscribeVideo", Args{"userId": userID, "config": renderArgs(cfg)})
}

// SubscribeScreen renders userID's shared screen into view.
func (e *Engine) SubscribeScreen(view *SurfaceView, userID string) *Future[ResultCode] {
	return e.surface(view, "subscribeScreen", Args{"userId": userID})
}

func (e *Engine) SubscribeAudio(userID string) *Future[ResultCode] {
	return e.code("subscribeAudio", Args{"userId": userID})
}

func (e *Engine) UnsubscribeAudio(userID string) *Future[ResultCode] {
	return e.code("unsubscribeAudio", Args{"userId": userID})
}

func (e *Engine) UnsubscribeVideo(userID string) *Future[ResultCode] {
	return e.code("unsubscribeVideo", Args{"userId": userID})
}

func (e *Engine) UnsubscribeScreen(userID string) *Future[ResultCode] {
	return e.code("unsubscribeScreen", Args{"userId": userID})
}

// StartScreen starts screen sharing. appGroupID is only meaningful on
// platforms that capture through an extension; pass "" elsewhere.
func (e *Engine) StartScreen(appGroupID string) *Future[ResultCode] {
	if appGroupID == "" {
		return e.code("startScreen", nil)
	}
	return e.code("startScreen", Args{"appGroupId": appGroupID})
}

func (e *Engine) UpdateScreenScaling(userID string, ratio float64) *Future[ResultCode] {
	return e.code("updateScreenScaling", Args{"userId": userID, "ratio": ratio})
}

func (e *Engine) SetMicrophoneMuteStatus(enable bool) *Future[ResultCode] {
	return e.code("setMicrophoneMuteStatus", Args{"enable": enable})
}

func (e *Engine) SetLoudspeakerStatus(enable bool) *Future[ResultCode] {
	return e.code("setLoudspeakerStatus", Args{"enable": enable})
}

func (e *Engine) IsEnabledLoudspeaker() *Future[bool] {
	return promise.Map(e.call("isEnabledLoudspeaker", nil), boolResult)
}

func (e *Engine) IsFrontCamera() *Future[bool] {
	return promise.Map(e.call("isFrontCamera", nil), boolResult)
}

func (e *Engine) GetCameraDeviceID(frontCamera bool) *Future[string] {
	return promise.Map(e.call("getCameraDeviceId", Args{"frontCamera": frontCamera}), stringResult)
}

// SetAudioDeviceVolume sets the volume of a device type, 0..255.
func (e *Engine) SetAudioDeviceVolume(volume, deviceType int) *Future[ResultCode] {
	return e.code("setAudioDeviceVolume", Args{"volume": volume, "type": deviceType})
}

func (e *Engine) GetAudioDeviceVolume(deviceType int) *Future[float64] {
	return promise.Map(e.call("getAudioDeviceVolume", Args{"type": deviceType}), numberResult)
}

func (e *Engine) GetRecordingLevel() *Future[float64] {
	return promise.Map(e.call("getRecordingLevel", nil), numberResult)
}

func (e *Engine) GetPlayoutLevel() *Future[float64] {
	return promise.Map(e.call("getPlayoutLevel", nil), numberResult)
}

// SnapshotVideo saves a snapshot of userID's video under outputDir.
func (e *Engine) SnapshotVideo(outputDir, userID string, mirror bool) *Future[ResultCode] {
	return e.code("snapshotVideo", Args{
		"outputDir": outputDir,
		"userId":    userID,
		"option":    map[string]any{"mirror": mirror},
	})
}

func (e *Engine) StartAudioDump(filePath string, maxFileSize int) *Future[ResultCode] {
	return e.code("startAudioDumpWithFilePath", Args{"filePath": filePath, "maxFileSize": maxFileSize})
}

func (e *Engine) SendFeedback(info map[string]any) *Future[ResultCode] {
	return e.code("sendFeedback", Args{"info": info})
}

// SetOption applies one engine option. An invalid variant or payload
// resolves InvalidArgs without a native call.
func (e *Engine) SetOption(o Option) *Future[ResultCode] {
	args, ok := optionArgs(o)
	if !ok {
		return promise.Resolved(e.b.loop, InvalidArgs)
	}
	return e.code("setOption", args)
}

// SetParameters passes a JSON parameter string to the engine.
func (e *Engine) SetParameters(param string) *Future[ResultCode] {
	return e.code("setParameters", Args{"param": param})
}

// SwitchWhiteboard changes the current whiteboard engine.
func (e *Engine) SwitchWhiteboard(whiteboardID string) *Future[ResultCode] {
	return e.code("switchWhiteboardEngine", Args{"whiteboardId": whiteboardID})
}

// Whiteboard returns the proxy of the current whiteboard engine. Proxies
// are cached by whiteboard id.
func (e *Engine) Whiteboard() *Future[*Whiteboard] {
	return promise.Map(e.call("whiteboardEngine", nil), func(v any) (*Whiteboard, error) {
		id, err := stringResult(v)
		if err != nil {
			return nil, err
		}
		return e.whiteboard(id), nil
	})
}

func (e *Engine) whiteboard(id string) *Whiteboard {
	e.mu.Lock()
	defer e.mu.Unlock()
	wb, ok := e.whiteboards[id]
	if !ok {
		wb = newWhiteboard(e.b, id)
		e.whiteboards[id] = wb
	}
	return wb
}

// VideoStreamManager returns the cached video stream manager, asking native
// code to create it on first use.
func (e *Engine) VideoStreamManager() *Future[*VideoStreamManager] {
	return manager(e, "videoStreamManager", &e.videoStream, func() *VideoStreamManager {
		return &VideoStreamManager{proxy: newProxy(e.b, core.VideoStreamManager, "")}
	})
}

// AnnotationManager returns the cached annotation manager.
func (e *Engine) AnnotationManager() *Future[*AnnotationManager] {
	return manager(e, "annotationManager", &e.annotations, func() *AnnotationManager {
		return newAnnotationManager(e.b)
	})
}

// MessageService returns the cached message service.
func (e *Engine) MessageService() *Future[*MessageService] {
	return manager(e, "messageService", &e.messages, func() *MessageService {
		return &MessageService{proxy: newProxy(e.b, core.MessageService, "")}
	})
}

// NetworkManager returns the cached network manager.
func (e *Engine) NetworkManager() *Future[*NetworkManager] {
	return manager(e, "networkManager", &e.network, func() *NetworkManager {
		return &NetworkManager{proxy: newProxy(e.b, core.NetworkManager, "")}
	})
}

// manager returns *slot, or calls the native accessor once and caches the
// proxy built by mk. A failed accessor leaves the slot empty.
func manager[T any](e *Engine, method string, slot **T, mk func() *T) *Future[*T] {
	e.mu.Lock()
	if m := *slot; m != nil {
		e.mu.Unlock()
		return promise.Resolved(e.b.loop, m)
	}
	e.mu.Unlock()

	return promise.Map(e.call(method, nil), func(any) (*T, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.dead.Load() {
			return nil, ErrDestroyed
		}
		if *slot == nil {
			*slot = mk()
		}
		return *slot, nil
	})
}
