package rtcbridge

import "github.com/cryguy/rtcbridge/internal/promise"

// VideoStreamManager controls additional camera streams.
type VideoStreamManager struct {
	proxy
}

// CreateVideoStream opens a stream on deviceID and resolves its stream id.
// Negative ids are native failures.
func (m *VideoStreamManager) CreateVideoStream(deviceID string) *Future[int] {
	return promise.Map(m.call("createVideoStream", Args{"deviceId": deviceID}), intResult)
}

func (m *VideoStreamManager) DestroyVideoStream(streamID int) *Future[ResultCode] {
	return m.code("destroyVideoStream", Args{"streamId": streamID})
}

func (m *VideoStreamManager) SetCaptureDevice(streamID int, deviceID string) *Future[ResultCode] {
	return m.code("setCaptureDevice", Args{"streamId": streamID, "deviceId": deviceID})
}

func (m *VideoStreamManager) GetCaptureDevice(streamID int) *Future[string] {
	return promise.Map(m.call("getCaptureDevice", Args{"streamId": streamID}), stringResult)
}

// StartVideo starts streamID rendered into view.
func (m *VideoStreamManager) StartVideo(view *SurfaceView, streamID int, cfg *RenderConfig) *Future[ResultCode] {
	return m.surface(view, "startVideoWithStreamId", Args{"streamId": streamID, "config": renderArgs(cfg)})
}

func (m *VideoStreamManager) StopVideo(streamID int) *Future[ResultCode] {
	return m.code("stopVideo", Args{"streamId": streamID})
}

func (m *VideoStreamManager) MuteVideo(streamID int) *Future[ResultCode] {
	return m.code("muteVideo", Args{"streamId": streamID})
}

func (m *VideoStreamManager) UnmuteVideo(streamID int) *Future[ResultCode] {
	return m.code("unmuteVideo", Args{"streamId": streamID})
}

// SubscribeVideo renders streamID of userID into view.
func (m *VideoStreamManager) SubscribeVideo(view *SurfaceView, userID string, streamID int, cfg *RenderConfig) *Future[ResultCode] {
	return m.surface(view, "subscribeVideoWithStreamId", Args{
		"userId":   userID,
		"streamId": streamID,
		"config":   renderArgs(cfg),
	})
}

func (m *VideoStreamManager) UnsubscribeVideo(userID string, streamID int) *Future[ResultCode] {
	return m.code("unsubscribeVideo", Args{"userId": userID, "streamId": streamID})
}

func (m *VideoStreamManager) SnapshotVideo(userID string, streamID int, outputDir string) *Future[ResultCode] {
	return m.code("snapshotVideo", Args{"userId": userID, "streamId": streamID, "outputDir": outputDir})
}

// MessageService sends user and broadcast messages inside the channel.
type MessageService struct {
	proxy
}

// SendMessage sends message to userID. The text crosses the bridge as bytes.
func (m *MessageService) SendMessage(message, userID string) *Future[ResultCode] {
	return m.code("sendMessage", Args{"message": message, "userId": userID})
}

// BroadcastMessage sends message to every user, and back to the sender when
// sendBack is set.
func (m *MessageService) BroadcastMessage(message string, sendBack bool) *Future[ResultCode] {
	return m.code("broadcastMessage", Args{"message": message, "sendBack": sendBack})
}

// NetworkManager runs network quality tests.
type NetworkManager struct {
	proxy
}

func (m *NetworkManager) StartNetworkTest(token string) *Future[ResultCode] {
	return m.code("startNetworkTest", Args{"token": token})
}

func (m *NetworkManager) StopNetworkTest() *Future[ResultCode] {
	return m.code("stopNetworkTest", nil)
}
