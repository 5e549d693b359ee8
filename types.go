package rtcbridge

import (
	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/events"
)

// ResultCode is the outcome of an engine operation. Zero is success.
type ResultCode = core.ResultCode

const (
	OK                  = core.OK
	Failed              = core.Failed
	Fatal               = core.Fatal
	InvalidArgs         = core.InvalidArgs
	InvalidState        = core.InvalidState
	InvalidIndex        = core.InvalidIndex
	AlreadyExist        = core.AlreadyExist
	NotExist            = core.NotExist
	NotFound            = core.NotFound
	NotSupported        = core.NotSupported
	NotImplemented      = core.NotImplemented
	NotInitialized      = core.NotInitialized
	LimitReached        = core.LimitReached
	NoPrivilege         = core.NoPrivilege
	InProgress          = core.InProgress
	WrongThread         = core.WrongThread
	AuthFailed          = core.AuthFailed
	UserRejected        = core.UserRejected
	UserExpelled        = core.UserExpelled
	UserDuplicate       = core.UserDuplicate
	ChannelClosed       = core.ChannelClosed
	ChannelFull         = core.ChannelFull
	ChannelLocked       = core.ChannelLocked
	ChannelModeMismatch = core.ChannelModeMismatch
	NetworkError        = core.NetworkError
)

// Error is the {code, message} pair carried by a rejected call.
type Error = core.Error

// Sentinels for errors.Is.
var (
	ErrMethodNotFound = core.ErrMethodNotFound
	ErrInvalidResult  = core.ErrInvalidResult
	ErrNotInitialized = core.ErrNotInitialized
	ErrDestroyed      = core.ErrDestroyed
	ErrUnmounted      = core.ErrUnmounted
)

// Args is a keyed argument bag for CallMethod.
type Args = core.Args

// Listener is an event callback. Remove it with the same pointer it was
// added with.
type Listener = events.Listener

// NewListener wraps fn as a Listener.
func NewListener(fn func(args ...any)) *Listener {
	return events.NewListener(fn)
}

// Subscription is returned by AddListener.
type Subscription struct {
	remove func()
}

// Remove is equivalent to RemoveListener with the original event and listener.
func (s Subscription) Remove() {
	if s.remove != nil {
		s.remove()
	}
}

type ChannelMode int

const (
	ChannelModeOneOnOne ChannelMode = 0
	ChannelModeMeeting  ChannelMode = 1
)

type ChannelService int

const (
	ServiceMedia      ChannelService = 0x01
	ServiceWhiteboard ChannelService = 0x02
)

type VideoProfileType int

const (
	VideoProfileLowest   VideoProfileType = 0
	VideoProfileLow      VideoProfileType = 1
	VideoProfileStandard VideoProfileType = 2
	VideoProfileHD720P   VideoProfileType = 3
	VideoProfileHD1080P  VideoProfileType = 4
	VideoProfileNone     VideoProfileType = 5
)

type VideoScalingMode int

const (
	ScalingFit      VideoScalingMode = 0
	ScalingFullFill VideoScalingMode = 1
	ScalingCropFill VideoScalingMode = 2
)

// EngineConfig configures native engine creation.
type EngineConfig struct {
	AppID                    string
	RtcServer                string
	VideoCodecHwAcceleration bool
	AudioScenario            int
}

func (c EngineConfig) args() map[string]any {
	server := c.RtcServer
	if server == "" {
		server = "api.pano.video"
	}
	return map[string]any{
		"appId":                    c.AppID,
		"rtcServer":                server,
		"videoCodecHwAcceleration": c.VideoCodecHwAcceleration,
		"audioScenario":            c.AudioScenario,
	}
}

// ParseEngineConfig reads the create configuration as scripts and remote
// clients send it. Missing fields keep their zero values.
func ParseEngineConfig(m map[string]any) EngineConfig {
	var c EngineConfig
	c.AppID, _ = m["appId"].(string)
	c.RtcServer, _ = m["rtcServer"].(string)
	c.VideoCodecHwAcceleration, _ = m["videoCodecHwAcceleration"].(bool)
	if n, ok := number(m["audioScenario"]); ok {
		c.AudioScenario = int(n)
	}
	return c
}

// ChannelConfig configures joinChannel.
type ChannelConfig struct {
	Mode              ChannelMode
	ServiceFlags      []ChannelService
	SubscribeAudioAll bool
	UserName          string
}

// DefaultChannelConfig mirrors the engine's own defaults.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Mode:              ChannelModeOneOnOne,
		ServiceFlags:      []ChannelService{ServiceMedia, ServiceWhiteboard},
		SubscribeAudioAll: true,
	}
}

func (c ChannelConfig) args() map[string]any {
	flags := make([]any, len(c.ServiceFlags))
	for i, f := range c.ServiceFlags {
		flags[i] = int(f)
	}
	m := map[string]any{
		"mode":              int(c.Mode),
		"serviceFlags":      flags,
		"subscribeAudioAll": c.SubscribeAudioAll,
	}
	if c.UserName != "" {
		m["userName"] = c.UserName
	}
	return m
}

// RenderConfig configures a video render surface.
type RenderConfig struct {
	ProfileType  VideoProfileType
	SourceMirror bool
	ScalingMode  VideoScalingMode
	Mirror       bool
}

// DefaultRenderConfig returns a standard-profile, fit-scaled config.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{ProfileType: VideoProfileStandard, ScalingMode: ScalingFit}
}

func (c RenderConfig) args() map[string]any {
	return map[string]any{
		"profileType":  int(c.ProfileType),
		"sourceMirror": c.SourceMirror,
		"scalingMode":  int(c.ScalingMode),
		"mirror":       c.Mirror,
	}
}

func renderArgs(c *RenderConfig) map[string]any {
	if c == nil {
		return DefaultRenderConfig().args()
	}
	return c.args()
}

type WBRoleType int

const (
	WBRoleAdmin    WBRoleType = 0
	WBRoleAttendee WBRoleType = 1
	WBRoleViewer   WBRoleType = 2
)

type WBToolType int

const (
	WBToolNone    WBToolType = 0
	WBToolSelect  WBToolType = 1
	WBToolPath    WBToolType = 2
	WBToolLine    WBToolType = 3
	WBToolRect    WBToolType = 4
	WBToolEllipse WBToolType = 5
	WBToolImage   WBToolType = 6
	WBToolText    WBToolType = 7
	WBToolEraser  WBToolType = 8
	WBToolBrush   WBToolType = 9
)

type WBFillType int

const (
	WBFillNone  WBFillType = 0
	WBFillColor WBFillType = 1
)

type WBFontStyle int

const (
	WBFontNormal     WBFontStyle = 0
	WBFontBold       WBFontStyle = 1
	WBFontItalic     WBFontStyle = 2
	WBFontBoldItalic WBFontStyle = 3
)

// WBColor is an RGBA color with components in [0, 1].
type WBColor struct {
	Red, Green, Blue, Alpha float64
}

func (c WBColor) args() map[string]any {
	return map[string]any{"red": c.Red, "green": c.Green, "blue": c.Blue, "alpha": c.Alpha}
}

// WBStamp is a custom whiteboard stamp.
type WBStamp struct {
	StampID   string
	Path      string
	Resizable bool
}

func (s WBStamp) args() map[string]any {
	return map[string]any{"stampId": s.StampID, "path": s.Path, "resizable": s.Resizable}
}

type PropertyActionType int

const (
	PropertyUpdate PropertyActionType = 0
	PropertyDelete PropertyActionType = 1
)

// PropertyAction is one record of an onPropertyChanged notification.
type PropertyAction struct {
	Type      PropertyActionType
	PropName  string
	PropValue string
}
