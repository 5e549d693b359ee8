package rtcbridge

import "fmt"

// OptionType tags the payload of Engine.SetOption.
type OptionType int

const (
	OptionFaceBeautify          OptionType = 0
	OptionUploadLogs            OptionType = 1
	OptionUploadAudioDump       OptionType = 2
	OptionAudioEqualizationMode OptionType = 3
	OptionAudioReverbMode       OptionType = 4
	OptionVideoFrameRate        OptionType = 5
	OptionAudioEarMonitoring    OptionType = 6
	OptionBuiltinTransform      OptionType = 7 // deprecated, never valid
	OptionUploadLogsAtFailure   OptionType = 8
	OptionCpuAdaption           OptionType = 9
	OptionAudioProfile          OptionType = 10
	OptionQuadTransform         OptionType = 11
	OptionScreenOptimization    OptionType = 17
)

// Option is one variant of the setOption payload. The concrete types below
// are the only implementations.
type Option interface {
	Type() OptionType
	encode() (value any, ok bool)
}

type FaceBeautify struct {
	Enable    bool
	Intensity float64 // [0, 1], default 0.5
}

type UploadLogs bool
type UploadAudioDump bool
type AudioEarMonitoring bool
type UploadLogsAtFailure bool
type CpuAdaption bool
type ScreenOptimization bool

type AudioEqualizationMode int

const (
	EqualizationNone AudioEqualizationMode = iota
	EqualizationBass
	EqualizationLoud
	EqualizationVocalMusic
	EqualizationStrong
	EqualizationPop
	EqualizationLive
	EqualizationDanceMusic
	EqualizationClub
	EqualizationSoft
)

type AudioReverbMode int

const (
	ReverbNone AudioReverbMode = iota
	ReverbVocalI
	ReverbVocalII
	ReverbBathroom
	ReverbSmallRoomBright
	ReverbSmallRoomDark
	ReverbMediumRoom
	ReverbLargeRoom
	ReverbChurchHall
	ReverbCathedral
)

type VideoFrameRate int

const (
	FrameRateLow      VideoFrameRate = 0
	FrameRateStandard VideoFrameRate = 1
)

// BuiltinTransform is kept so old callers compile; the engine rejects it.
type BuiltinTransform struct {
	Enable bool
	Reset  bool
}

type AudioSampleRate int

const (
	SampleRate16KHz AudioSampleRate = 16000
	SampleRate48KHz AudioSampleRate = 48000
)

type AudioChannel int

const (
	AudioMono   AudioChannel = 1
	AudioStereo AudioChannel = 2
)

type AudioProfileQuality int

const (
	ProfileQualityDefault AudioProfileQuality = 0
	ProfileQualityHigh    AudioProfileQuality = 1
)

type AudioProfile struct {
	SampleRate     AudioSampleRate
	Channel        AudioChannel
	ProfileQuality AudioProfileQuality
}

type QuadIndex int

const (
	QuadTopLeft     QuadIndex = 0
	QuadTopRight    QuadIndex = 1
	QuadBottomLeft  QuadIndex = 2
	QuadBottomRight QuadIndex = 3
)

type QuadTransform struct {
	Enable     bool
	Reset      bool
	Index      QuadIndex
	XDeltaAxis float64
	YDeltaAxis float64
	Mirror     bool
}

func (FaceBeautify) Type() OptionType          { return OptionFaceBeautify }
func (UploadLogs) Type() OptionType            { return OptionUploadLogs }
func (UploadAudioDump) Type() OptionType       { return OptionUploadAudioDump }
func (AudioEqualizationMode) Type() OptionType { return OptionAudioEqualizationMode }
func (AudioReverbMode) Type() OptionType       { return OptionAudioReverbMode }
func (VideoFrameRate) Type() OptionType        { return OptionVideoFrameRate }
func (AudioEarMonitoring) Type() OptionType    { return OptionAudioEarMonitoring }
func (BuiltinTransform) Type() OptionType      { return OptionBuiltinTransform }
func (UploadLogsAtFailure) Type() OptionType   { return OptionUploadLogsAtFailure }
func (CpuAdaption) Type() OptionType           { return OptionCpuAdaption }
func (AudioProfile) Type() OptionType          { return OptionAudioProfile }
func (QuadTransform) Type() OptionType         { return OptionQuadTransform }
func (ScreenOptimization) Type() OptionType    { return OptionScreenOptimization }

func (o FaceBeautify) encode() (any, bool) {
	if o.Intensity < 0 || o.Intensity > 1 {
		return nil, false
	}
	return map[string]any{"enable": o.Enable, "intensity": o.Intensity}, true
}

func (o UploadLogs) encode() (any, bool)          { return bool(o), true }
func (o UploadAudioDump) encode() (any, bool)     { return bool(o), true }
func (o AudioEarMonitoring) encode() (any, bool)  { return bool(o), true }
func (o UploadLogsAtFailure) encode() (any, bool) { return bool(o), true }
func (o CpuAdaption) encode() (any, bool)         { return bool(o), true }
func (o ScreenOptimization) encode() (any, bool)  { return bool(o), true }

func (o AudioEqualizationMode) encode() (any, bool) {
	return int(o), o >= EqualizationNone && o <= EqualizationSoft
}

func (o AudioReverbMode) encode() (any, bool) {
	return int(o), o >= ReverbNone && o <= ReverbCathedral
}

func (o VideoFrameRate) encode() (any, bool) {
	return int(o), o == FrameRateLow || o == FrameRateStandard
}

func (BuiltinTransform) encode() (any, bool) { return nil, false }

func (o AudioProfile) encode() (any, bool) {
	switch {
	case o.SampleRate != SampleRate16KHz && o.SampleRate != SampleRate48KHz:
		return nil, false
	case o.Channel != AudioMono && o.Channel != AudioStereo:
		return nil, false
	case o.ProfileQuality != ProfileQualityDefault && o.ProfileQuality != ProfileQualityHigh:
		return nil, false
	}
	return map[string]any{
		"sampleRate":     int(o.SampleRate),
		"channel":        int(o.Channel),
		"profileQuality": int(o.ProfileQuality),
	}, true
}

func (o QuadTransform) encode() (any, bool) {
	if o.Index < QuadTopLeft || o.Index > QuadBottomRight {
		return nil, false
	}
	return map[string]any{
		"enable":     o.Enable,
		"bReset":     o.Reset,
		"index":      int(o.Index),
		"xDeltaAxis": o.XDeltaAxis,
		"yDeltaAxis": o.YDeltaAxis,
		"bMirror":    o.Mirror,
	}, true
}

// optionArgs returns the setOption argument bag, or ok=false when the
// variant or its payload is invalid.
func optionArgs(o Option) (args map[string]any, ok bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.encode()
	if !ok {
		return nil, false
	}
	return map[string]any{"option": v, "type": int(o.Type())}, true
}

// ParseOption decodes a setOption argument bag, {"type": n, "option": v},
// into its typed variant. Payloads that do not fit the variant are errors.
func ParseOption(args map[string]any) (Option, error) {
	t, ok := number(args["type"])
	if !ok {
		return nil, fmt.Errorf("option type is %T, want number", args["type"])
	}
	v := args["option"]
	var o Option
	switch OptionType(t) {
	case OptionFaceBeautify:
		m, _ := v.(map[string]any)
		enable, _ := m["enable"].(bool)
		intensity, ok := number(m["intensity"])
		if !ok {
			intensity = 0.5
		}
		o = FaceBeautify{Enable: enable, Intensity: intensity}
	case OptionUploadLogs, OptionUploadAudioDump, OptionAudioEarMonitoring,
		OptionUploadLogsAtFailure, OptionCpuAdaption, OptionScreenOptimization:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("option %d payload is %T, want bool", int(t), v)
		}
		o = boolOption(OptionType(t), b)
	case OptionAudioEqualizationMode, OptionAudioReverbMode, OptionVideoFrameRate:
		n, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("option %d payload is %T, want number", int(t), v)
		}
		switch OptionType(t) {
		case OptionAudioEqualizationMode:
			o = AudioEqualizationMode(n)
		case OptionAudioReverbMode:
			o = AudioReverbMode(n)
		default:
			o = VideoFrameRate(n)
		}
	case OptionAudioProfile:
		m, _ := v.(map[string]any)
		rate, _ := number(m["sampleRate"])
		ch, _ := number(m["channel"])
		q, _ := number(m["profileQuality"])
		o = AudioProfile{
			SampleRate:     AudioSampleRate(rate),
			Channel:        AudioChannel(ch),
			ProfileQuality: AudioProfileQuality(q),
		}
	case OptionQuadTransform:
		m, _ := v.(map[string]any)
		idx, ok := number(m["index"])
		if !ok {
			return nil, fmt.Errorf("quad transform without index")
		}
		x, _ := number(m["xDeltaAxis"])
		y, _ := number(m["yDeltaAxis"])
		enable, _ := m["enable"].(bool)
		reset, _ := m["bReset"].(bool)
		mirror, _ := m["bMirror"].(bool)
		o = QuadTransform{Enable: enable, Reset: reset, Index: QuadIndex(idx),
			XDeltaAxis: x, YDeltaAxis: y, Mirror: mirror}
	default:
		return nil, fmt.Errorf("option type %d is not supported", int(t))
	}
	if _, ok := o.encode(); !ok {
		return nil, fmt.Errorf("option %d payload %v is out of range", int(t), v)
	}
	return o, nil
}

func boolOption(t OptionType, b bool) Option {
	switch t {
	case OptionUploadLogs:
		return UploadLogs(b)
	case OptionUploadAudioDump:
		return UploadAudioDump(b)
	case OptionAudioEarMonitoring:
		return AudioEarMonitoring(b)
	case OptionUploadLogsAtFailure:
		return UploadLogsAtFailure(b)
	case OptionCpuAdaption:
		return CpuAdaption(b)
	}
	return ScreenOptimization(b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// WBOptionType tags the payload of Whiteboard.SetOption.
type WBOptionType int

const (
	WBOptionFileCachePath    WBOptionType = 1
	WBOptionEnableUIResponse WBOptionType = 2
	WBOptionShowDraws        WBOptionType = 3
	WBOptionScaleMove        WBOptionType = 4
	WBOptionAutoSelected     WBOptionType = 5
)

// WBOption is one variant of the whiteboard setOption payload.
type WBOption interface {
	Type() WBOptionType
	value() any
}

type WBFileCachePath string
type WBEnableUIResponse bool
type WBShowDraws bool
type WBScaleMove bool
type WBAutoSelected bool

func (WBFileCachePath) Type() WBOptionType    { return WBOptionFileCachePath }
func (WBEnableUIResponse) Type() WBOptionType { return WBOptionEnableUIResponse }
func (WBShowDraws) Type() WBOptionType        { return WBOptionShowDraws }
func (WBScaleMove) Type() WBOptionType        { return WBOptionScaleMove }
func (WBAutoSelected) Type() WBOptionType     { return WBOptionAutoSelected }

func (o WBFileCachePath) value() any    { return string(o) }
func (o WBEnableUIResponse) value() any { return bool(o) }
func (o WBShowDraws) value() any        { return bool(o) }
func (o WBScaleMove) value() any        { return bool(o) }
func (o WBAutoSelected) value() any     { return bool(o) }

func wbOptionArgs(o WBOption) (args map[string]any, ok bool) {
	if o == nil {
		return nil, false
	}
	return map[string]any{"option": o.value(), "type": int(o.Type())}, true
}

// ParseWBOption decodes a whiteboard setOption argument bag into its typed
// variant. The file cache path takes a string, every other type a bool.
func ParseWBOption(args map[string]any) (WBOption, error) {
	t, ok := number(args["type"])
	if !ok {
		return nil, fmt.Errorf("whiteboard option type is %T, want number", args["type"])
	}
	v := args["option"]
	switch WBOptionType(t) {
	case WBOptionFileCachePath:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("whiteboard option %d payload is %T, want string", int(t), v)
		}
		return WBFileCachePath(s), nil
	case WBOptionEnableUIResponse, WBOptionShowDraws, WBOptionScaleMove, WBOptionAutoSelected:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("whiteboard option %d payload is %T, want bool", int(t), v)
		}
		switch WBOptionType(t) {
		case WBOptionEnableUIResponse:
			return WBEnableUIResponse(b), nil
		case WBOptionShowDraws:
			return WBShowDraws(b), nil
		case WBOptionScaleMove:
			return WBScaleMove(b), nil
		}
		return WBAutoSelected(b), nil
	}
	return nil, fmt.Errorf("whiteboard option type %d is not supported", int(t))
}

// checkOption validates a setOption argument bag of s and returns it in
// canonical form. Subsystems without typed options pass through unchanged.
func checkOption(s Subsystem, args Args) (Args, error) {
	var (
		out map[string]any
		err error
	)
	switch s {
	case SubsystemEngine:
		var o Option
		if o, err = ParseOption(args); err == nil {
			out, _ = optionArgs(o)
		}
	case SubsystemWhiteboard:
		var o WBOption
		if o, err = ParseWBOption(args); err == nil {
			out, _ = wbOptionArgs(o)
		}
	default:
		return args, nil
	}
	if err != nil {
		return nil, err
	}
	if key := s.InstanceKey(); key != "" {
		if id, ok := args[key]; ok {
			out[key] = id
		}
	}
	return out, nil
}
