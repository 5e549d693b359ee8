package core

import "strconv"

// ResultCode is the closed enumeration of operation outcomes reported by the
// native engine. Zero is success; negative values partition into argument,
// state, privilege, network and channel failures.
type ResultCode int

const (
	OK             ResultCode = 0
	Failed         ResultCode = -1
	Fatal          ResultCode = -2
	InvalidArgs    ResultCode = -3
	InvalidState   ResultCode = -4
	InvalidIndex   ResultCode = -5
	AlreadyExist   ResultCode = -6
	NotExist       ResultCode = -7
	NotFound       ResultCode = -8
	NotSupported   ResultCode = -9
	NotImplemented ResultCode = -10
	NotInitialized ResultCode = -11
	LimitReached   ResultCode = -12
	NoPrivilege    ResultCode = -13
	InProgress     ResultCode = -14
	WrongThread    ResultCode = -15

	AuthFailed    ResultCode = -101
	UserRejected  ResultCode = -102
	UserExpelled  ResultCode = -103
	UserDuplicate ResultCode = -104

	ChannelClosed       ResultCode = -151
	ChannelFull         ResultCode = -152
	ChannelLocked       ResultCode = -153
	ChannelModeMismatch ResultCode = -154

	NetworkError ResultCode = -301
)

var resultCodeNames = map[ResultCode]string{
	OK:                  "OK",
	Failed:              "Failed",
	Fatal:               "Fatal",
	InvalidArgs:         "InvalidArgs",
	InvalidState:        "InvalidState",
	InvalidIndex:        "InvalidIndex",
	AlreadyExist:        "AlreadyExist",
	NotExist:            "NotExist",
	NotFound:            "NotFound",
	NotSupported:        "NotSupported",
	NotImplemented:      "NotImplemented",
	NotInitialized:      "NotInitialized",
	LimitReached:        "LimitReached",
	NoPrivilege:         "NoPrivilege",
	InProgress:          "InProgress",
	WrongThread:         "WrongThread",
	AuthFailed:          "AuthFailed",
	UserRejected:        "UserRejected",
	UserExpelled:        "UserExpelled",
	UserDuplicate:       "UserDuplicate",
	ChannelClosed:       "ChannelClosed",
	ChannelFull:         "ChannelFull",
	ChannelLocked:       "ChannelLocked",
	ChannelModeMismatch: "ChannelModeMismatch",
	NetworkError:        "NetworkError",
}

func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return "ResultCode(" + strconv.Itoa(int(c)) + ")"
}

// ResultCodes returns every member of the enumeration keyed by name.
func ResultCodes() map[string]int {
	out := make(map[string]int, len(resultCodeNames))
	for c, name := range resultCodeNames {
		out[name] = int(c)
	}
	return out
}

// Known reports whether c is a member of the enumeration.
func (c ResultCode) Known() bool {
	_, ok := resultCodeNames[c]
	return ok
}

// Coded is implemented by native result wrappers that carry a ResultCode.
// The result transport unwraps them to their integer code.
type Coded interface {
	ResultCode() ResultCode
}

// ResultCode makes ResultCode itself a coded result.
func (c ResultCode) ResultCode() ResultCode { return c }
