package core

import "fmt"

// Well-known failure codes produced by the bridge itself. Codes reported by
// the native engine are passed through verbatim.
const (
	CodeMethodNotFound = "MethodNotFound"
	CodeInvalidResult  = "InvalidResult"
	CodeNotInitialized = "NotInitialized"
	CodeDestroyed      = "Destroyed"
	CodeUnmounted      = "Unmounted"
)

// Error is the {code, message} pair carried by a rejected future.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	switch {
	case e.Code == "":
		return e.Message
	case e.Message == "":
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches errors by code so callers can use errors.Is against the
// sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

var (
	ErrMethodNotFound = &Error{Code: CodeMethodNotFound}
	ErrInvalidResult  = &Error{Code: CodeInvalidResult}
	ErrNotInitialized = &Error{Code: CodeNotInitialized}
	ErrDestroyed      = &Error{Code: CodeDestroyed}
	ErrUnmounted      = &Error{Code: CodeUnmounted}
)

// NewError builds an Error with a formatted message.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
