package core

import "strconv"

// JSRuntime is the script engine behind a script host, QuickJS by default
// or V8 with the v8 build tag. It is not safe for concurrent use: the host
// only touches it from the bridge event loop.
type JSRuntime interface {
	// Eval runs js in global scope and drops the completion value.
	Eval(js string) error

	// EvalString runs js and returns its completion value as text.
	EvalString(js string) (string, error)

	// RegisterFunc exposes fn as a global function. A func returning
	// (T, error) throws a TypeError in JS when the error is non-nil.
	RegisterFunc(name string, fn any) error

	// RunMicrotasks drains pending promise jobs.
	RunMicrotasks()

	Close()
}

// JsEscape quotes s as a JavaScript string literal.
func JsEscape(s string) string {
	return strconv.Quote(s)
}
