//go:build v8

// Package v8engine hosts bridge scripts on V8 through tommie/v8go.
package v8engine

import (
	"errors"
	"fmt"
	"reflect"

	logging "github.com/ipfs/go-log/v2"
	v8 "github.com/tommie/v8go"

	"github.com/cryguy/rtcbridge/internal/core"
)

var log = logging.Logger("rtcbridge/v8engine")

const origin = "rtcbridge.js"

// Runtime is a core.JSRuntime over one isolate and one context.
type Runtime struct {
	iso       *v8.Isolate
	ctx       *v8.Context
	typeError *v8.Function
}

var _ core.JSRuntime = (*Runtime)(nil)

// New creates an isolate and a context. memoryLimitMB <= 0 keeps V8's
// default heap limits.
func New(memoryLimitMB int) (*Runtime, error) {
	var iso *v8.Isolate
	if memoryLimitMB > 0 {
		heap := uint64(memoryLimitMB) << 20
		iso = v8.NewIsolate(v8.WithResourceConstraints(heap/2, heap))
	} else {
		iso = v8.NewIsolate()
	}
	r := &Runtime{iso: iso, ctx: v8.NewContext(iso)}

	ctor, err := r.ctx.RunScript(`(function (m) { return new TypeError(m); })`, origin)
	if err == nil {
		r.typeError, err = ctor.AsFunction()
	}
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("v8engine: %w", scriptError(err))
	}
	log.Debugf("v8engine: isolate ready, heap limit %d MB", memoryLimitMB)
	return r, nil
}

// Close disposes the context and the isolate.
func (r *Runtime) Close() {
	r.ctx.Close()
	r.iso.Dispose()
}

func (r *Runtime) run(js string) (*v8.Value, error) {
	v, err := r.ctx.RunScript(js, origin)
	if err != nil {
		return nil, scriptError(err)
	}
	return v, nil
}

// Eval evaluates js and discards the result.
func (r *Runtime) Eval(js string) error {
	_, err := r.run(js)
	return err
}

func (r *Runtime) EvalString(js string) (string, error) {
	v, err := r.run(js)
	if err != nil || v == nil {
		return "", err
	}
	return v.String(), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// RegisterFunc installs fn as the global function name. Arguments and
// results may be string, bool, int, int64 or float64. A trailing error
// result throws a TypeError when non-nil. Missing arguments throw as well.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	fv := reflect.ValueOf(fn)
	if fn == nil || fv.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc %s: expected function, got %T", name, fn)
	}
	ft := fv.Type()
	if ft.NumOut() > 2 || (ft.NumOut() == 2 && ft.Out(1) != errorType) {
		return fmt.Errorf("RegisterFunc %s: results must be (T), (error) or (T, error)", name)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < ft.NumIn() {
			return r.throw(fmt.Sprintf("%s requires %d argument(s), got %d", name, ft.NumIn(), len(args)))
		}
		in := make([]reflect.Value, ft.NumIn())
		for i := range in {
			in[i] = fromJS(args[i], ft.In(i))
		}
		out := fv.Call(in)
		if n := len(out); n > 0 && ft.Out(n-1) == errorType {
			if !out[n-1].IsNil() {
				return r.throw(fmt.Sprintf("%s: %v", name, out[n-1].Interface()))
			}
			out = out[:n-1]
		}
		if len(out) == 0 {
			return nil
		}
		return r.toJS(out[0])
	})
	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

// RunMicrotasks pumps the V8 microtask queue.
func (r *Runtime) RunMicrotasks() {
	r.ctx.PerformMicrotaskCheckpoint()
}

func (r *Runtime) throw(msg string) *v8.Value {
	m, _ := v8.NewValue(r.iso, msg)
	e, err := r.typeError.Call(v8.Undefined(r.iso), m)
	if err != nil {
		return r.iso.ThrowException(m)
	}
	return r.iso.ThrowException(e)
}

func (r *Runtime) toJS(v reflect.Value) *v8.Value {
	var (
		out *v8.Value
		err error
	)
	switch v.Kind() {
	case reflect.String:
		out, err = v8.NewValue(r.iso, v.String())
	case reflect.Bool:
		out, err = v8.NewValue(r.iso, v.Bool())
	case reflect.Int, reflect.Int32, reflect.Int64:
		out, err = v8.NewValue(r.iso, float64(v.Int()))
	case reflect.Float32, reflect.Float64:
		out, err = v8.NewValue(r.iso, v.Float())
	default:
		log.Warnf("v8engine: unsupported result kind %s", v.Kind())
		return nil
	}
	if err != nil {
		log.Warnf("v8engine: converting result: %v", err)
		return nil
	}
	return out
}

func fromJS(v *v8.Value, t reflect.Type) reflect.Value {
	var out reflect.Value
	switch t.Kind() {
	case reflect.String:
		out = reflect.ValueOf(v.String())
	case reflect.Bool:
		out = reflect.ValueOf(v.Boolean())
	case reflect.Int:
		out = reflect.ValueOf(int(v.Integer()))
	case reflect.Int64:
		out = reflect.ValueOf(v.Integer())
	case reflect.Float64:
		out = reflect.ValueOf(v.Number())
	default:
		return reflect.Zero(t)
	}
	return out.Convert(t)
}

// scriptError keeps the JS stack of a thrown error in the Go error text.
func scriptError(err error) error {
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) && jsErr.StackTrace != "" {
		return errors.New(jsErr.StackTrace)
	}
	return err
}
