//go:build !v8

// Package quickjs hosts bridge scripts on the pure-Go QuickJS engine.
package quickjs

import (
	"fmt"
	"reflect"
	"unsafe"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cryguy/rtcbridge/internal/core"
	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

var log = logging.Logger("rtcbridge/quickjs")

// Runtime implements core.JSRuntime for the QuickJS engine.
type Runtime struct {
	vm *quickjs.VM

	// cached from VM internals for JS_ExecutePendingJob
	crt uintptr
	tls *libc.TLS
}

var _ core.JSRuntime = (*Runtime)(nil)

// New creates a QuickJS VM. memoryLimitMB <= 0 leaves the heap unbounded.
func New(memoryLimitMB int) (*Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if memoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(memoryLimitMB) * 1024 * 1024)
	}
	r := &Runtime{vm: vm}
	if crt, tls, ok := extractRuntime(vm); ok {
		r.crt, r.tls = crt, tls
	} else {
		log.Warnf("quickjs: runtime internals unavailable, promise jobs will not run")
	}
	return r, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *Runtime) Eval(js string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *Runtime) EvalString(js string) (string, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// RegisterFunc registers a Go function as a global JavaScript function.
// A trailing error result is unwrapped: a non-nil error throws a TypeError,
// otherwise the function returns its first result, or undefined when the
// error is the only one. The QuickJS Go wrapper returns multi-value results
// as JS arrays and error values as strings, hence the shim. Bool results
// are refused because the wrapper cannot convert them.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}
	if t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		return fmt.Errorf("RegisterFunc %s: results must be (T), (error) or (T, error)", name)
	}
	for i := 0; i < t.NumOut(); i++ {
		if t.Out(i).Kind() == reflect.Bool {
			return fmt.Errorf("RegisterFunc %s: bool results are not supported", name)
		}
	}
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}

	var wrapJS string
	switch {
	case t.NumOut() == 2:
		wrapJS = `(function() {
		var raw = globalThis[%[1]q];
		globalThis[%[2]q] = function() {
			var r = raw.apply(this, arguments);
			if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %[2]s: " + r[1]);
			return r[0];
		};
		delete globalThis[%[1]q];
	})()`
	case t.NumOut() == 1 && t.Out(0) == errorType:
		wrapJS = `(function() {
		var raw = globalThis[%[1]q];
		globalThis[%[2]q] = function() {
			var e = raw.apply(this, arguments);
			if (e !== null && e !== undefined) throw new TypeError("calling %[2]s: " + e);
		};
		delete globalThis[%[1]q];
	})()`
	default:
		wrapJS = `globalThis[%[2]q] = globalThis[%[1]q]; delete globalThis[%[1]q];`
	}
	return r.Eval(fmt.Sprintf(wrapJS, rawName, name))
}

// RunMicrotasks runs every pending job (Promise reactions). The
// modernc.org/quickjs wrapper never calls JS_ExecutePendingJob itself, so
// .then callbacks would otherwise never fire.
func (r *Runtime) RunMicrotasks() {
	if r.tls == nil {
		return
	}
	for lib.XJS_ExecutePendingJob(r.tls, r.crt, 0) > 0 {
	}
}

// Close frees the VM.
func (r *Runtime) Close() {
	r.vm.Close()
}

// extractRuntime uses unsafe reflection to pull the unexported tls and
// cRuntime values out of a *quickjs.VM.
//
// VM struct layout (modernc.org/quickjs@v0.17.1):
//
//	type VM struct {
//	    cContext uintptr
//	    ...
//	    runtime  *runtime
//	}
//
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
func extractRuntime(vm *quickjs.VM) (cRuntime uintptr, tls *libc.TLS, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
		}
	}()
	vmVal := reflect.ValueOf(vm).Elem()

	rtField := vmVal.FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return 0, nil, false
	}
	rtPtr := unsafe.Pointer(rtField.Pointer())
	rtVal := reflect.NewAt(rtField.Type().Elem(), rtPtr).Elem()

	cRuntimeField := rtVal.FieldByName("cRuntime")
	if !cRuntimeField.IsValid() {
		return 0, nil, false
	}
	cRuntime = uintptr(cRuntimeField.Uint())

	tlsField := rtVal.FieldByName("tls")
	if !tlsField.IsValid() || tlsField.IsNil() {
		return 0, nil, false
	}
	tls = (*libc.TLS)(unsafe.Pointer(tlsField.Pointer()))
	return cRuntime, tls, true
}
