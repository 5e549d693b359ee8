//go:build !v8

package quickjs

import (
	"errors"
	"strings"
	"testing"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	r, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestEvalString(t *testing.T) {
	r := newRuntime(t)
	got, err := r.EvalString(`["a", "b"].join("-")`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a-b" {
		t.Errorf("got %q", got)
	}
	if err := r.Eval(`syntax error here`); err == nil {
		t.Error("expected syntax error")
	}
}

func TestRegisterFunc(t *testing.T) {
	r := newRuntime(t)
	if err := r.RegisterFunc("greet", func(name string) string { return "hi " + name }); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterFunc("check", func(n int) (int, error) {
		if n < 0 {
			return 0, errors.New("negative")
		}
		return n * 2, nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterFunc("notAFunc", 42); err == nil {
		t.Error("expected error for non-function")
	}

	got, err := r.EvalString(`greet("bob") + "|" + check(4)`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hi bob|8" {
		t.Errorf("got %q", got)
	}

	got, err = r.EvalString(`(function () {
		try { check(-1); return "no throw"; }
		catch (e) { return (e instanceof TypeError) + ":" + e.message; }
	})()`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "true:") || !strings.Contains(got, "negative") {
		t.Errorf("got %q", got)
	}
	got, _ = r.EvalString(`typeof __raw_greet`)
	if got != "undefined" {
		t.Errorf("raw binding leaked: %q", got)
	}
}

func TestRegisterFuncResultShapes(t *testing.T) {
	r := newRuntime(t)
	if err := r.RegisterFunc("flag", func() bool { return true }); err == nil {
		t.Error("bool result accepted")
	}
	if err := r.RegisterFunc("flagErr", func() (bool, error) { return true, nil }); err == nil {
		t.Error("(bool, error) result accepted")
	}
	if err := r.RegisterFunc("pair", func() (int, int) { return 1, 2 }); err == nil {
		t.Error("(int, int) result accepted")
	}

	var seen []string
	if err := r.RegisterFunc("record", func(s string) error {
		if s == "" {
			return errors.New("empty name")
		}
		seen = append(seen, s)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterFunc("label", func(n int, upper bool) (string, error) {
		if n < 0 {
			return "", errors.New("negative")
		}
		if upper {
			return "N" + strings.Repeat("!", n), nil
		}
		return "n" + strings.Repeat(".", n), nil
	}); err != nil {
		t.Fatal(err)
	}

	got, err := r.EvalString(`String(record("a")) + "|" + label(2, true) + "|" + label(1, false)`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "undefined|N!!|n." {
		t.Errorf("got %q", got)
	}
	got, err = r.EvalString(`(function () {
		var out = [];
		[function () { record(""); }, function () { label(-1, false); }].forEach(function (f) {
			try { f(); out.push("no throw"); }
			catch (e) { out.push((e instanceof TypeError) + ":" + e.message); }
		});
		return out.join("|");
	})()`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "true:calling record: empty name") || !strings.Contains(got, "true:calling label: negative") {
		t.Errorf("got %q", got)
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Errorf("seen = %v", seen)
	}
}

func TestRunMicrotasks(t *testing.T) {
	r := newRuntime(t)
	if err := r.Eval(`globalThis.seen = "pending"; Promise.resolve("done").then(function (v) { seen = v; });`); err != nil {
		t.Fatal(err)
	}
	r.RunMicrotasks()
	got, err := r.EvalString(`seen`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "done" {
		t.Errorf("seen = %q after RunMicrotasks", got)
	}
}
