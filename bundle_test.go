package rtcbridge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNeedsBundling(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"plain script", "RtcEngineKit.create({appId: 'a'});", false},
		{"import statement", `import { RtcEngineKit } from 'rtcbridge';`, true},
		{"import no space", `import{RtcEngineKit} from 'rtcbridge';`, true},
		{"export", `export const x = 1;`, true},
		{"comment with import word", "// this is important\nconsole.log(1);", false},
		{"require call", `const kit = require('rtcbridge');`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsBundling(tt.source); got != tt.want {
				t.Errorf("needsBundling(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestBundleScriptNoImports(t *testing.T) {
	dir := t.TempDir()
	src := `RtcEngineKit.create({ appId: 'app' });`
	path := filepath.Join(dir, "main.js")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := BundleScript(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != src {
		t.Errorf("expected source unchanged, got %q", got)
	}
}

func TestBundleScriptResolvesProxyLayer(t *testing.T) {
	dir := t.TempDir()
	util := `export function room(n) { return "room-" + n; }`
	if err := os.WriteFile(filepath.Join(dir, "util.js"), []byte(util), 0644); err != nil {
		t.Fatal(err)
	}
	main := `import { RtcEngineKit } from "rtcbridge";
import { room } from "./util.js";
RtcEngineKit.create({ appId: "app" }).then((e) => e.joinChannel("t", room(1), "me"));
`
	path := filepath.Join(dir, "main.js")
	if err := os.WriteFile(path, []byte(main), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := BundleScript(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "import ") {
		t.Errorf("bundle still has import statements:\n%s", got)
	}
	if !strings.Contains(got, "globalThis.RtcEngineKit") {
		t.Errorf("bundle does not read the proxy layer global:\n%s", got)
	}
	if !strings.Contains(got, `"room-"`) {
		t.Errorf("relative import not inlined:\n%s", got)
	}
}

func TestBundleScriptError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.js")
	if err := os.WriteFile(path, []byte(`import { x } from "./missing.js";`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := BundleScript(path); err == nil {
		t.Fatal("expected error for unresolved import")
	}
	if _, err := BundleScript(filepath.Join(dir, "nope.js")); err == nil {
		t.Fatal("expected error for missing script")
	}
}
