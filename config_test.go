package rtcbridge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/cryguy/rtcbridge/internal/core"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != (Config{}).WithDefaults() {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtcbridge.yaml")
	yaml := "queue_size: 32\nscript_timeout: 3s\nremote_addr: \":9000\"\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RTCBRIDGE_REMOTE_MAX_CONNS", "4")
	t.Setenv("RTCBRIDGE_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("trace", "", "")
	fs.String("addr", "", "")
	if err := fs.Parse([]string{"--trace", filepath.Join(dir, "trace.db")}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, fs)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QueueSize != 32 || cfg.ScriptTimeout != 3*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.RemoteAddr != ":9000" {
		t.Errorf("unset flag overrode file: addr = %q", cfg.RemoteAddr)
	}
	if cfg.RemoteMaxConns != 4 || cfg.LogLevel != "warn" {
		t.Errorf("env values not applied: %+v", cfg)
	}
	if cfg.TraceDSN != filepath.Join(dir, "trace.db") {
		t.Errorf("flag not applied: trace = %q", cfg.TraceDSN)
	}
	if cfg.ScriptMemoryLimitMB != core.DefaultMemoryLimitMB {
		t.Errorf("memory limit = %d", cfg.ScriptMemoryLimitMB)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
