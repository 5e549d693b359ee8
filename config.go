package rtcbridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cryguy/rtcbridge/internal/core"
)

// EnvPrefix prefixes environment overrides, e.g. RTCBRIDGE_TRACE_DSN.
const EnvPrefix = "RTCBRIDGE"

type fileConfig struct {
	QueueSize           int           `mapstructure:"queue_size"`
	ScriptTimeout       time.Duration `mapstructure:"script_timeout"`
	ScriptMemoryLimitMB int           `mapstructure:"script_memory_limit_mb"`
	TraceDSN            string        `mapstructure:"trace_dsn"`
	RemoteAddr          string        `mapstructure:"remote_addr"`
	RemoteMaxConns      int           `mapstructure:"remote_max_conns"`
	LogLevel            string        `mapstructure:"log_level"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"queue-size":   "queue_size",
	"timeout":      "script_timeout",
	"memory-limit": "script_memory_limit_mb",
	"trace":        "trace_dsn",
	"addr":         "remote_addr",
	"max-conns":    "remote_max_conns",
	"log-level":    "log_level",
}

// LoadConfig reads configuration from the file at path (YAML, TOML or JSON
// by extension; an empty path skips the file), then RTCBRIDGE_* environment
// variables, then any flags that were set. Later sources win. Unset values
// get their defaults.
func LoadConfig(path string, flags ...*pflag.FlagSet) (Config, error) {
	v := viper.New()
	d := core.Config{}.WithDefaults()
	v.SetDefault("queue_size", d.QueueSize)
	v.SetDefault("script_timeout", d.ScriptTimeout)
	v.SetDefault("script_memory_limit_mb", d.ScriptMemoryLimitMB)
	v.SetDefault("trace_dsn", "")
	v.SetDefault("remote_addr", d.RemoteAddr)
	v.SetDefault("remote_max_conns", d.RemoteMaxConns)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, fs := range flags {
		if fs == nil {
			continue
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("config: binding --%s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return core.Config{
		QueueSize:           fc.QueueSize,
		ScriptTimeout:       fc.ScriptTimeout,
		ScriptMemoryLimitMB: fc.ScriptMemoryLimitMB,
		TraceDSN:            fc.TraceDSN,
		RemoteAddr:          fc.RemoteAddr,
		RemoteMaxConns:      fc.RemoteMaxConns,
		LogLevel:            fc.LogLevel,
	}.WithDefaults(), nil
}
