package core

import "time"

// Config holds runtime configuration for a bridge and the tools built on it.
type Config struct {
	AppContext          any           // opaque platform handle injected into engine create
	QueueSize           int           // initial capacity of the callback queue
	ScriptTimeout       time.Duration // max wall time of one hosted script run
	ScriptMemoryLimitMB int           // per-runtime memory limit for hosted scripts
	TraceDSN            string        // sqlite journal path; empty disables tracing
	RemoteAddr          string        // listen address of the websocket transport
	RemoteMaxConns      int           // concurrent websocket sessions
	LogLevel            string        // go-log level for rtcbridge/* loggers
}

const (
	DefaultQueueSize      = 256
	DefaultScriptTimeout  = 30 * time.Second
	DefaultMemoryLimitMB  = 128
	DefaultRemoteAddr     = ":8787"
	DefaultRemoteMaxConns = 64
	DefaultLogLevel       = "info"
)

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ScriptTimeout <= 0 {
		c.ScriptTimeout = DefaultScriptTimeout
	}
	if c.ScriptMemoryLimitMB <= 0 {
		c.ScriptMemoryLimitMB = DefaultMemoryLimitMB
	}
	if c.RemoteAddr == "" {
		c.RemoteAddr = DefaultRemoteAddr
	}
	if c.RemoteMaxConns <= 0 {
		c.RemoteMaxConns = DefaultRemoteMaxConns
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c
}
