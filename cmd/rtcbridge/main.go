// Command rtcbridge runs bridge scripts against the loopback engine, serves
// the bridge to remote clients and prints trace journals.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/pflag"

	"github.com/cryguy/rtcbridge"
	"github.com/cryguy/rtcbridge/internal/loopback"
	"github.com/cryguy/rtcbridge/internal/remote"
	"github.com/cryguy/rtcbridge/internal/scripthost"
	"github.com/cryguy/rtcbridge/internal/trace"
)

var log = logging.Logger("rtcbridge/cmd")

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "run":
		err = runCommand(ctx, args)
	case "serve":
		err = serveCommand(ctx, args)
	case "trace":
		err = traceCommand(args)
	case "version":
		fmt.Printf("rtcbridge %s\n", appVersion)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(2)
	}
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  rtcbridge run [--watch] [--trace dsn] script.js   run a bridge script against the loopback engine
  rtcbridge serve [--addr :8787]                    serve the bridge over WebSocket
  rtcbridge trace --trace dsn [--session id]        print a trace journal
  rtcbridge version

Every command accepts --config file and --log-level level. Settings can
also be given as RTCBRIDGE_* environment variables.`)
}

// commonFlags registers the flags shared by every command and returns the
// config file flag.
func commonFlags(fs *pflag.FlagSet) *string {
	path := fs.String("config", "", "configuration file (yaml, toml or json)")
	fs.String("log-level", "", "log level for rtcbridge loggers")
	fs.String("trace", "", "sqlite trace journal path")
	return path
}

func loadConfig(fs *pflag.FlagSet, path string) (rtcbridge.Config, error) {
	cfg, err := rtcbridge.LoadConfig(path, fs)
	if err != nil {
		return cfg, err
	}
	if err := logging.SetLogLevelRegex("rtcbridge.*", cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}

// newBridge creates a bridge over a fresh loopback engine, recording to the
// configured trace journal if there is one. The returned cleanup closes
// both.
func newBridge(cfg rtcbridge.Config) (*rtcbridge.Bridge, func(), error) {
	var opts []rtcbridge.BridgeOption
	var journal *trace.Journal
	if cfg.TraceDSN != "" {
		j, err := trace.Open(cfg.TraceDSN)
		if err != nil {
			return nil, nil, err
		}
		journal = j
		opts = append(opts, rtcbridge.WithRecorder(j))
		log.Infof("tracing session %s to %s", j.Session(), cfg.TraceDSN)
	}
	b := rtcbridge.New(cfg, loopback.New(), opts...)
	return b, func() {
		b.Close()
		if journal != nil {
			_ = journal.Close()
		}
	}, nil
}

func runCommand(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	cfgPath := commonFlags(fs)
	watch := fs.Bool("watch", false, "rerun the script when it changes")
	fs.Int("queue-size", 0, "callback queue capacity")
	fs.Duration("timeout", 0, "maximum run time of the script")
	fs.Int("memory-limit", 0, "script memory limit in MB")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run requires exactly one script path")
	}
	cfg, err := loadConfig(fs, *cfgPath)
	if err != nil {
		return err
	}
	script := fs.Arg(0)
	run := func(ctx context.Context) error { return runScript(ctx, cfg, script) }
	if *watch {
		return watchScript(ctx, script, run)
	}
	return run(ctx)
}

// runScript bundles the script at path and runs it to completion on a new
// bridge.
func runScript(ctx context.Context, cfg rtcbridge.Config, path string) error {
	src, err := rtcbridge.BundleScript(path)
	if err != nil {
		return err
	}
	b, cleanup, err := newBridge(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	h, err := scripthost.New(b)
	if err != nil {
		return err
	}
	defer h.Close()
	return h.Run(ctx, src)
}

func serveCommand(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	cfgPath := commonFlags(fs)
	fs.String("addr", "", "listen address")
	fs.Int("max-conns", 0, "maximum concurrent sessions")
	fs.Int("queue-size", 0, "callback queue capacity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(fs, *cfgPath)
	if err != nil {
		return err
	}
	b, cleanup, err := newBridge(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return remote.New(b).ListenAndServe(ctx)
}

func traceCommand(args []string) error {
	fs := pflag.NewFlagSet("trace", pflag.ContinueOnError)
	cfgPath := commonFlags(fs)
	session := fs.String("session", "", "only print this session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(fs, *cfgPath)
	if err != nil {
		return err
	}
	if cfg.TraceDSN == "" {
		return fmt.Errorf("trace requires --trace")
	}
	if _, err := os.Stat(cfg.TraceDSN); err != nil {
		return fmt.Errorf("trace journal: %w", err)
	}
	j, err := trace.Open(cfg.TraceDSN)
	if err != nil {
		return err
	}
	defer j.Close()
	return printJournal(os.Stdout, j, *session)
}
