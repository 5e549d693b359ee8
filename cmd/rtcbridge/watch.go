package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// watchScript runs the script and reruns it whenever a .js file in its
// directory is created or written, until ctx is done.
func watchScript(ctx context.Context, script string, run func(context.Context) error) error {
	abs, err := filepath.Abs(script)
	if err != nil {
		return fmt.Errorf("resolving script path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	log.Infof("watching %s", filepath.Dir(abs))
	return watchLoop(ctx, watcher, run)
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, run func(context.Context) error) error {
	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- run(runCtx) }()

		running := true
		stop := func() {
			cancel()
			if running {
				<-done
			}
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				stop()
				return nil
			case err := <-done:
				running = false
				report(err)
			case event, ok := <-watcher.Events:
				if !ok {
					stop()
					return nil
				}
				if !strings.HasSuffix(event.Name, ".js") {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					log.Infof("%s changed, reloading", filepath.Base(event.Name))
					break wait
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					stop()
					return nil
				}
				log.Warnf("watcher error: %v", err)
			}
		}
		stop()
	}
}

func report(err error) {
	switch {
	case err == nil:
		log.Infof("script finished")
	case errors.Is(err, context.Canceled):
	default:
		log.Errorf("script failed: %v", err)
	}
}
