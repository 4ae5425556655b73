// Package watch triggers sequential site rebuilds from filesystem events
// and an optional periodic schedule.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
)

// BuildFunc performs one full site build.
type BuildFunc func(context.Context) error

const defaultDebounce = 2 * time.Second

// Watcher reruns a build whenever the watched directories change. Rebuilds
// never overlap; triggers arriving while a build runs are coalesced into a
// single follow-up build.
type Watcher struct {
	dirs     []string
	build    BuildFunc
	debounce time.Duration
	every    time.Duration // periodic rebuild interval, 0 disables
	logger   *slog.Logger
}

// New creates a watcher over the given directory roots. A non-positive
// debounce falls back to the default, every of 0 disables the periodic
// rebuild.
func New(dirs []string, build BuildFunc, debounce, every time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dirs:     dirs,
		build:    build,
		debounce: debounce,
		every:    every,
		logger:   logger,
	}
}

// Run builds once, then blocks handling change events until ctx is
// canceled. Build failures are logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range w.dirs {
		if err := addDirsRecursive(watcher, dir, w.logger); err != nil {
			return err
		}
	}

	// One pending request at most; a buffered send coalesces triggers
	// that arrive while a build is running.
	rebuildReq := make(chan struct{}, 1)
	request := func() {
		select {
		case rebuildReq <- struct{}{}:
		default:
		}
	}
	trigger := w.newDebouncer(request)

	if w.every > 0 {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(w.every),
			gocron.NewTask(func() {
				w.logger.Info("scheduled rebuild", "interval", w.every)
				request()
			}),
			gocron.WithName("periodic-rebuild"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule periodic rebuild: %w", err)
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()
	}

	var buildWG sync.WaitGroup
	buildWG.Add(1)
	go func() {
		defer buildWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-rebuildReq:
				w.runBuild(ctx, watcher)
			}
		}
	}()

	// Initial build goes through the same serialized path.
	request()

	err = w.eventLoop(ctx, watcher, trigger)
	buildWG.Wait()
	return err
}

// eventLoop dispatches filesystem events until the context is canceled.
func (w *Watcher) eventLoop(ctx context.Context, watcher *fsnotify.Watcher, trigger func()) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping watch mode")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// handleEvent filters noise, registers newly created directories, and
// triggers a debounced rebuild.
func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, trigger func()) {
	if shouldIgnoreEvent(event.Name) {
		return
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = addDirsRecursive(watcher, event.Name, w.logger)
		}
	}
	w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
	trigger()
}

// newDebouncer returns a trigger that delays fn by the debounce interval,
// restarting the delay on every call.
func (w *Watcher) newDebouncer(fn func()) func() {
	var mu sync.Mutex
	var timer *time.Timer
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, fn)
	}
}

func (w *Watcher) runBuild(ctx context.Context, watcher *fsnotify.Watcher) {
	w.logger.Info("rebuilding")
	start := time.Now()
	if err := w.build(ctx); err != nil {
		w.logger.Warn("rebuild failed", "error", err)
	} else {
		w.logger.Info("rebuild finished", "elapsed", time.Since(start).Round(time.Millisecond))
	}

	// Pick up directories created since the last walk.
	for _, dir := range w.dirs {
		_ = addDirsRecursive(watcher, dir, w.logger)
	}
}

// addDirsRecursive registers a directory tree with the watcher. Roots that
// do not exist yet are skipped, a site may have no static directory.
func addDirsRecursive(watcher *fsnotify.Watcher, root string, logger *slog.Logger) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		logger.Debug("skipping missing watch root", "dir", root)
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				logger.Warn("watch add failed", "dir", path, "error", err)
			}
		}
		return nil
	})
}

// shouldIgnoreEvent reports whether a filesystem event concerns an editor
// artifact or hidden file that must not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") {
		return true
	}
	if strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
