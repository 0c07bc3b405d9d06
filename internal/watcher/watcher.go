// Package watcher monitors the inbox directory and hands finished files
// to the ingestion pipeline. Editors and downloads often write a file in
// several bursts, so events are debounced per path before ingesting.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches one inbox directory and invokes a callback for each
// settled file. Files already present at start are picked up too.
type Watcher struct {
	dir        string
	extensions []string
	onFile     func(path string)
	debounce   time.Duration

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the per-file settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over dir. extensions filters which files are
// picked up (empty = all); onFile is called once per settled file.
func New(dir string, extensions []string, onFile func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		dir:         dir,
		extensions:  extensions,
		onFile:      onFile,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Files already sitting in the inbox are
// scheduled immediately so a backlog accumulated while the process was
// down is not lost. Runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	w.logger.Debug("inbox watcher starting",
		zap.String("dir", w.dir),
		zap.Strings("extensions", w.extensions))
	w.scanExisting()
	go w.run(ctx)
	return nil
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox scan failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if w.matchExtension(path) {
			w.schedule(path)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0 {
		w.cancelDebounce(ev.Name)
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return
	}
	if !w.matchExtension(ev.Name) {
		return
	}
	w.logger.Debug("inbox event",
		zap.String("op", ev.Op.String()),
		zap.String("path", ev.Name))
	w.schedule(ev.Name)
}

// schedule resets the file's debounce timer; the callback fires only
// after the file has been quiet for the full debounce window.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		if w.onFile != nil {
			w.onFile(path)
		}
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Stop shuts the watcher down and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, timer := range w.debounceMap {
			timer.Stop()
			delete(w.debounceMap, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}
