package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileOp is the kind of change a FileWatcher saw.
type FileOp int

const (
	FileOpCreate FileOp = iota
	FileOpWrite
	FileOpRemove
)

func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent describes one debounced change.
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileWatcher reports changes to a set of files after they have been quiet
// for the debounce delay. It watches the parent directories so editors that
// save by rename and files created after Start are both seen.
type FileWatcher struct {
	mu        sync.Mutex
	paths     []string
	watched   map[string]struct{}
	callbacks []func(FileEvent)
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}

	debounceDelay time.Duration
	logger        *zap.Logger
}

type WatcherOption func(*FileWatcher)

func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.debounceDelay = d }
}

func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) { w.logger = logger }
}

// NewFileWatcher watches paths. Missing files are allowed and reported as
// created when they appear; their directories must exist by Start.
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		watched:       make(map[string]struct{}),
		debounceDelay: 100 * time.Millisecond,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "config_watcher"))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		if _, err := os.Stat(abs); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("stat %s: %w", abs, err)
			}
			w.logger.Warn("watched file does not exist yet", zap.String("path", abs))
		}
		if _, dup := w.watched[abs]; dup {
			continue
		}
		w.watched[abs] = struct{}{}
		w.paths = append(w.paths, abs)
	}
	return w, nil
}

// OnChange registers a callback. Callbacks run on the watcher goroutine.
func (w *FileWatcher) OnChange(cb func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching until Stop or ctx is done.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dirs := make(map[string]struct{})
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true
	go w.loop(ctx, fsw)

	w.logger.Info("config watcher started", zap.Strings("paths", w.paths))
	return nil
}

// Stop ends watching and waits for the loop to exit. Pending events are dropped.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("config watcher stopped")
}

func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *FileWatcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

func (w *FileWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer fsw.Close()

	pending := make(map[string]FileEvent)
	var quiet <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			e, ok := w.translate(ev)
			if !ok {
				continue
			}
			// A file created and then written in one burst is still new.
			if prev, seen := pending[e.Path]; seen && prev.Op == FileOpCreate && e.Op == FileOpWrite {
				e.Op = FileOpCreate
			}
			pending[e.Path] = e
			quiet = time.After(w.debounceDelay)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case <-quiet:
			quiet = nil
			w.dispatch(pending)
			pending = make(map[string]FileEvent)
		}
	}
}

// translate maps an fsnotify event on a watched file. Chmod and events for
// other files in the same directory are dropped.
func (w *FileWatcher) translate(ev fsnotify.Event) (FileEvent, bool) {
	path := filepath.Clean(ev.Name)
	if _, ok := w.watched[path]; !ok {
		return FileEvent{}, false
	}
	e := FileEvent{Path: path, Timestamp: time.Now()}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		e.Op = FileOpRemove
	case ev.Has(fsnotify.Create):
		e.Op = FileOpCreate
	case ev.Has(fsnotify.Write):
		e.Op = FileOpWrite
	default:
		return FileEvent{}, false
	}
	return e, true
}

func (w *FileWatcher) dispatch(pending map[string]FileEvent) {
	w.mu.Lock()
	callbacks := append(([]func(FileEvent))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, e := range pending {
		w.logger.Debug("config file changed", zap.String("path", e.Path), zap.Stringer("op", e.Op))
		for _, cb := range callbacks {
			cb(e)
		}
	}
}
