package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelReloader re-reads the config file when it changes and applies
// log.level to a running logger. Every other setting is fixed at startup;
// changes to them are logged and ignored until restart.
type LevelReloader struct {
	loader  *Loader
	level   zap.AtomicLevel
	watcher *FileWatcher
	logger  *zap.Logger

	mu      sync.Mutex
	current *Config
}

// NewLevelReloader watches loader's config file. current is the config the
// process started with.
func NewLevelReloader(loader *Loader, current *Config, level zap.AtomicLevel, logger *zap.Logger, opts ...WatcherOption) (*LevelReloader, error) {
	if loader.configPath == "" {
		return nil, fmt.Errorf("level reloader needs a config file")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := NewFileWatcher([]string{loader.configPath}, append([]WatcherOption{WithWatcherLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	r := &LevelReloader{
		loader:  loader,
		level:   level,
		watcher: w,
		logger:  logger.With(zap.String("component", "config_reload")),
		current: current,
	}
	w.OnChange(func(e FileEvent) {
		if e.Op == FileOpRemove {
			return
		}
		if err := r.Reload(); err != nil {
			r.logger.Warn("config reload failed", zap.Error(err))
		}
	})
	return r, nil
}

func (r *LevelReloader) Start(ctx context.Context) error { return r.watcher.Start(ctx) }

func (r *LevelReloader) Stop() { r.watcher.Stop() }

// Reload loads the file now and applies the log level.
func (r *LevelReloader) Reload() error {
	next, err := r.loader.Load()
	if err != nil {
		return err
	}
	lvl, err := ParseLogLevel(next.Log.Level)
	if err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.current
	r.current = next
	r.mu.Unlock()

	if old := r.level.Level(); old != lvl {
		r.level.SetLevel(lvl)
		r.logger.Info("log level changed", zap.Stringer("from", old), zap.Stringer("to", lvl))
	}
	if prev != nil && restartRequired(prev, next) {
		r.logger.Warn("config file changed settings that only apply after restart")
	}
	return nil
}

// ParseLogLevel accepts debug, info, warn and error. Empty means info.
func ParseLogLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

func restartRequired(a, b *Config) bool {
	ac, bc := *a, *b
	ac.Log.Level, bc.Log.Level = "", ""
	return !reflect.DeepEqual(ac, bc)
}
