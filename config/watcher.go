package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/mirror/logging"
	"github.com/sirupsen/logrus"
)

// Watcher reloads the configuration when one of its source files changes.
type Watcher struct {
	watcher    *fsnotify.Watcher
	startDir   string
	files      map[string]bool
	debounce   time.Duration
	lastChange time.Time
	mu         sync.Mutex
	logger     *logrus.Entry
	onReload   func(*Config)
}

// NewWatcher watches the directories holding cfg's source files and the
// global config directory. onReload receives every successfully reloaded
// config; the log level is re-applied before it is called.
func NewWatcher(startDir string, cfg *Config, debounce time.Duration, onReload func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	w := &Watcher{
		watcher:  watcher,
		startDir: startDir,
		files:    make(map[string]bool),
		debounce: debounce,
		logger:   logging.NewLogger("config-watcher"),
		onReload: onReload,
	}

	dirs := make(map[string]bool)
	for _, src := range cfg.Sources {
		w.files[filepath.Clean(src)] = true
		dirs[filepath.Dir(src)] = true
	}
	if len(dirs) == 0 {
		dirs[startDir] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			w.logger.WithError(err).Warnf("Failed to watch %s", dir)
			continue
		}
		w.logger.Debugf("Watching config directory: %s", dir)
	}
	return w, nil
}

// Start processes file events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 && w.relevant(event.Name) {
				w.handleChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// relevant reports whether name is a known source or a new config file.
func (w *Watcher) relevant(name string) bool {
	if w.files[filepath.Clean(name)] {
		return true
	}
	base := filepath.Base(name)
	for _, n := range configNames {
		if base == n {
			return true
		}
	}
	switch base {
	case "mirror.override.yml", "mirror.override.yaml", "mirror.override.toml":
		return true
	}
	return false
}

func (w *Watcher) handleChange(file string) {
	w.mu.Lock()
	elapsed := time.Since(w.lastChange)
	if elapsed < w.debounce {
		w.mu.Unlock()
		w.logger.Debugf("Debounced: %s (only %v since last change)", filepath.Base(file), elapsed)
		return
	}
	w.lastChange = time.Now()
	w.mu.Unlock()

	w.logger.Infof("Config changed: %s", filepath.Base(file))
	w.reload()
}

func (w *Watcher) reload() {
	cfg, err := LoadFromWithLogger(w.startDir, logrus.StandardLogger())
	if err != nil {
		w.logger.WithError(err).Warn("Keeping previous configuration")
		return
	}
	if cfg.Logging.Level != "" {
		if err := logging.SetLevel(cfg.Logging.Level); err != nil {
			w.logger.WithError(err).Warn("Invalid log level in reloaded config")
		}
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
