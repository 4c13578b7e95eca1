package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/mirror/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	sinks     = make(map[string]*lumberjack.Logger)
	loggersMu sync.Mutex
	active    Config
)

// Configure installs the logging configuration used by subsequent NewLogger
// calls and rebuilds the loggers that were already handed out.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	active = cfg
	for component, entry := range loggers {
		configureLogger(entry.Logger, component)
	}
}

// SetLevel changes the level of every component logger. It is used when the
// configuration file is reloaded.
func SetLevel(levelStr string) error {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", levelStr, err)
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	active.Level = levelStr
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
	return nil
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	configureLogger(logger, component)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Close flushes and closes every file sink. Loggers keep working but stop
// writing to files until Configure is called again.
func Close() error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	var firstErr error
	for component, sink := range sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(sinks, component)
	}
	return firstErr
}

// LogFilePath returns the file a component writes to when the file sink is enabled.
func LogFilePath(component string) string {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	return logFilePath(component)
}

func logFilePath(component string) string {
	if active.File.Path != "" {
		return expandPath(active.File.Path)
	}
	return filepath.Join(paths.LogDir(), component+".log")
}

// configureLogger applies the active configuration. Callers hold loggersMu.
func configureLogger(logger *logrus.Logger, component string) {
	cfg := active

	// Configure Level
	levelStr := "info"
	if env := os.Getenv("MIRROR_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetReportCaller(os.Getenv("MIRROR_LOG_CALLER") == "true" || cfg.ReportCaller)

	// Configure Formatter
	switch cfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: cfg.Format})
	}

	var writers []io.Writer

	if cfg.File.Enabled {
		sink, ok := sinks[component]
		if ok {
			_ = sink.Close()
		}
		path := logFilePath(component)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		} else {
			sink = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    orDefault(cfg.File.MaxSizeMB, 15),
				MaxBackups: orDefault(cfg.File.MaxBackups, 3),
				MaxAge:     orDefault(cfg.File.MaxAgeDays, 28),
				Compress:   cfg.File.Compress,
			}
			sinks[component] = sink
			writers = append(writers, sink)
		}
	}

	shouldLogToStderr := false
	stderrMode := "auto"
	if cfg.Format.StructuredToStderr != "" {
		stderrMode = cfg.Format.StructuredToStderr
	}

	switch stderrMode {
	case "always":
		shouldLogToStderr = true
	case "never":
		shouldLogToStderr = false
	default:
		// auto: log to stderr when debugging or when stderr is not a terminal
		isDebug := os.Getenv("MIRROR_DEBUG") == "1" || logger.GetLevel() >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		shouldLogToStderr = isDebug || !isInteractive
	}

	if shouldLogToStderr {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
