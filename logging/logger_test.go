package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Same component returns the cached entry
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "test")
	assert.Contains(t, output, "Test message")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{DisableTimestamp: true},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "batch applied",
				Data: logrus.Fields{
					"component": "reconcile",
					"changes":   3,
				},
			},
			want: []string{"[INFO]", "reconcile", "batch applied", "changes=3"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "dropped payload",
				Data: logrus.Fields{
					"component": "channel",
				},
			},
			want:    []string{"[WARN]", "dropped payload"},
			notWant: []string{"channel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &TextFormatter{Config: tt.config}
			out, err := f.Format(tt.entry)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, string(out), w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, string(out), nw)
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	f := &TextFormatter{Config: FormatConfig{DisableTimestamp: true, DisableComponent: true}}
	out, err := f.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"zeta": 1, "alpha": 2},
	})
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(out), "alpha="), strings.Index(string(out), "zeta="))
}

func TestConfigureFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.log")

	Configure(Config{
		Level: "debug",
		File:  FileSinkConfig{Enabled: true, Path: path},
		Format: FormatConfig{
			StructuredToStderr: "never",
		},
	})
	t.Cleanup(func() {
		_ = Close()
		Configure(Config{})
	})

	logger := NewLogger("file-sink-test")
	logger.Debug("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Equal(t, path, LogFilePath("file-sink-test"))
}

func TestSetLevel(t *testing.T) {
	logger := NewLogger("level-test")
	require.NoError(t, SetLevel("error"))
	assert.Equal(t, logrus.ErrorLevel, logger.Logger.GetLevel())

	assert.Error(t, SetLevel("loud"))
	require.NoError(t, SetLevel("info"))
}
