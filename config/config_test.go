package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/mirror/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`version: "1.0"`))
	require.NoError(t, err)

	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, TransportSSE, cfg.Channel.Transport)
	assert.Equal(t, DefaultSSEPath, cfg.Channel.Path)
	assert.Equal(t, "yaml", cfg.State.Backend)
	assert.Equal(t, "", cfg.Plan.TargetEnvironment)
	assert.Equal(t, int64(30), int64(cfg.Server.TimeoutDuration().Seconds()))
}

func TestLoadFromBytesWebSocketDefaultPath(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("channel:\n  transport: websocket\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWSPath, cfg.Channel.Path)
}

func TestSocketSuppressesDefaultURL(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("server:\n  socket: /tmp/mirror.sock\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.URL)
	assert.Equal(t, "/tmp/mirror.sock", cfg.Server.Socket)
}

func TestExtensions(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.0"
plan:
  target_environment: dev

lint:
  rules: [no-select-star]
  max_warnings: 5
`))
	require.NoError(t, err)
	require.Contains(t, cfg.Extensions, "lint")

	type LintConfig struct {
		Rules       []string `yaml:"rules"`
		MaxWarnings int      `yaml:"max_warnings"`
	}
	var lint LintConfig
	require.NoError(t, cfg.UnmarshalExtension("lint", &lint))
	assert.Equal(t, []string{"no-select-star"}, lint.Rules)
	assert.Equal(t, 5, lint.MaxWarnings)

	var missing LintConfig
	require.NoError(t, cfg.UnmarshalExtension("absent", &missing))
	assert.Zero(t, missing)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MIRROR_TEST_URL", "http://example.test:9000")

	cfg, err := LoadFromBytes([]byte(`
server:
  url: ${MIRROR_TEST_URL}
plan:
  target_environment: ${MIRROR_TEST_UNSET:-staging}
`))
	require.NoError(t, err)
	assert.Equal(t, "http://example.test:9000", cfg.Server.URL)
	assert.Equal(t, "staging", cfg.Plan.TargetEnvironment)
}

func TestSchemaRejectsUnknownAndInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown transport", "channel:\n  transport: grpc\n"},
		{"unknown server key", "server:\n  host: localhost\n"},
		{"wrong type", "workspace:\n  ignore: node_modules\n"},
		{"unknown state backend", "state:\n  backend: redis\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation), "got %v", err)
		})
	}
}

func TestSemanticValidation(t *testing.T) {
	_, err := LoadFromBytes([]byte("server:\n  url: localhost:8000\n"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigValidation, errors.GetCode(err))

	_, err = LoadFromBytes([]byte("server:\n  timeout: soon\n"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigValidation, errors.GetCode(err))
}

func TestMalformedYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("server: [unterminated"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.toml")
	writeFile(t, path, `
version = "1.0"

[server]
url = "http://toml.test:8000"

[plan]
target_environment = "dev"
skip_tests = true

[workspace]
ignore = ["*.tmp", "target/**"]

[lint]
max_warnings = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://toml.test:8000", cfg.Server.URL)
	assert.Equal(t, "dev", cfg.Plan.TargetEnvironment)
	assert.True(t, cfg.Plan.Options().SkipTests)
	assert.Equal(t, []string{"*.tmp", "target/**"}, cfg.Workspace.Ignore)

	var lint struct {
		MaxWarnings int `yaml:"max_warnings"`
	}
	require.NoError(t, cfg.UnmarshalExtension("lint", &lint))
	assert.Equal(t, 3, lint.MaxWarnings)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "mirror.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".mirror.yml"), "version: \"1.0\"\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	path, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".mirror.yml"), path)
}

func TestLoadFromLayers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MIRROR_HOME", home)

	writeFile(t, filepath.Join(home, "config", "mirror.yml"), `
server:
  url: http://global.test:8000
  timeout: 10s
plan:
  target_environment: prod
lint:
  strict: true
  level: 1
`)

	project := t.TempDir()
	writeFile(t, filepath.Join(project, "mirror.yml"), `
plan:
  target_environment: dev
lint:
  level: 2
`)
	writeFile(t, filepath.Join(project, "mirror.override.yml"), `
channel:
  transport: websocket
`)

	cfg, err := LoadFromWithLogger(project, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "http://global.test:8000", cfg.Server.URL)
	assert.Equal(t, "10s", cfg.Server.Timeout)
	assert.Equal(t, "dev", cfg.Plan.TargetEnvironment)
	assert.Equal(t, TransportWebSocket, cfg.Channel.Transport)
	assert.Equal(t, DefaultWSPath, cfg.Channel.Path)
	assert.Equal(t, map[string]interface{}{"strict": true, "level": 2}, cfg.Extensions["lint"])
	assert.Equal(t, []string{
		filepath.Join(home, "config", "mirror.yml"),
		filepath.Join(project, "mirror.yml"),
		filepath.Join(project, "mirror.override.yml"),
	}, cfg.Sources)
}

func TestLoadFromWithoutAnyFile(t *testing.T) {
	t.Setenv("MIRROR_HOME", t.TempDir())

	cfg, err := LoadFromWithLogger(t.TempDir(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Empty(t, cfg.Sources)
}

func TestLoadFromInvalidProject(t *testing.T) {
	t.Setenv("MIRROR_HOME", t.TempDir())
	project := t.TempDir()
	writeFile(t, filepath.Join(project, "mirror.yml"), "state:\n  backend: redis\n")

	_, err := LoadFromWithLogger(project, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation))
}
