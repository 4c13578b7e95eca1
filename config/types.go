package config

import (
	"fmt"
	"time"

	"github.com/grovetools/mirror/logging"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/mitchellh/mapstructure"
)

// Transport names accepted by channel.transport.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

const (
	DefaultServerURL = "http://localhost:8000"
	DefaultTimeout   = "30s"
	DefaultSSEPath   = "/api/events"
	DefaultWSPath    = "/ws"
)

// Config is the top-level mirror configuration.
type Config struct {
	Version   string          `yaml:"version,omitempty" toml:"version,omitempty" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Server    ServerConfig    `yaml:"server,omitempty" toml:"server,omitempty" jsonschema:"description=Workspace server connection"`
	Channel   ChannelConfig   `yaml:"channel,omitempty" toml:"channel,omitempty" jsonschema:"description=Push channel transport"`
	Plan      PlanConfig      `yaml:"plan,omitempty" toml:"plan,omitempty" jsonschema:"description=Plan run defaults"`
	Workspace WorkspaceConfig `yaml:"workspace,omitempty" toml:"workspace,omitempty" jsonschema:"description=Workspace tree options"`
	State     StateConfig     `yaml:"state,omitempty" toml:"state,omitempty" jsonschema:"description=Where tab state is persisted"`
	Logging   logging.Config  `yaml:"logging,omitempty" toml:"logging,omitempty" jsonschema:"description=Logging configuration"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty" toml:"telemetry,omitempty" jsonschema:"description=Error reporting"`

	// Extensions captures sections owned by other tools sharing the file.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`

	// Sources lists the files merged into this config, lowest precedence first.
	Sources []string `yaml:"-" toml:"-" json:"-" jsonschema:"-"`
}

// ServerConfig locates the workspace server.
type ServerConfig struct {
	URL     string `yaml:"url,omitempty" toml:"url,omitempty" jsonschema:"description=Base URL of the server"`
	Socket  string `yaml:"socket,omitempty" toml:"socket,omitempty" jsonschema:"description=Unix socket path; overrides the URL host when set"`
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty" jsonschema:"description=Request timeout as a Go duration (e.g. 30s)"`
}

// TimeoutDuration parses Timeout, falling back to DefaultTimeout.
func (s ServerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// ChannelConfig selects the push transport.
type ChannelConfig struct {
	Transport string `yaml:"transport,omitempty" toml:"transport,omitempty" jsonschema:"enum=sse,enum=websocket,description=Push transport"`
	Path      string `yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=Event stream path on the server"`
}

// PlanConfig holds the user's plan run preferences.
type PlanConfig struct {
	TargetEnvironment string `yaml:"target_environment,omitempty" toml:"target_environment,omitempty" jsonschema:"description=Environment to plan against; defaults to the server's default"`
	SkipTests         bool   `yaml:"skip_tests,omitempty" toml:"skip_tests,omitempty"`
	IncludeUnmodified bool   `yaml:"include_unmodified,omitempty" toml:"include_unmodified,omitempty"`
}

// Options returns the run switches sent with run-plan.
func (p PlanConfig) Options() models.PlanOptions {
	return models.PlanOptions{SkipTests: p.SkipTests, IncludeUnmodified: p.IncludeUnmodified}
}

// WorkspaceConfig configures the mirrored tree.
type WorkspaceConfig struct {
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" jsonschema:"description=Patterns excluded from the tree (.dockerignore syntax)"`
}

// StateConfig selects the tab state backend.
type StateConfig struct {
	Backend string `yaml:"backend,omitempty" toml:"backend,omitempty" jsonschema:"enum=yaml,enum=sqlite"`
	Path    string `yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=State file; defaults under the XDG state directory"`
}

// TelemetryConfig enables Sentry reporting when DSN is set.
type TelemetryConfig struct {
	DSN         string `yaml:"dsn,omitempty" toml:"dsn,omitempty"`
	Environment string `yaml:"environment,omitempty" toml:"environment,omitempty"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Server.URL == "" && c.Server.Socket == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.Timeout == "" {
		c.Server.Timeout = DefaultTimeout
	}
	if c.Channel.Transport == "" {
		c.Channel.Transport = TransportSSE
	}
	if c.Channel.Path == "" {
		if c.Channel.Transport == TransportWebSocket {
			c.Channel.Path = DefaultWSPath
		} else {
			c.Channel.Path = DefaultSSEPath
		}
	}
	if c.State.Backend == "" {
		c.State.Backend = "yaml"
	}
}

// UnmarshalExtension decodes a specific extension's section into target,
// which must be a pointer. A missing section leaves target untouched.
//
//	var lint LintConfig
//	err := cfg.UnmarshalExtension("lint", &lint)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}
	return nil
}
