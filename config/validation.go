package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/grovetools/mirror/errors"
	"github.com/moby/patternmatcher"
)

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("server.url %q is not an absolute URL", c.Server.URL)).
				WithDetail("field", "server.url")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("server.url scheme %q is not http or https", u.Scheme)).
				WithDetail("field", "server.url")
		}
	}

	if c.Server.Timeout != "" {
		if d, err := time.ParseDuration(c.Server.Timeout); err != nil || d <= 0 {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("server.timeout %q is not a positive duration", c.Server.Timeout)).
				WithDetail("field", "server.timeout")
		}
	}

	switch c.Channel.Transport {
	case "", TransportSSE, TransportWebSocket:
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown channel.transport %q", c.Channel.Transport)).
			WithDetail("field", "channel.transport")
	}

	switch c.State.Backend {
	case "", "yaml", "sqlite":
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown state.backend %q", c.State.Backend)).
			WithDetail("field", "state.backend")
	}

	if _, err := patternmatcher.New(c.Workspace.Ignore); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid workspace.ignore pattern").
			WithDetail("field", "workspace.ignore")
	}
	return nil
}
