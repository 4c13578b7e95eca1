// Package cmd implements the mirror subcommands.
package cmd

import (
	"net/url"
	"strings"

	"github.com/grovetools/mirror/config"
	"github.com/grovetools/mirror/pkg/channel"
	"github.com/grovetools/mirror/pkg/request"
	"github.com/sirupsen/logrus"
)

// newService returns the request service for the configured server.
func newService(cfg *config.Config) *request.HTTPService {
	return request.NewHTTPService(cfg.Server.URL, cfg.Server.Socket, cfg.Server.TimeoutDuration())
}

// newSource returns the push transport selected by channel.transport.
func newSource(cfg *config.Config, logger *logrus.Entry) channel.Source {
	switch cfg.Channel.Transport {
	case config.TransportWebSocket:
		return channel.NewWebSocketSource(websocketURL(cfg.Server.URL, cfg.Channel.Path), cfg.Server.Socket, logger)
	default:
		// Streams stay open indefinitely, so the client has no timeout.
		client := request.NewHTTPClient(cfg.Server.Socket, 0)
		return channel.NewSSESource(joinURL(baseURL(cfg.Server.URL), cfg.Channel.Path), client, logger)
	}
}

// workspaceKey identifies the mirrored server in saved tab state.
func workspaceKey(cfg *config.Config) string {
	if cfg.Server.URL != "" {
		return strings.TrimRight(cfg.Server.URL, "/")
	}
	return "unix://" + cfg.Server.Socket
}

func baseURL(raw string) string {
	if raw == "" {
		return "http://unix"
	}
	return strings.TrimRight(raw, "/")
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// websocketURL maps an http(s) server URL onto the ws(s) scheme.
func websocketURL(server, path string) string {
	u, err := url.Parse(baseURL(server))
	if err != nil {
		return joinURL(baseURL(server), path)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return joinURL(strings.TrimRight(u.String(), "/"), path)
}
