package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/mirror/cli"
	"github.com/grovetools/mirror/config"
	"github.com/grovetools/mirror/pkg/channel"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/state"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs sub under a root command the way main wires it.
func execute(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MIRROR_HOME", t.TempDir())

	root := cli.NewStandardCommand("mirror", "test")
	root.AddCommand(sub)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000/ws", websocketURL("http://localhost:8000", "/ws"))
	assert.Equal(t, "wss://example.com/base/ws", websocketURL("https://example.com/base/", "ws"))
	assert.Equal(t, "ws://unix/ws", websocketURL("", "/ws"))
}

func TestWorkspaceKey(t *testing.T) {
	assert.Equal(t, "http://h:1", workspaceKey(&config.Config{Server: config.ServerConfig{URL: "http://h:1/"}}))
	assert.Equal(t, "unix:///run/m.sock", workspaceKey(&config.Config{Server: config.ServerConfig{Socket: "/run/m.sock"}}))
}

func TestNewSourceFollowsTransport(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	assert.IsType(t, &channel.SSESource{}, newSource(cfg, nil))

	cfg.Channel.Transport = config.TransportWebSocket
	assert.IsType(t, &channel.WebSocketSource{}, newSource(cfg, nil))
}

func TestTreeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files", r.URL.Path)
		_ = json.NewEncoder(w).Encode(sampleRoot())
	}))
	defer srv.Close()

	cfgPath := writeConfig(t, "server:\n  url: "+srv.URL+"\nworkspace:\n  ignore: [\"*.md\"]\n")
	out, err := execute(t, NewTreeCmd(), "tree", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "orders.sql")
	assert.NotContains(t, out, "README.md")
}

func TestTabsCommand(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "tabs.yml")
	store := state.NewYAMLStore(statePath)
	require.NoError(t, store.Save("http://example.test", models.TabState{
		Tabs:     []models.TabRecord{{ID: "a"}, {ID: "b", Content: "edit"}},
		ActiveID: "b",
	}))
	require.NoError(t, store.Save("http://other.test", models.TabState{}))

	cfgPath := writeConfig(t, "server:\n  url: http://example.test\nstate:\n  path: "+statePath+"\n")

	out, err := execute(t, NewTabsCmd(), "tabs", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "http://example.test")
	assert.Contains(t, out, "4 bytes buffered")
	assert.NotContains(t, out, "other.test")

	out, err = execute(t, NewTabsCmd(), "tabs", "--config", cfgPath, "--all", "--json")
	require.NoError(t, err)
	var saved []savedTabs
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.Len(t, saved, 2)
}

func TestConfigSchemaCommand(t *testing.T) {
	out, err := execute(t, NewConfigCmd(), "config", "schema")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
	assert.Contains(t, out, "Mirror Configuration")
}

func TestConfigShowCommand(t *testing.T) {
	cfgPath := writeConfig(t, "server:\n  url: http://example.test\n")
	out, err := execute(t, NewConfigCmd(), "config", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "# Source: "+cfgPath)
	assert.Contains(t, out, "url: http://example.test")
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	all, err := readLines(path, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, all)

	last, err := readLines(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, last)
}

func TestPrintLogLine(t *testing.T) {
	var buf bytes.Buffer
	printLogLine(&buf, `{"level":"info"}`, true)
	printLogLine(&buf, "plain text", true)
	printLogLine(&buf, "plain text", false)
	assert.Equal(t, "{\"level\":\"info\"}\n{\"msg\":\"plain text\"}\nplain text\n", buf.String())
}
