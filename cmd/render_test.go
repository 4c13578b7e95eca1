package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/pkg/plan"
	"github.com/grovetools/mirror/pkg/reconcile"
	"github.com/grovetools/mirror/pkg/workspace"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func sampleRoot() models.DirectoryPayload {
	return models.DirectoryPayload{
		Name: "project",
		Directories: []models.DirectoryPayload{{
			Name:  "models",
			Path:  "models",
			Files: []models.FilePayload{{ID: "1", Name: "orders.sql", Path: "models/orders.sql"}},
		}},
		Files: []models.FilePayload{{ID: "2", Name: "README.md", Path: "README.md"}},
	}
}

func TestRenderTree(t *testing.T) {
	tree := workspace.NewTree(sampleRoot())

	var buf bytes.Buffer
	renderTree(&buf, tree.Root(), 0)

	want := strings.Join([]string{
		"project/",
		"├── models/",
		"│   └── orders.sql",
		"└── README.md",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abcdef", truncate("abcdef", 0))
	assert.Equal(t, "abcdef", truncate("abcdef", 6))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
	assert.Equal(t, "…", truncate("abcdef", 1))
}

func TestEventPrinterText(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{out: &buf}

	p.Tree(reconcile.Result{Added: 2, Deleted: 1, ClosedTabs: 1}, 7)
	tr := plan.NewTracker(models.TopicPlanApply)
	_, err := tr.Update(models.TrackerUpdate{Done: true, Status: models.TrackerSuccess})
	require.NoError(t, err)
	p.Tracker(tr)
	p.Error(models.ErrorReport{Key: "plan", Message: "boom"})

	out := buf.String()
	assert.Contains(t, out, "tree 7 nodes +2 -1 (closed 1 tabs)")
	assert.Contains(t, out, "plan-apply done")
	assert.Contains(t, out, "error [plan] boom")
}

func TestEventPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{out: &buf, json: true}

	tr := plan.NewTracker(models.TopicPlanOverview)
	_, err := tr.Update(models.TrackerUpdate{})
	require.NoError(t, err)
	p.Tracker(tr)
	p.Tree(reconcile.Result{Modified: 3}, 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, "tracker", ev["kind"])
	assert.Equal(t, "plan-overview", ev["topic"])
	assert.Equal(t, "running", ev["phase"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
	assert.Equal(t, "tree", ev["kind"])
	assert.EqualValues(t, 3, ev["modified"])
	assert.EqualValues(t, 4, ev["nodes"])
}
