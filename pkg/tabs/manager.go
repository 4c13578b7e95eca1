// Package tabs tracks open editor sessions bound to workspace files.
package tabs

import (
	"strings"

	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/pkg/workspace"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sirupsen/logrus"
)

// Tab binds one File, by identity, to an editor buffer.
type Tab struct {
	File   *workspace.File
	Buffer string
	Dirty  bool
}

// ID returns the id of the bound file.
func (t *Tab) ID() string {
	return t.File.ID
}

// Diff renders the buffer against the file content as +/- prefixed lines.
// It returns an empty string when they are equal.
func (t *Tab) Diff() string {
	if t.Buffer == t.File.Content {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(t.File.Content, t.Buffer)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(strings.TrimSuffix(line, "\n"))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Manager holds tabs in open order plus the active selection. It is not safe
// for concurrent use.
type Manager struct {
	tabs     []*Tab
	active   *Tab
	selected bool
	logger   *logrus.Entry
}

// NewManager creates an empty Manager.
func NewManager(logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{logger: logger}
}

// Open returns the tab bound to f, creating it if needed, and makes it active.
func (m *Manager) Open(f *workspace.File) *Tab {
	tab := m.Find(f)
	if tab == nil {
		tab = m.add(f, f.Content)
	}
	m.active = tab
	m.selected = true
	return tab
}

// Close closes the tab bound to f. It reports whether a tab was closed; a
// file with no open tab is a no-op.
func (m *Manager) Close(f *workspace.File) bool {
	for i, tab := range m.tabs {
		if tab.File != f {
			continue
		}
		m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
		if m.active == tab {
			m.active = neighbour(m.tabs, i)
		}
		m.logger.WithField("file", f.Path).Debug("Closed tab")
		return true
	}
	return false
}

// Select makes tab active. It reports false if tab is not open.
func (m *Manager) Select(tab *Tab) bool {
	for _, t := range m.tabs {
		if t == tab {
			m.active = tab
			m.selected = true
			return true
		}
	}
	return false
}

// Active returns the active tab, or nil.
func (m *Manager) Active() *Tab {
	return m.active
}

// Tabs returns the open tabs in open order.
func (m *Manager) Tabs() []*Tab {
	out := make([]*Tab, len(m.tabs))
	copy(out, m.tabs)
	return out
}

// Find returns the tab bound to f, or nil.
func (m *Manager) Find(f *workspace.File) *Tab {
	for _, t := range m.tabs {
		if t.File == f {
			return t
		}
	}
	return nil
}

// FindByID returns the tab whose file has the given id, or nil.
func (m *Manager) FindByID(id string) *Tab {
	for _, t := range m.tabs {
		if t.ID() == id {
			return t
		}
	}
	return nil
}

// Edit replaces the buffer of tab and recomputes its dirty flag.
func (m *Manager) Edit(tab *Tab, buffer string) {
	tab.Buffer = buffer
	tab.Dirty = buffer != tab.File.Content
}

// Restore materializes persisted tabs against the freshly fetched files.
// Records whose id matches no file get an ephemeral local file. It returns
// the number of tabs created.
func (m *Manager) Restore(state models.TabState, files []*workspace.File) int {
	byID := make(map[string]*workspace.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	created := 0
	for _, rec := range state.Tabs {
		if rec.ID == "" || m.FindByID(rec.ID) != nil {
			continue
		}
		f, ok := byID[rec.ID]
		if !ok {
			f = workspace.NewLocalFile(rec.ID, rec.Content)
		}
		buffer := rec.Content
		if buffer == "" {
			buffer = f.Content
		}
		tab := m.add(f, buffer)
		tab.Dirty = !f.Local && buffer != f.Content
		created++
	}

	if !m.selected && state.ActiveID != "" {
		if tab := m.FindByID(state.ActiveID); tab != nil {
			m.active = tab
		}
	}
	if m.active == nil && len(m.tabs) > 0 {
		m.active = m.tabs[len(m.tabs)-1]
	}

	m.logger.WithFields(logrus.Fields{
		"restored": created,
		"records":  len(state.Tabs),
	}).Debug("Restored tabs")
	return created
}

// Revalidate drops the active selection if it no longer refers to an open
// tab, falling back to the most recently opened one.
func (m *Manager) Revalidate() {
	if m.active != nil && m.Find(m.active.File) == m.active {
		return
	}
	m.active = nil
	if len(m.tabs) > 0 {
		m.active = m.tabs[len(m.tabs)-1]
	}
}

// Snapshot returns the persistable state of the open tabs.
func (m *Manager) Snapshot() models.TabState {
	state := models.TabState{Tabs: make([]models.TabRecord, 0, len(m.tabs))}
	for _, t := range m.tabs {
		state.Tabs = append(state.Tabs, models.TabRecord{ID: t.ID(), Content: t.Buffer})
	}
	if m.active != nil {
		state.ActiveID = m.active.ID()
	}
	return state
}

func (m *Manager) add(f *workspace.File, buffer string) *Tab {
	tab := &Tab{File: f, Buffer: buffer}
	m.tabs = append(m.tabs, tab)
	return tab
}

// neighbour picks the tab to activate after closing index i.
func neighbour(tabs []*Tab, i int) *Tab {
	switch {
	case len(tabs) == 0:
		return nil
	case i > 0:
		return tabs[i-1]
	default:
		return tabs[0]
	}
}
