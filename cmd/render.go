package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/mirror/cli"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/pkg/plan"
	"github.com/grovetools/mirror/pkg/reconcile"
	"github.com/grovetools/mirror/pkg/workspace"
	"golang.org/x/term"
)

// outputWidth returns the terminal width, or 0 when stdout is not a terminal.
func outputWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// renderTree writes d as an indented tree. Lines are truncated to width
// when it is positive.
func renderTree(w io.Writer, d *workspace.Directory, width int) {
	p := cli.DefaultPalette
	name := d.Name
	if name == "" {
		name = "."
	}
	fmt.Fprintln(w, p.Dir.Render(name+"/"))
	renderChildren(w, d, "", width, p)
}

func renderChildren(w io.Writer, d *workspace.Directory, prefix string, width int, p cli.Palette) {
	total := len(d.Directories) + len(d.Files)
	i := 0
	branch := func() (string, string) {
		i++
		if i == total {
			return "└── ", "    "
		}
		return "├── ", "│   "
	}

	for _, sub := range d.Directories {
		conn, next := branch()
		fmt.Fprintln(w, prefix+conn+p.Dir.Render(truncate(sub.Name+"/", width-lipgloss.Width(prefix+conn))))
		renderChildren(w, sub, prefix+next, width, p)
	}
	for _, f := range d.Files {
		conn, _ := branch()
		label := truncate(f.Name, width-lipgloss.Width(prefix+conn))
		style := p.File
		if f.Local {
			style = p.Muted
		}
		fmt.Fprintln(w, prefix+conn+style.Render(label))
	}
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}

// eventPrinter writes session events as they happen, as text or as one
// JSON object per line.
type eventPrinter struct {
	out  io.Writer
	json bool
}

type printedEvent struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Topic   string    `json:"topic,omitempty"`
	Phase   string    `json:"phase,omitempty"`
	Success *bool     `json:"success,omitempty"`
	Message string    `json:"message,omitempty"`
	Added   int       `json:"added,omitempty"`
	Changed int       `json:"modified,omitempty"`
	Deleted int       `json:"deleted,omitempty"`
	Closed  int       `json:"closed_tabs,omitempty"`
	Nodes   int       `json:"nodes,omitempty"`
}

func (e *eventPrinter) emit(ev printedEvent, text string) {
	if e.json {
		ev.Time = time.Now()
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintln(e.out, string(data))
		return
	}
	fmt.Fprintln(e.out, text)
}

func (e *eventPrinter) Tree(res reconcile.Result, nodes int) {
	p := cli.DefaultPalette
	var parts []string
	if res.Added > 0 {
		parts = append(parts, p.Success.Render(fmt.Sprintf("+%d", res.Added)))
	}
	if res.Modified > 0 {
		parts = append(parts, p.Warning.Render(fmt.Sprintf("~%d", res.Modified)))
	}
	if res.Deleted > 0 {
		parts = append(parts, p.Error.Render(fmt.Sprintf("-%d", res.Deleted)))
	}
	text := fmt.Sprintf("%s %d nodes", p.Section.Render("tree"), nodes)
	if len(parts) > 0 {
		text += " " + strings.Join(parts, " ")
	}
	if res.ClosedTabs > 0 {
		text += p.Muted.Render(fmt.Sprintf(" (closed %d tabs)", res.ClosedTabs))
	}
	e.emit(printedEvent{
		Kind:    "tree",
		Added:   res.Added,
		Changed: res.Modified,
		Deleted: res.Deleted,
		Closed:  res.ClosedTabs,
		Nodes:   nodes,
	}, text)
}

func (e *eventPrinter) Tracker(t *plan.Tracker) {
	if t == nil {
		return
	}
	p := cli.DefaultPalette
	status := string(t.Phase)
	style := p.Muted
	switch {
	case t.Running():
		style = p.Warning
	case t.Succeeded():
		style = p.Success
	case t.Phase == plan.PhaseDone:
		style = p.Error
		status = "failed"
	}
	text := fmt.Sprintf("%s %s", p.Section.Render(string(t.Topic)), style.Render(status))
	if t.Promote != "" {
		text += p.Muted.Render(" promote " + t.Promote)
	}
	e.emit(printedEvent{
		Kind:    "tracker",
		Topic:   string(t.Topic),
		Phase:   string(t.Phase),
		Success: t.Success,
	}, text)
}

func (e *eventPrinter) Error(rep models.ErrorReport) {
	p := cli.DefaultPalette
	e.emit(printedEvent{
		Kind:    "error",
		Topic:   rep.Key,
		Message: rep.Message,
	}, fmt.Sprintf("%s %s %s", p.Error.Render("error"), p.Muted.Render("["+rep.Key+"]"), rep.Message))
}
