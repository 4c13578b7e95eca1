// Package profiling times named phases of a command and optionally writes
// pprof profiles.
package profiling

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Stopper ends a span started with Start.
type Stopper interface {
	Stop()
}

type span struct {
	name     string
	start    time.Time
	duration time.Duration
	children []*span
	profiler *Profiler
}

func (s *span) Stop() {
	s.profiler.end(s)
}

// Profiler records nested spans. Spans started while another is open
// become its children.
type Profiler struct {
	mu    sync.Mutex
	root  *span
	stack []*span
}

var (
	defaultMu       sync.Mutex
	defaultProfiler *Profiler
)

// New creates an enabled profiler.
func New() *Profiler {
	p := &Profiler{}
	p.root = &span{name: "total", start: time.Now(), profiler: p}
	p.stack = []*span{p.root}
	return p
}

// Enable installs a fresh default profiler.
func Enable() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultProfiler = New()
}

// Disable removes the default profiler.
func Disable() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultProfiler = nil
}

// Start begins a span on the default profiler. It is a no-op until Enable.
func Start(name string) Stopper {
	defaultMu.Lock()
	p := defaultProfiler
	defaultMu.Unlock()
	if p == nil {
		return noopStopper{}
	}
	return p.Start(name)
}

// Summarize writes the default profiler's spans to w.
func Summarize(w io.Writer) {
	defaultMu.Lock()
	p := defaultProfiler
	defaultMu.Unlock()
	if p != nil {
		p.Summarize(w)
	}
}

// Start begins a span nested under the innermost open span.
func (p *Profiler) Start(name string) Stopper {
	p.mu.Lock()
	defer p.mu.Unlock()

	parent := p.stack[len(p.stack)-1]
	s := &span{name: name, start: time.Now(), profiler: p}
	parent.children = append(parent.children, s)
	p.stack = append(p.stack, s)
	return s
}

func (p *Profiler) end(s *span) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s.duration = time.Since(s.start)
	// Pop s and anything left open above it.
	for i := len(p.stack) - 1; i > 0; i-- {
		if p.stack[i] == s {
			p.stack = p.stack[:i]
			return
		}
	}
}

// Summarize writes an indented tree of spans with their share of the total.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := time.Since(p.root.start)
	fmt.Fprintf(w, "--- timing (%v) ---\n", total.Round(100*time.Microsecond))
	for _, c := range p.root.children {
		printSpan(w, c, 0, total)
	}
}

func printSpan(w io.Writer, s *span, depth int, total time.Duration) {
	pct := 0.0
	if total > 0 {
		pct = float64(s.duration) / float64(total) * 100
	}
	fmt.Fprintf(w, "%s- %s (%v, %.1f%%)\n", strings.Repeat("  ", depth), s.name, s.duration.Round(100*time.Microsecond), pct)
	for _, c := range s.children {
		printSpan(w, c, depth+1, total)
	}
}

type noopStopper struct{}

func (noopStopper) Stop() {}
