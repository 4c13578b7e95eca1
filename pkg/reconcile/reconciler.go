// Package reconcile merges change batches and directory snapshots from the
// file topic into a workspace.Tree in place.
package reconcile

import (
	"path"
	"sort"

	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/pkg/workspace"
	"github.com/sirupsen/logrus"
)

// TabCloser closes any editor session bound to a file. Closing a file with
// no open tab must be a no-op.
type TabCloser interface {
	Close(f *workspace.File) bool
}

// Result summarizes one applied batch for downstream refresh hooks.
type Result struct {
	Added      int
	Modified   int
	Deleted    int
	Dropped    int
	ClosedTabs int
	// Removed holds every file detached from the tree by this batch.
	Removed []*workspace.File
}

// Changed reports whether the batch mutated the tree.
func (r Result) Changed() bool {
	return r.Added > 0 || r.Modified > 0 || r.Deleted > 0
}

// Reconciler applies file-topic batches to a tree. It must only be used from
// the goroutine that owns the tree.
type Reconciler struct {
	tree    *workspace.Tree
	tabs    TabCloser
	logger  *logrus.Entry
	refresh []func(Result)
}

// New creates a Reconciler for tree. tabs may be nil.
func New(tree *workspace.Tree, tabs TabCloser, logger *logrus.Entry) *Reconciler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{tree: tree, tabs: tabs, logger: logger}
}

// OnRefresh registers a hook run exactly once after every applied batch.
func (r *Reconciler) OnRefresh(fn func(Result)) {
	r.refresh = append(r.refresh, fn)
}

// Tree returns the reconciliation target.
func (r *Reconciler) Tree() *workspace.Tree {
	return r.tree
}

// Apply merges one batch into the tree. Missing targets are benign no-ops.
func (r *Reconciler) Apply(batch models.FileEvent) {
	var res Result

	for _, change := range orderChanges(batch.Changes) {
		switch change.Change {
		case models.ChangeDeleted:
			r.applyDeleted(change, &res)
		case models.ChangeModified:
			r.applyModified(change, &res)
		case models.ChangeAdded:
			r.applyAdded(change, &res)
		default:
			res.Dropped++
		}
	}

	dirPaths := make([]string, 0, len(batch.Directories))
	for p := range batch.Directories {
		dirPaths = append(dirPaths, p)
	}
	sort.Strings(dirPaths)
	for _, p := range dirPaths {
		r.applySnapshot(p, batch.Directories[p], &res)
	}

	r.enforceOrder()

	r.logger.WithFields(logrus.Fields{
		"added":       res.Added,
		"modified":    res.Modified,
		"deleted":     res.Deleted,
		"dropped":     res.Dropped,
		"closed_tabs": res.ClosedTabs,
	}).Debug("Applied file batch")

	for _, fn := range r.refresh {
		fn(res)
	}
}

// orderChanges returns a copy of changes with every Deleted event ahead of
// Added/Modified events, preserving relative order within each group.
func orderChanges(changes []models.FileChange) []models.FileChange {
	ordered := make([]models.FileChange, len(changes))
	copy(ordered, changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].Change) < rank(ordered[j].Change)
	})
	return ordered
}

func rank(k models.ChangeKind) int {
	if k == models.ChangeDeleted {
		return 0
	}
	return 1
}

func (r *Reconciler) applyModified(change models.FileChange, res *Result) {
	node, ok := r.tree.Lookup(change.Path)
	if !ok {
		res.Dropped++
		return
	}
	if f, ok := node.(*workspace.File); ok && change.File != nil {
		f.Merge(*change.File)
	}
	res.Modified++
}

func (r *Reconciler) applyDeleted(change models.FileChange, res *Result) {
	node, ok := r.tree.Lookup(change.Path)
	if !ok {
		res.Dropped++
		return
	}
	switch n := node.(type) {
	case *workspace.Directory:
		removed := r.tree.RemoveDirectory(n)
		for _, f := range removed {
			r.closeTab(f, res)
		}
		res.Removed = append(res.Removed, removed...)
	case *workspace.File:
		if r.tree.RemoveFile(n) {
			r.closeTab(n, res)
			res.Removed = append(res.Removed, n)
		}
	}
	res.Deleted++
}

func (r *Reconciler) applyAdded(change models.FileChange, res *Result) {
	if _, exists := r.tree.Lookup(change.Path); exists {
		r.applyModified(change, res)
		return
	}
	parent, ok := r.parentOf(change.Path)
	if !ok {
		res.Dropped++
		return
	}

	if change.Directory != nil {
		payload := *change.Directory
		payload.Path = change.Path
		if r.tree.AddDirectory(parent, payload) == nil {
			res.Dropped++
			return
		}
		res.Added++
		return
	}

	payload := models.FilePayload{Path: change.Path}
	if change.File != nil {
		payload = *change.File
		payload.Path = change.Path
	}
	if r.tree.AddFile(parent, payload) == nil {
		res.Dropped++
		return
	}
	res.Added++
}

// applySnapshot adds children listed in snap that are not known locally.
// It never removes anything; deletions only come from Deleted events.
func (r *Reconciler) applySnapshot(dirPath string, snap models.DirectoryPayload, res *Result) {
	dir, ok := r.tree.Directory(dirPath)
	if !ok {
		return
	}
	for _, sub := range snap.Directories {
		if _, exists := r.tree.Lookup(sub.Path); exists {
			continue
		}
		if r.tree.AddDirectory(dir, sub) != nil {
			res.Added++
		}
	}
	for _, f := range snap.Files {
		if _, exists := r.tree.Lookup(f.Path); exists {
			continue
		}
		if r.tree.AddFile(dir, f) != nil {
			res.Added++
		}
	}
	dir.Sort()
}

func (r *Reconciler) parentOf(p string) (*workspace.Directory, bool) {
	dir := path.Dir(p)
	if dir == "." {
		dir = ""
	}
	if d, ok := r.tree.Directory(dir); ok {
		return d, true
	}
	root := r.tree.Root()
	if (dir == "" || dir == "/") && (root.Path == "" || root.Path == "/") {
		return root, true
	}
	return nil, false
}

func (r *Reconciler) closeTab(f *workspace.File, res *Result) {
	if r.tabs == nil {
		return
	}
	if r.tabs.Close(f) {
		res.ClosedTabs++
	}
}

// enforceOrder re-sorts any directory whose children are out of name order.
func (r *Reconciler) enforceOrder() {
	r.tree.Walk(func(n workspace.Node) bool {
		d, ok := n.(*workspace.Directory)
		if !ok {
			return true
		}
		if !d.IsSorted() {
			r.logger.WithField("path", d.Path).Warn("Directory children out of order after batch; re-sorting")
			d.Sort()
		}
		return true
	})
}
