package workspace

import (
	"path"
	"sort"
	"strings"

	"github.com/grovetools/mirror/pkg/models"
	"github.com/moby/patternmatcher"
)

// Node is either a *Directory or a *File.
type Node interface {
	NodePath() string
	NodeName() string
	// ParentPath is the path of the owning directory, empty for the root.
	ParentPath() string
}

// Directory owns its child directories and files, each kept sorted by name.
type Directory struct {
	Name        string
	Path        string
	Directories []*Directory
	Files       []*File

	parent string
}

// File is a leaf of the tree and the unit editor tabs bind to.
type File struct {
	ID        string
	Name      string
	Path      string
	Extension string
	Content   string
	// Local marks files that exist only on the client, e.g. restored tabs
	// whose file is gone from the server.
	Local bool

	parent string
}

func (d *Directory) NodePath() string   { return d.Path }
func (d *Directory) NodeName() string   { return d.Name }
func (d *Directory) ParentPath() string { return d.parent }

func (f *File) NodePath() string   { return f.Path }
func (f *File) NodeName() string   { return f.Name }
func (f *File) ParentPath() string { return f.parent }

// Merge copies the mutable fields of a payload into the file in place.
// Empty names and extensions leave the current value untouched; content is
// replaced whenever the payload carries it, even when empty.
func (f *File) Merge(p models.FilePayload) {
	if p.Name != "" {
		f.Name = p.Name
	}
	if p.Extension != "" {
		f.Extension = p.Extension
	}
	if p.Content != nil {
		f.Content = *p.Content
	}
}

// Sort orders both child sequences ascending by name.
func (d *Directory) Sort() {
	sort.SliceStable(d.Directories, func(i, j int) bool { return d.Directories[i].Name < d.Directories[j].Name })
	sort.SliceStable(d.Files, func(i, j int) bool { return d.Files[i].Name < d.Files[j].Name })
}

// IsSorted reports whether both child sequences are strictly ascending by name.
func (d *Directory) IsSorted() bool {
	for i := 1; i < len(d.Directories); i++ {
		if d.Directories[i-1].Name >= d.Directories[i].Name {
			return false
		}
	}
	for i := 1; i < len(d.Files); i++ {
		if d.Files[i-1].Name >= d.Files[i].Name {
			return false
		}
	}
	return true
}

// Option configures a Tree.
type Option func(*Tree)

// WithIgnore excludes paths matching the given gitignore-style patterns
// from snapshot and Added driven node creation.
func WithIgnore(patterns []string) Option {
	return func(t *Tree) {
		if len(patterns) == 0 {
			return
		}
		pm, err := patternmatcher.New(patterns)
		if err != nil {
			return
		}
		t.ignore = pm
	}
}

// Tree is the in-memory mirror of the remote workspace. Nodes are indexed by
// path; parent links are path lookups through that index, never owning pointers.
// A Tree is not safe for concurrent use.
type Tree struct {
	root   *Directory
	dirs   map[string]*Directory
	files  map[string]*File
	ignore *patternmatcher.PatternMatcher
}

// NewTree builds a tree from the full snapshot returned by fetch-files.
func NewTree(root models.DirectoryPayload, opts ...Option) *Tree {
	t := &Tree{
		dirs:  make(map[string]*Directory),
		files: make(map[string]*File),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.root = &Directory{Name: root.Name, Path: root.Path}
	t.dirs[root.Path] = t.root
	t.fill(t.root, root)
	return t
}

// Root returns the root directory.
func (t *Tree) Root() *Directory {
	return t.root
}

// Lookup returns the node at path.
func (t *Tree) Lookup(p string) (Node, bool) {
	if d, ok := t.dirs[p]; ok {
		return d, true
	}
	if f, ok := t.files[p]; ok {
		return f, true
	}
	return nil, false
}

// Directory returns the directory at path.
func (t *Tree) Directory(p string) (*Directory, bool) {
	d, ok := t.dirs[p]
	return d, ok
}

// File returns the file at path.
func (t *Tree) File(p string) (*File, bool) {
	f, ok := t.files[p]
	return f, ok
}

// FileByID returns the first file whose ID matches.
func (t *Tree) FileByID(id string) (*File, bool) {
	if f, ok := t.files[id]; ok && f.ID == id {
		return f, true
	}
	for _, f := range t.files {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// Parent resolves the owning directory of n.
func (t *Tree) Parent(n Node) (*Directory, bool) {
	if d, ok := n.(*Directory); ok && d == t.root {
		return nil, false
	}
	d, ok := t.dirs[n.ParentPath()]
	return d, ok
}

// Len returns the number of directories and files, root included.
func (t *Tree) Len() int {
	return len(t.dirs) + len(t.files)
}

// Ignored reports whether p matches one of the configured ignore patterns.
func (t *Tree) Ignored(p string) bool {
	if t.ignore == nil {
		return false
	}
	matched, err := t.ignore.MatchesOrParentMatches(strings.TrimPrefix(p, "/"))
	return err == nil && matched
}

// AddDirectory creates a directory (and any nested children carried by the
// payload) under parent. It returns the existing node if one is already at
// that path, and nil if the path is ignored.
func (t *Tree) AddDirectory(parent *Directory, p models.DirectoryPayload) *Directory {
	if existing, ok := t.dirs[p.Path]; ok {
		return existing
	}
	if t.Ignored(p.Path) {
		return nil
	}
	d := &Directory{Name: nameOf(p.Name, p.Path), Path: p.Path, parent: parent.Path}
	t.dirs[d.Path] = d
	parent.Directories = append(parent.Directories, d)
	parent.Sort()
	t.fill(d, p)
	return d
}

// AddFile creates a file under parent. It returns the existing node if one is
// already at that path, and nil if the path is ignored.
func (t *Tree) AddFile(parent *Directory, p models.FilePayload) *File {
	if existing, ok := t.files[p.Path]; ok {
		return existing
	}
	if t.Ignored(p.Path) {
		return nil
	}
	f := newFile(parent, p)
	t.files[f.Path] = f
	parent.Files = append(parent.Files, f)
	parent.Sort()
	return f
}

// RemoveDirectory detaches d from its parent and drops d and its descendants
// from the index. It returns every file that was removed.
func (t *Tree) RemoveDirectory(d *Directory) []*File {
	if d == t.root {
		return nil
	}
	if parent, ok := t.dirs[d.parent]; ok {
		parent.Directories = removeDir(parent.Directories, d)
	}
	var removed []*File
	var drop func(*Directory)
	drop = func(dir *Directory) {
		delete(t.dirs, dir.Path)
		for _, f := range dir.Files {
			delete(t.files, f.Path)
			removed = append(removed, f)
		}
		for _, sub := range dir.Directories {
			drop(sub)
		}
	}
	drop(d)
	return removed
}

// RemoveFile detaches f from its parent. It reports whether f was present.
func (t *Tree) RemoveFile(f *File) bool {
	if current, ok := t.files[f.Path]; !ok || current != f {
		return false
	}
	delete(t.files, f.Path)
	if parent, ok := t.dirs[f.parent]; ok {
		parent.Files = removeFile(parent.Files, f)
	}
	return true
}

// Files returns every file in depth-first order, directories before files at
// each level, both in name order.
func (t *Tree) Files() []*File {
	var out []*File
	t.Walk(func(n Node) bool {
		if f, ok := n.(*File); ok {
			out = append(out, f)
		}
		return true
	})
	return out
}

// Walk visits nodes depth-first starting at the root. Returning false from fn
// skips the children of a directory.
func (t *Tree) Walk(fn func(Node) bool) {
	var walk func(*Directory)
	walk = func(d *Directory) {
		if !fn(d) {
			return
		}
		for _, sub := range d.Directories {
			walk(sub)
		}
		for _, f := range d.Files {
			fn(f)
		}
	}
	walk(t.root)
}

// Snapshot renders the tree back into payload form.
func (t *Tree) Snapshot() models.DirectoryPayload {
	var snap func(*Directory) models.DirectoryPayload
	snap = func(d *Directory) models.DirectoryPayload {
		out := models.DirectoryPayload{Name: d.Name, Path: d.Path}
		for _, sub := range d.Directories {
			out.Directories = append(out.Directories, snap(sub))
		}
		for _, f := range d.Files {
			out.Files = append(out.Files, models.FilePayload{
				ID:        f.ID,
				Name:      f.Name,
				Path:      f.Path,
				Extension: f.Extension,
				Content:   models.Text(f.Content),
			})
		}
		return out
	}
	return snap(t.root)
}

func (t *Tree) fill(d *Directory, p models.DirectoryPayload) {
	for _, sub := range p.Directories {
		t.AddDirectory(d, sub)
	}
	for _, f := range p.Files {
		t.AddFile(d, f)
	}
	d.Sort()
}

// NewLocalFile creates a file that is not attached to any tree.
func NewLocalFile(id, content string) *File {
	return &File{
		ID:        id,
		Name:      path.Base(id),
		Path:      id,
		Extension: path.Ext(id),
		Content:   content,
		Local:     true,
	}
}

func newFile(parent *Directory, p models.FilePayload) *File {
	id := p.ID
	if id == "" {
		id = p.Path
	}
	ext := p.Extension
	if ext == "" {
		ext = path.Ext(p.Path)
	}
	return &File{
		ID:        id,
		Name:      nameOf(p.Name, p.Path),
		Path:      p.Path,
		Extension: ext,
		Content:   p.Body(),
		parent:    parent.Path,
	}
}

func nameOf(name, p string) string {
	if name != "" {
		return name
	}
	return path.Base(p)
}

func removeDir(list []*Directory, d *Directory) []*Directory {
	for i, x := range list {
		if x == d {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removeFile(list []*File, f *File) []*File {
	for i, x := range list {
		if x == f {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
