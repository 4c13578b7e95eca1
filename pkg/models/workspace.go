package models

import "strings"

// ChangeKind tags a file change reported on the file topic.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// ParseChangeKind normalizes the change tag sent by the server. Servers send
// both "Added" and "added"; anything else is rejected.
func ParseChangeKind(s string) (ChangeKind, bool) {
	switch ChangeKind(strings.ToLower(strings.TrimSpace(s))) {
	case ChangeAdded:
		return ChangeAdded, true
	case ChangeModified:
		return ChangeModified, true
	case ChangeDeleted:
		return ChangeDeleted, true
	}
	return "", false
}

// FilePayload is the server's view of a single file.
type FilePayload struct {
	ID        string `json:"id,omitempty" mapstructure:"id"`
	Name      string `json:"name" mapstructure:"name"`
	Path      string `json:"path" mapstructure:"path"`
	Extension string `json:"extension,omitempty" mapstructure:"extension"`
	// Content is nil when the payload does not carry the file body, which
	// is distinct from an empty file.
	Content *string `json:"content,omitempty" mapstructure:"content"`
}

// Body returns the file content, or "" when the payload carries none.
func (p FilePayload) Body() string {
	if p.Content == nil {
		return ""
	}
	return *p.Content
}

// Text returns a pointer to s for building payloads.
func Text(s string) *string {
	return &s
}

// DirectoryPayload is the server's view of a directory and its direct
// children. The root snapshot returned by fetch-files nests all the way down;
// snapshots on the file topic usually carry a single level.
type DirectoryPayload struct {
	Name        string             `json:"name" mapstructure:"name"`
	Path        string             `json:"path" mapstructure:"path"`
	Directories []DirectoryPayload `json:"directories,omitempty" mapstructure:"directories"`
	Files       []FilePayload      `json:"files,omitempty" mapstructure:"files"`
}

// FileChange is one entry of a change batch.
type FileChange struct {
	Change    ChangeKind        `json:"change" mapstructure:"change"`
	Path      string            `json:"path" mapstructure:"path"`
	File      *FilePayload      `json:"file,omitempty" mapstructure:"file"`
	Directory *DirectoryPayload `json:"directory,omitempty" mapstructure:"directory"`
}

// FileEvent is the payload of the file topic: an ordered change batch plus
// authoritative child listings keyed by directory path.
type FileEvent struct {
	Changes     []FileChange                `json:"changes" mapstructure:"changes"`
	Directories map[string]DirectoryPayload `json:"directories,omitempty" mapstructure:"directories"`
}

// Empty reports whether the batch carries nothing to apply.
func (e FileEvent) Empty() bool {
	return len(e.Changes) == 0 && len(e.Directories) == 0
}
