// Package state persists editor tab state between sessions.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/pkg/paths"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by Open.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// Store loads and saves tab state keyed by workspace (the server the
// session mirrors).
type Store interface {
	Load(workspace string) (models.TabState, error)
	Save(workspace string, st models.TabState) error
	Workspaces() ([]string, error)
	Close() error
}

// Open returns the store for backend at path. An empty path selects the
// default location under the state directory.
func Open(backend, path string) (Store, error) {
	if backend == "" {
		backend = BackendYAML
	}
	if path == "" {
		path = paths.TabStatePath(backend)
	}
	switch backend {
	case BackendYAML:
		return NewYAMLStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown state backend %q", backend)).
		WithDetail("backend", backend)
}

// document is the on-disk YAML layout. Keys other than workspaces are kept
// as-is so other tools may share the file.
type document struct {
	Workspaces map[string]models.TabState `yaml:"workspaces"`
	Extra      map[string]interface{}     `yaml:",inline"`
}

// YAMLStore keeps all workspaces in one YAML file.
type YAMLStore struct {
	path string
	mu   sync.Mutex
}

// NewYAMLStore creates a store backed by the file at path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Path returns the backing file.
func (s *YAMLStore) Path() string {
	return s.path
}

// Load returns the state for workspace, or an empty state if the file or
// the workspace entry does not exist.
func (s *YAMLStore) Load(workspace string) (models.TabState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return models.TabState{}, err
	}
	return doc.Workspaces[workspace], nil
}

// Save replaces the state for workspace.
func (s *YAMLStore) Save(workspace string, st models.TabState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc.Workspaces == nil {
		doc.Workspaces = make(map[string]models.TabState)
	}
	if st.Empty() {
		delete(doc.Workspaces, workspace)
	} else {
		doc.Workspaces[workspace] = st
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.StateIO(s.path, fmt.Errorf("create state directory: %w", err))
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.StateIO(s.path, fmt.Errorf("marshal state: %w", err))
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.StateIO(s.path, fmt.Errorf("write state file: %w", err))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.StateIO(s.path, fmt.Errorf("replace state file: %w", err))
	}
	return nil
}

// Workspaces lists the workspaces with saved state.
func (s *YAMLStore) Workspaces() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(doc.Workspaces))
	for ws := range doc.Workspaces {
		out = append(out, ws)
	}
	return sortedStrings(out), nil
}

// Close is a no-op; the file is not held open.
func (s *YAMLStore) Close() error {
	return nil
}

func (s *YAMLStore) read() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, errors.StateIO(s.path, fmt.Errorf("read state file: %w", err))
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, errors.StateIO(s.path, fmt.Errorf("parse state file: %w", err))
	}
	return doc, nil
}
