package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

const fileExt = ".toml"

// FileStore keeps one TOML document per project in a directory. Writes go
// to a temporary file that is renamed over the target, so a reader never
// observes a half-written project.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at dir. The directory is created
// on the first Save; a missing directory loads as an empty store.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

// Load reads every project file in the directory.
func (s *FileStore) Load(_ context.Context) ([]blueprint.Project, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []blueprint.Project{}, nil
	}
	if err != nil {
		return nil, &ReadError{Backend: "file", Err: err}
	}

	projects := make([]blueprint.Project, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isProjectFile(e.Name()) {
			continue
		}
		p, err := s.readFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, &ReadError{Backend: "file", Err: err}
		}
		projects = append(projects, p)
	}
	sortProjects(projects)
	return projects, nil
}

func (s *FileStore) readFile(path string) (blueprint.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return blueprint.Project{}, err
	}
	var r record
	if err := toml.Unmarshal(data, &r); err != nil {
		return blueprint.Project{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	p, err := r.project()
	if err != nil {
		return blueprint.Project{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Save writes the project to <dir>/<id>.toml.
func (s *FileStore) Save(_ context.Context, p blueprint.Project) error {
	if err := s.save(p); err != nil {
		return &WriteError{Backend: "file", ProjectID: p.ID, Err: err}
	}
	return nil
}

func (s *FileStore) save(p blueprint.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	path, err := s.path(p.ID)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(toRecord(p))
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Delete removes the project's file.
func (s *FileStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return &WriteError{Backend: "file", ProjectID: id, Err: err}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &WriteError{Backend: "file", ProjectID: id, Err: err}
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("project id %q is not a valid file name", id)
	}
	return filepath.Join(s.dir, id+fileExt), nil
}

func isProjectFile(name string) bool {
	return strings.HasSuffix(name, fileExt) && !strings.HasPrefix(name, ".")
}
