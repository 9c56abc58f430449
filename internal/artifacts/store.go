package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"newsflow/internal/fileutil"
)

// ErrArtifactMissing reports that no artifact exists for an (id, stage) pair.
var ErrArtifactMissing = errors.New("artifact missing")

// ErrInvalidKey reports an id or stage name that cannot form a file name.
var ErrInvalidKey = errors.New("invalid artifact key")

const fileMode os.FileMode = 0o644

// Extension returns the file extension used for a stage's artifacts.
func Extension(stage string) string {
	switch stage {
	case "Published":
		return "json"
	default:
		return "html"
	}
}

// FileName builds the on-disk name for an artifact.
func FileName(id, stage string) string {
	return fmt.Sprintf("%s_%s.%s", stage, id, Extension(stage))
}

// Store is a directory of artifacts.
type Store struct {
	dir string
}

// Open prepares the artifact directory, creating it when absent.
func Open(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("artifact directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute location of an artifact without checking it exists.
func (s *Store) Path(id, stage string) (string, error) {
	if err := validateKey(id, stage); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, FileName(id, stage)), nil
}

// Write stores content for (id, stage), replacing any previous artifact atomically.
func (s *Store) Write(id, stage string, content []byte) error {
	path, err := s.Path(id, stage)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, content, fileMode); err != nil {
		return fmt.Errorf("write artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Read returns the artifact content or ErrArtifactMissing.
func (s *Store) Read(id, stage string) ([]byte, error) {
	path, err := s.Path(id, stage)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, filepath.Base(path))
		}
		return nil, fmt.Errorf("read artifact %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// Exists reports whether the artifact for (id, stage) is present.
func (s *Store) Exists(id, stage string) (bool, error) {
	path, err := s.Path(id, stage)
	if err != nil {
		return false, err
	}
	return fileutil.FileExists(path)
}

// Entry describes one artifact on disk.
type Entry struct {
	Stage string
	Path  string
	Size  int64
}

// List returns every artifact stored for id, ordered by stage name.
func (s *Store) List(id string) ([]Entry, error) {
	if err := validateKey(id, "x"); err != nil {
		return nil, err
	}
	suffix := "_" + id + "."
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	var entries []Entry
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		idx := strings.Index(name, suffix)
		if idx <= 0 {
			continue
		}
		stage := name[:idx]
		if name != FileName(id, stage) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Stage: stage, Path: filepath.Join(s.dir, name), Size: info.Size()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Stage < entries[j].Stage })
	return entries, nil
}

func validateKey(id, stage string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(stage) == "" {
		return fmt.Errorf("%w: id and stage are required", ErrInvalidKey)
	}
	for _, value := range []string{id, stage} {
		if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") || strings.HasPrefix(value, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidKey, value)
		}
	}
	if strings.Contains(stage, "_") {
		return fmt.Errorf("%w: stage %q contains underscore", ErrInvalidKey, stage)
	}
	return nil
}
