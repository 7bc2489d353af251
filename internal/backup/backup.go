// Package backup keeps a per-entity YAML snapshot of every project and task
// on the local filesystem. The snapshot directory is the recovery source when
// the blob backend loses data.
package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yukikurage/project-tracker/internal/models"
)

var (
	ErrNotFound        = errors.New("snapshot not found")
	ErrUnsupportedKind = errors.New("kind has no snapshots")
	ErrInvalidID       = errors.New("invalid snapshot id")
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

const ext = ".yaml"

// Older snapshots were written as JSON, which the YAML decoder also reads.
const legacyExt = ".json"

// Store reads and writes snapshot files under one root directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Supports reports whether kind is snapshotted.
func Supports(kind models.Kind) bool {
	return kind == models.KindProject || kind == models.KindTask
}

// Init creates the per-kind directories.
func (s *Store) Init() error {
	for _, kind := range []models.Kind{models.KindProject, models.KindTask} {
		if err := os.MkdirAll(s.kindDir(kind), 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	return nil
}

func (s *Store) kindDir(kind models.Kind) string {
	return filepath.Join(s.dir, kind.Plural())
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (s *Store) path(kind models.Kind, id, extension string) (string, error) {
	if !Supports(kind) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	if err := validID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.kindDir(kind), id+extension), nil
}

// Save writes the snapshot of a project or task, replacing any previous one
// atomically.
func (s *Store) Save(e models.Entity) error {
	var doc any
	switch v := e.(type) {
	case *models.Project:
		doc = fromProject(v)
	case *models.Task:
		doc = fromTask(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, e.EntityKind())
	}

	path, err := s.path(e.EntityKind(), e.EntityID(), ext)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s %s: %w", e.EntityKind(), e.EntityID(), err)
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write snapshot %s %s: %w", e.EntityKind(), e.EntityID(), err)
	}
	// Drop any legacy JSON copy so it cannot outlive this one.
	legacy := strings.TrimSuffix(path, ext) + legacyExt
	if err := os.Remove(legacy); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove legacy snapshot", "op", "save", "kind", e.EntityKind(), "id", e.EntityID(), "file", legacy, "error", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Load reads the snapshot of kind/id. ErrNotFound means no file exists.
func (s *Store) Load(kind models.Kind, id string) (models.Entity, error) {
	for _, extension := range []string{ext, legacyExt} {
		path, err := s.path(kind, id, extension)
		if err != nil {
			return nil, err
		}
		e, err := s.readFile(kind, path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return e, err
	}
	return nil, ErrNotFound
}

func (s *Store) readFile(kind models.Kind, path string) (models.Entity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	fallbackID := strings.TrimSuffix(name, filepath.Ext(name))
	modTime := info.ModTime().UTC()

	switch kind {
	case models.KindProject:
		var snap projectSnapshot
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrCorruptSnapshot, path, err)
		}
		p, err := snap.toProject(fallbackID, modTime)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrCorruptSnapshot, path, err)
		}
		return p, nil
	case models.KindTask:
		var snap taskSnapshot
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrCorruptSnapshot, path, err)
		}
		t, err := snap.toTask(fallbackID, modTime)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrCorruptSnapshot, path, err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
}

// LoadAll reads every snapshot of kind, sorted by id. Unreadable files are
// logged and skipped. A missing directory yields no entities.
func (s *Store) LoadAll(kind models.Kind) ([]models.Entity, error) {
	if !Supports(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	dir := s.kindDir(kind)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory %s: %w", dir, err)
	}

	// YAML files are read before legacy JSON ones so that, as in Load, the
	// current format wins when both exist for an id.
	seen := make(map[string]bool)
	var out []models.Entity
	for _, want := range []string{ext, legacyExt} {
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != want {
				continue
			}
			e, err := s.readFile(kind, filepath.Join(dir, name))
			if err != nil {
				s.logger.Warn("skipping unreadable snapshot", "op", "load_all", "kind", kind, "file", name, "error", err)
				continue
			}
			if seen[e.EntityID()] {
				continue
			}
			seen[e.EntityID()] = true
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out, nil
}

// Exists reports whether a snapshot file for kind/id is present.
func (s *Store) Exists(kind models.Kind, id string) (bool, error) {
	for _, extension := range []string{ext, legacyExt} {
		path, err := s.path(kind, id, extension)
		if err != nil {
			return false, err
		}
		if _, err := os.Stat(path); err == nil {
			return true, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	return false, nil
}

// Remove deletes the snapshot of kind/id. A missing file is not an error.
func (s *Store) Remove(kind models.Kind, id string) error {
	var errs []error
	for _, extension := range []string{ext, legacyExt} {
		path, err := s.path(kind, id, extension)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to remove snapshot %s %s: %w", kind, id, err)
	}
	return nil
}
