// Package workspace manages the ~/.archstatus/ directory hierarchy.
//
// Directory layout:
//
//	~/.archstatus/<workspace>/
//	    <source>.yaml           # source config: scanner, location, metadata
//	    <source>/status.json    # latest v3 status document for the source
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/merge"
	"archstatus/internal/model"
)

const statusFile = "status.json"

// Workspace is a named directory of sources (~/.archstatus/<name>/).
type Workspace struct {
	Name string
	Dir  string
}

// Source configures how one repository is scanned and described.
type Source struct {
	Scanner    string               `yaml:"scanner"`
	Repository string               `yaml:"repository,omitempty"`
	Path       string               `yaml:"path,omitempty"`
	Metadata   merge.SourceMetadata `yaml:"metadata,omitempty"`
	Options    map[string]string    `yaml:"options,omitempty"`
}

// Location returns the local path when set, otherwise the repository URL.
func (s Source) Location() string {
	if s.Path != "" {
		return s.Path
	}
	return s.Repository
}

// Home returns the base ~/.archstatus directory.
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".archstatus"), nil
}

func checkName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return apperrors.Inputf("invalid %s name %q", kind, name)
	}
	return nil
}

func dirOf(name string) (string, error) {
	if err := checkName("workspace", name); err != nil {
		return "", err
	}
	base, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}

// Init creates ~/.archstatus/<name>/ and errors if it already exists.
func Init(name string) (*Workspace, error) {
	dir, err := dirOf(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, apperrors.Inputf("workspace %q already exists at %s", name, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Name: name, Dir: dir}, nil
}

// Open opens an existing workspace.
func Open(name string) (*Workspace, error) {
	dir, err := dirOf(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, apperrors.NotFound("workspace", name).
			WithContext("hint", fmt.Sprintf("run 'archstatus init %s' first", name))
	}
	return &Workspace{Name: name, Dir: dir}, nil
}

// List returns the names of all workspaces, sorted.
func List() ([]string, error) {
	base, err := Home()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archstatus dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes a workspace and everything in it.
func Remove(name string) error {
	dir, err := dirOf(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		return apperrors.NotFound("workspace", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

func (w *Workspace) sourcePath(name string) string {
	return filepath.Join(w.Dir, name+".yaml")
}

// StatusPath is where the status document of source name is stored.
func (w *Workspace) StatusPath(name string) string {
	return filepath.Join(w.Dir, name, statusFile)
}

// AddSource writes a source config. Errors if it already exists.
func (w *Workspace) AddSource(name string, src Source) error {
	if err := checkName("source", name); err != nil {
		return err
	}
	path := w.sourcePath(name)
	if _, err := os.Stat(path); err == nil {
		return apperrors.Inputf("source %q already exists in workspace %s", name, w.Name)
	}
	data, err := yaml.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal source config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write source config: %w", err)
	}
	return nil
}

// LoadSource reads a source config.
func (w *Workspace) LoadSource(name string) (*Source, error) {
	data, err := os.ReadFile(w.sourcePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("source", name)
		}
		return nil, fmt.Errorf("read source %q: %w", name, err)
	}
	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, apperrors.Config(fmt.Sprintf("parse source %q", name), err)
	}
	return &src, nil
}

// ListSources returns the source names of the workspace, sorted.
func (w *Workspace) ListSources() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// RemoveSource removes a source config and its stored status.
func (w *Workspace) RemoveSource(name string) error {
	path := w.sourcePath(name)
	if _, err := os.Stat(path); err != nil {
		return apperrors.NotFound("source", name)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove source config: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(w.Dir, name)); err != nil {
		return fmt.Errorf("remove source status: %w", err)
	}
	return nil
}

// WriteStatus stores doc as the latest status document of source name.
func (w *Workspace) WriteStatus(name string, doc *model.Document) error {
	return model.WriteDocument(doc, w.StatusPath(name))
}

// ReadStatus loads the latest status document of source name.
func (w *Workspace) ReadStatus(name string) (*model.Document, error) {
	path := w.StatusPath(name)
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NotFound("status document", name).
			WithContext("hint", fmt.Sprintf("run 'archstatus scan %s' first", w.Name))
	}
	return model.ReadDocument(path)
}

// Graphs converts every scanned source into a merge input. Sources that have
// not been scanned yet are returned in missing.
func (w *Workspace) Graphs() (graphs []merge.SourceGraph, missing []string, err error) {
	names, err := w.ListSources()
	if err != nil {
		return nil, nil, err
	}
	for _, name := range names {
		src, err := w.LoadSource(name)
		if err != nil {
			return nil, nil, err
		}
		doc, err := w.ReadStatus(name)
		if apperrors.IsType(err, apperrors.TypeNotFound) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		graphs = append(graphs, merge.FromDocument(name, doc, src.Metadata))
	}
	return graphs, missing, nil
}

// Snapshot copies the stored status documents into dst/<source>.status.json
// and writes note to dst/index.md. Errors if dst already exists.
func (w *Workspace) Snapshot(dst, note string) error {
	if _, err := os.Stat(dst); err == nil {
		return apperrors.Inputf("snapshot target %q already exists", dst)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	names, err := w.ListSources()
	if err != nil {
		return err
	}
	for _, name := range names {
		src := w.StatusPath(name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(dst, name+".status.json")); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dst, "index.md"), []byte(note), 0o644); err != nil {
		return fmt.Errorf("write index.md: %w", err)
	}
	return nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
