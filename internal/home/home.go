package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the tilebook home directory.
	DefaultDirName = ".tilebook"

	// StagingDirName is the subdirectory for page images awaiting assembly
	// into a document.
	StagingDirName = "staging"

	// ExportsDirName is the default destination for finished documents.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the tilebook home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.tilebook).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// StagingPath returns the root of all staging directories.
func (d *Dir) StagingPath() string {
	return filepath.Join(d.path, StagingDirName)
}

// ExportsPath returns the default output directory.
func (d *Dir) ExportsPath() string {
	return filepath.Join(d.path, ExportsDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.StagingPath(), d.ExportsPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// StagingDir returns the staging directory of one download run.
// runID keeps concurrent or repeated runs of the same document apart.
func (d *Dir) StagingDir(documentID, runID string) string {
	return filepath.Join(d.StagingPath(), fmt.Sprintf("%s-%s", documentID, runID))
}

// EnsureStagingDir creates the staging directory of one download run.
func (d *Dir) EnsureStagingDir(documentID, runID string) error {
	return os.MkdirAll(d.StagingDir(documentID, runID), 0o755)
}

// StagedPagePath returns the path of a staged page image.
// seq is the 1-indexed position in the document; label is the page token.
func (d *Dir) StagedPagePath(documentID, runID string, seq int, label, ext string) string {
	return filepath.Join(d.StagingDir(documentID, runID), fmt.Sprintf("page_%04d_%s.%s", seq, label, ext))
}
