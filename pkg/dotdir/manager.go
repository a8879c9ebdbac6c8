// Package dotdir manages the .callctx/ and ~/.callctx directories, which hold
// config.toml and the default SQLite databases.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the callctx directory.
	dirName = ".callctx"

	// CacheDB is the default SQLite file for the embedding cache.
	CacheDB = "cache.db"

	// VectorsDB is the default SQLite file for the vector store.
	VectorsDB = "vectors.db"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .callctx/ directory, creating it if
// needed. Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.callctx/ dir
//  3. Home ~/.callctx/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating callctx directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// SQLiteTarget returns a sqlite:// DSN for file inside the resolved
// directory.
func (m *Manager) SQLiteTarget(overrideDir, file string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return "sqlite://" + filepath.Join(dir, file), nil
}

// localDirExists checks whether a .callctx/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
