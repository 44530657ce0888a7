// Package dotdir locates the .devlens/ directory that holds config.toml for
// the gateway and the CLI.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the devlens directory.
	DirName = ".devlens"

	// ConfigFileName is the config file kept in the directory.
	ConfigFileName = "config.toml"

	// HomeEnv names a directory to use instead of ./.devlens or ~/.devlens.
	HomeEnv = "DEVLENS_HOME"
)

// Source tells how a directory was selected.
type Source string

const (
	SourceFlag  Source = "flag"
	SourceEnv   Source = "env"
	SourceLocal Source = "local"
	SourceHome  Source = "home"
)

// Dir is a resolved devlens directory.
type Dir struct {
	Path   string
	Source Source
}

// ConfigFile returns the path of config.toml inside d.
func (d Dir) ConfigFile() string {
	return filepath.Join(d.Path, ConfigFileName)
}

type Manager struct {
	getenv  func(string) string
	getwd   func() (string, error)
	homeDir func() (string, error)
}

func NewManager() *Manager {
	return &Manager{
		getenv:  os.Getenv,
		getwd:   os.Getwd,
		homeDir: os.UserHomeDir,
	}
}

// Resolve returns the devlens directory, creating it if missing.
// Order of precedence is as follows:
//  1. Provided override (--config-dir)
//  2. $DEVLENS_HOME
//  3. Local ./.devlens/ dir, only if it already exists
//  4. Home ~/.devlens/ dir
//
// The directory is private to the user since config.toml may hold a token.
func (m *Manager) Resolve(override string) (Dir, error) {
	d, err := m.locate(override)
	if err != nil {
		return Dir{}, err
	}

	if err := os.MkdirAll(d.Path, 0o700); err != nil {
		return Dir{}, fmt.Errorf("creating devlens directory %s: %w", d.Path, err)
	}

	abs, err := filepath.Abs(d.Path)
	if err != nil {
		return Dir{}, err
	}
	d.Path = abs
	return d, nil
}

// Target returns the absolute path of the resolved devlens directory.
func (m *Manager) Target(override string) (string, error) {
	d, err := m.Resolve(override)
	return d.Path, err
}

func (m *Manager) locate(override string) (Dir, error) {
	if override != "" {
		return Dir{Path: override, Source: SourceFlag}, nil
	}
	if env := m.getenv(HomeEnv); env != "" {
		return Dir{Path: env, Source: SourceEnv}, nil
	}

	cwd, err := m.getwd()
	if err != nil {
		return Dir{}, fmt.Errorf("getting current directory: %w", err)
	}
	if info, err := os.Stat(filepath.Join(cwd, DirName)); err == nil && info.IsDir() {
		return Dir{Path: filepath.Join(cwd, DirName), Source: SourceLocal}, nil
	}

	home, err := m.homeDir()
	if err != nil {
		return Dir{}, fmt.Errorf("getting home directory: %w", err)
	}
	return Dir{Path: filepath.Join(home, DirName), Source: SourceHome}, nil
}
