// SPDX-License-Identifier: MPL-2.0

package fabfile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fabgo/fab/pkg/cueutil"
)

// DefaultFilename is looked up in the working directory when no path is given.
const DefaultFilename = "fabfile.cue"

var (
	//go:embed fabfile_schema.cue
	fabfileSchema []byte

	// ErrNotFound is the sentinel error wrapped by NotFoundError.
	ErrNotFound = errors.New("fabfile not found")
)

type (
	// Fabfile is a parsed fabfile.cue.
	Fabfile struct {
		Tasks []Task `json:"tasks"`
		// FilePath is where the fabfile was read from.
		FilePath string `json:"-"`
	}

	// Task declares one named task.
	Task struct {
		Name        string            `json:"name"`
		Description string            `json:"description,omitempty"`
		Args        []Arg             `json:"args,omitempty"`
		Pre         []string          `json:"pre,omitempty"`
		Post        []string          `json:"post,omitempty"`
		Local       bool              `json:"local,omitempty"`
		Env         map[string]string `json:"env,omitempty"`
		Cmds        []Cmd             `json:"cmds"`
	}

	// Arg declares a task argument. A nil Default makes it required.
	Arg struct {
		Name    string  `json:"name"`
		Default *string `json:"default,omitempty"`
	}

	// Cmd is one command line of a task.
	Cmd struct {
		Run   string `json:"run"`
		Sudo  bool   `json:"sudo,omitempty"`
		Local bool   `json:"local,omitempty"`
		Warn  bool   `json:"warn,omitempty"`
		Hide  bool   `json:"hide,omitempty"`
	}

	// NotFoundError is returned when no fabfile exists at the looked-up path.
	NotFoundError struct {
		Path string
	}
)

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no fabfile at %s", e.Path)
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Find returns the fabfile path to load: explicit when set, otherwise
// DefaultFilename in dir. The file must exist.
func Find(explicit, dir string) (string, error) {
	path := explicit
	if path == "" {
		path = filepath.Join(dir, DefaultFilename)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &NotFoundError{Path: path}
	}
	return path, nil
}

// Parse reads and parses the fabfile at path.
func Parse(path string) (*Fabfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fabfile at %s: %w", path, err)
	}
	return ParseBytes(data, path)
}

// ParseBytes parses fabfile content. path is used in error messages.
func ParseBytes(data []byte, path string) (*Fabfile, error) {
	result, err := cueutil.ParseAndDecode[Fabfile](fabfileSchema, data, "#Fabfile", cueutil.WithFilename(path))
	if err != nil {
		return nil, err
	}

	ff := result.Value
	ff.FilePath = path
	if errs := ff.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return ff, nil
}

// Task returns the task called name.
func (f *Fabfile) Task(name string) (Task, bool) {
	for _, t := range f.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}
