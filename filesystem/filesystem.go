// Package filesystem routes every file access through afero so tests can run on memory.
package filesystem

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

var backend = afero.Afero{Fs: afero.NewOsFs()}

func API() afero.Afero {
	return backend
}

func SetOsFs() {
	backend = afero.Afero{Fs: afero.NewOsFs()}
}

// SetMemMapFs switches to a fresh in-memory filesystem. Tests call it from init.
func SetMemMapFs() {
	backend = afero.Afero{Fs: afero.NewMemMapFs()}
}

// WriteAtomic replaces path with data through a sibling temp file, creating
// parent directories as needed. Readers see the old content or the new one.
func WriteAtomic(path string, data []byte) error {
	if err := backend.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := backend.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	if err := backend.Rename(tmp, path); err != nil {
		_ = backend.Remove(tmp)
		return err
	}

	return nil
}
