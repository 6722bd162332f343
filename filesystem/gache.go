package filesystem

import (
	"io"
	"os"
)

// GacheFs is the gache.Options.FileSystem of every on-disk cache: the
// metadata catalogue, version check, history and preferences all persist
// through the active backend with it.
type GacheFs struct{}

func (GacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return backend.OpenFile(name, flag, perm)
}

func (GacheFs) MkdirAll(path string, perm os.FileMode) error {
	return backend.MkdirAll(path, perm)
}
