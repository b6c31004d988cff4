package htpasswd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultPerm is the mode of a newly created htpasswd file. When the target
// already exists its mode is kept.
const DefaultPerm fs.FileMode = 0600

// File is a temporary file created by an FS.
type File interface {
	io.Writer
	Name() string
	Chmod(mode fs.FileMode) error
	Sync() error
	Close() error
}

// FS is the filesystem used to read and atomically replace htpasswd files.
type FS interface {
	// CreateTemp creates a new file in dir, see os.CreateTemp.
	CreateTemp(dir, pattern string) (File, error)

	// Rename atomically replaces newpath with oldpath.
	Rename(oldpath, newpath string) error

	// Remove deletes name.
	Remove(name string) error

	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)

	// SyncDir flushes directory metadata so a completed rename survives a crash.
	SyncDir(dir string) error
}

// OS is the FS backed by the operating system.
var OS FS = osFS{}

type osFS struct{}

func (osFS) CreateTemp(dir, pattern string) (File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (osFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }
func (osFS) Remove(name string) error { return os.Remove(name) }
func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (osFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// WriteFile renders s and atomically replaces the file at path.
//
// The data is written to a temporary file in the same directory, synced, and
// renamed over path. Readers of path see either the old or the new content,
// never a partial file. If an error is returned before the rename, path is
// left untouched and the temporary file is removed.
//
// Concurrent writers to the same path are not coordinated.
func WriteFile(path string, s *Store) error {
	return WriteFileFS(OS, path, s)
}

// WriteFileFS is like WriteFile but uses fsys.
func WriteFileFS(fsys FS, path string, s *Store) error {
	perm := DefaultPerm
	fi, err := fsys.Stat(path)
	switch {
	case err == nil:
		if !fi.Mode().IsRegular() {
			return &WriteError{Path: path, Err: errors.New("not a regular file")}
		}
		perm = fi.Mode().Perm()
	case !errors.Is(err, fs.ErrNotExist):
		return &WriteError{Path: path, Err: err}
	}

	if err := atomicWriteFile(fsys, path, Marshal(s), perm); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := fsys.SyncDir(filepath.Dir(path)); err != nil {
		return &WriteError{Path: path, Renamed: true, Err: err}
	}
	return nil
}

// atomicWriteFile writes data to a temp file and renames it to the target path.
func atomicWriteFile(fsys FS, path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := fsys.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// cleanup runs on every failure path; open reports whether tmp still
	// needs closing.
	cleanup := func(err error, open bool) error {
		if open {
			tmp.Close()
		}
		if rmErr := fsys.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return errors.Join(err, fmt.Errorf("remove temp file: %w", rmErr))
		}
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err, true)
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(err, true)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err, true)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err, false)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		return cleanup(err, false)
	}
	return nil
}

// ReadFile loads and parses the htpasswd file at path.
// A missing file yields an error matching both ErrNotFound and fs.ErrNotExist.
func ReadFile(path string) (*Store, error) {
	return ReadFileFS(OS, path)
}

// ReadFileFS is like ReadFile but uses fsys.
func ReadFileFS(fsys FS, path string) (*Store, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("htpasswd: read %s: %w", path, err)
	}
	s, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
