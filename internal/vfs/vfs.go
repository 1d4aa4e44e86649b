// Package vfs is the filesystem seam the responders read through. Paths are
// host filesystem paths, not io/fs paths.
package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS is the set of filesystem operations kludd needs to serve a request
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// OS reads from the host filesystem
func OS() FS {
	return osFS{}
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (osFS) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) }
func (osFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

// Mount serves paths under root from fsys and everything else from base
func Mount(base FS, root string, fsys fs.FS) FS {
	return &mountFS{base, filepath.Clean(root), fsys}
}

type mountFS struct {
	base FS
	root string
	fsys fs.FS
}

var _ FS = (*mountFS)(nil)

// rel returns the io/fs path of name within the mount
func (m *mountFS) rel(name string) (string, bool) {
	name = filepath.Clean(name)
	if name == m.root {
		return ".", true
	}
	rest, ok := strings.CutPrefix(name, m.root+string(filepath.Separator))
	if !ok {
		return "", false
	}
	return filepath.ToSlash(rest), true
}

func (m *mountFS) Stat(name string) (fs.FileInfo, error) {
	if rel, ok := m.rel(name); ok {
		return fs.Stat(m.fsys, rel)
	}
	return m.base.Stat(name)
}

func (m *mountFS) ReadFile(name string) ([]byte, error) {
	if rel, ok := m.rel(name); ok {
		return fs.ReadFile(m.fsys, rel)
	}
	return m.base.ReadFile(name)
}

func (m *mountFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if rel, ok := m.rel(name); ok {
		return fs.ReadDir(m.fsys, rel)
	}
	return m.base.ReadDir(name)
}
