// Package assets bundles the files kludd serves under its internal prefix
package assets

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed all:_kludd
var embedded embed.FS

// Root is where the embedded assets are mounted when no assets directory is
// configured. It doesn't exist on disk.
const Root = "/$kludd"

// FS returns the assets. An empty dir selects the embedded copy.
func FS(dir string) fs.FS {
	if dir == "" {
		return embedded
	}
	return os.DirFS(dir)
}
