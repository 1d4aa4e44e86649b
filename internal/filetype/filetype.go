// Package filetype maps file extensions to the content types kludd is
// willing to serve. Anything not in the table is unsupported.
package filetype

import "path"

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".js":   "text/javascript",
	".css":  "text/css",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
}

// Supported reports whether the extension is in the table
func Supported(ext string) bool {
	_, ok := contentTypes[ext]
	return ok
}

// ForPath returns the content type of a file path, or "" when the
// extension is unsupported.
func ForPath(p string) string {
	return contentTypes[path.Ext(p)]
}
