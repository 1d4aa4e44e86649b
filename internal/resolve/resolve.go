// Package resolve translates request URLs into filesystem locations. Every
// function here is pure: nothing touches the filesystem.
package resolve

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/matthewmueller/kludd/internal/filetype"
)

// Kind classifies what a request URL points at
type Kind uint8

const (
	File Kind = iota + 1
	DirectoryIndexCandidate
	Directory
)

// Target is the resolved location of a single request. ContentType is only
// set for files and is empty when the extension is unsupported.
type Target struct {
	Kind        Kind
	Path        string
	ContentType string
}

// Resolver joins request paths onto a base directory. Paths containing the
// internal prefix resolve against InternalRoot instead of Root.
type Resolver struct {
	Root           string
	InternalRoot   string
	InternalPrefix string
}

// Resolve classifies the url as either a file or a directory whose index
// file should be probed first.
func (r *Resolver) Resolve(u string) Target {
	if HasFileExtension(u) {
		fpath := r.FilesystemPath(u)
		return Target{
			Kind:        File,
			Path:        fpath,
			ContentType: filetype.ForPath(fpath),
		}
	}
	return Target{
		Kind: DirectoryIndexCandidate,
		Path: r.IndexCandidatePath(u),
	}
}

// Directory returns the directory target for the url
func (r *Resolver) Directory(u string) Target {
	return Target{
		Kind: Directory,
		Path: r.FilesystemPath(u),
	}
}

// FilesystemPath joins the url's path onto the base directory. Dot-dot
// segments are cleaned by the join, so the result may land outside of the
// base. Use Escapes to check.
func (r *Resolver) FilesystemPath(u string) string {
	return filepath.Join(r.base(u), filepath.FromSlash(Pathname(u)))
}

// IndexCandidatePath is FilesystemPath with index.html appended
func (r *Resolver) IndexCandidatePath(u string) string {
	return filepath.Join(r.base(u), filepath.FromSlash(Pathname(u)), "index.html")
}

// Escapes reports whether the url resolves to a location outside of its
// base directory.
func (r *Resolver) Escapes(u string) bool {
	base := r.base(u)
	rel, err := filepath.Rel(base, r.FilesystemPath(u))
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Internal reports whether the url points into the internal assets
func (r *Resolver) Internal(u string) bool {
	return r.InternalPrefix != "" && strings.Contains(Pathname(u), r.InternalPrefix)
}

func (r *Resolver) base(u string) string {
	if r.Internal(u) {
		return r.InternalRoot
	}
	return r.Root
}

// IndexRedirectURL appends index.html to the url's path, adding a separator
// only when the path doesn't already end in one.
func IndexRedirectURL(u string) string {
	p := Pathname(u)
	if strings.HasSuffix(p, "/") {
		return p + "index.html"
	}
	return p + "/index.html"
}

// HasFileExtension reports whether the last segment of the url's path has an
// extension. The query string is ignored.
func HasFileExtension(u string) bool {
	return Extension(u) != ""
}

// IsSupportedFileType reports whether the url has an extension that kludd
// knows a content type for.
func IsSupportedFileType(u string) bool {
	return HasFileExtension(u) && filetype.Supported(Extension(u))
}

// Extension returns the extension of the url's last path segment,
// including the dot. Leading dots of a segment don't start an extension, so
// "/.env" has none.
func Extension(u string) string {
	base := path.Base(Pathname(u))
	trimmed := strings.TrimLeft(base, ".")
	if trimmed == "" {
		return ""
	}
	return path.Ext(trimmed)
}

// Pathname returns the decoded path component of the url. The query string
// and fragment are dropped. Urls are request targets, so a leading "//" is
// part of the path rather than an authority.
func Pathname(u string) string {
	u, _, _ = strings.Cut(u, "#")
	parsed, err := url.ParseRequestURI(u)
	if err == nil {
		if parsed.Path == "" {
			return "/"
		}
		return parsed.Path
	}
	// Fall back to the raw path for urls net/url rejects
	p, _, _ := strings.Cut(u, "?")
	if p == "" {
		return "/"
	}
	return p
}
