package kludd

import (
	"fmt"
	"net/http"

	"github.com/matthewmueller/kludd/internal/resolve"
	"github.com/matthewmueller/kludd/internal/respond"
)

// dispatch routes a request to exactly one responder. Urls with an extension
// are files, everything else is a directory that may have an index.html.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) respond.Outcome {
	u := r.URL.RequestURI()
	if !s.config.AllowEscape && s.resolver.Escapes(u) {
		return respond.NotFound(w, fmt.Errorf("%w: %s resolves outside of %s", respond.ErrNotFound, u, s.root))
	}
	target := s.resolver.Resolve(u)
	switch target.Kind {
	case resolve.File:
		if !resolve.IsSupportedFileType(u) {
			return respond.NotFound(w, fmt.Errorf("%w: unsupported file type %q", respond.ErrNotFound, resolve.Extension(u)))
		}
		return s.responder.File(w, target.Path, target.ContentType)
	case resolve.DirectoryIndexCandidate:
		if info, err := s.fsys.Stat(target.Path); err == nil && info.Mode().IsRegular() {
			return respond.Redirect(w, resolve.IndexRedirectURL(u))
		}
	}
	dir := s.resolver.Directory(u)
	return s.responder.Directory(w, resolve.Pathname(u), dir.Path)
}
