package respond

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrNotFound   = errors.New("respond: not found")
	ErrPermission = errors.New("respond: permission denied")
	ErrIO         = errors.New("respond: i/o error")
)

// classify tags a filesystem error with its kind. All kinds are answered
// with a 404, but the kind survives for logging.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
