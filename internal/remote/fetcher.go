// Package remote downloads artifacts and descriptors from remote
// repositories. Every repository is addressed with the Maven2 layout.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vk/kiln/internal/coordinate"
)

// ErrNotFound matches download failures where the repository answered that
// the file does not exist.
var ErrNotFound = errors.New("artifact not found")

var layout = coordinate.MustCompilePattern(coordinate.Maven2Pattern)

// Fetcher returns the bytes of coord's file with extension ext. An empty ext
// means the coordinate's type.
type Fetcher interface {
	Fetch(ctx context.Context, coord coordinate.Coordinate, ext string) ([]byte, error)
}

// Repository is a named Fetcher.
type Repository interface {
	Fetcher
	Name() string
}

// DownloadError reports that a file could not be obtained. Status follows
// HTTP status codes even for repositories that are not HTTP based.
type DownloadError struct {
	Repository string
	Path       string
	Status     int
	Message    string
	Err        error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("failed to download %s from %s: %d", e.Path, e.Repository, e.Status)
	if e.Message != "" {
		msg += " " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match 404 failures.
func (e *DownloadError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// IsNotFound reports whether err means the file does not exist remotely.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Path returns the repository-relative path of coord's file with extension
// ext.
func Path(coord coordinate.Coordinate, ext string) string {
	return layout.Expand(coord, ext, true)
}
