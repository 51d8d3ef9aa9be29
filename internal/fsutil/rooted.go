package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrOutsideRoot is returned when a relative path would resolve outside the
// directory it is meant to live in.
var ErrOutsideRoot = errors.New("path escapes its root")

// Rooted joins the slash-separated rel onto root and verifies the result stays
// inside root. The target does not need to exist.
func Rooted(root, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideRoot)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideRoot)
	}
	joined := filepath.Join(root, clean)
	if !hasPathPrefix(joined, root) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideRoot)
	}
	return joined, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	if root == "." {
		return !filepath.IsAbs(path) && path != ".." && !strings.HasPrefix(path, ".."+string(os.PathSeparator))
	}
	if !strings.HasSuffix(root, string(os.PathSeparator)) {
		root += string(os.PathSeparator)
	}
	return strings.HasPrefix(path, root)
}
