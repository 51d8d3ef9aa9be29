package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/ctxlog"
	"github.com/vk/kiln/internal/fsutil"
)

// solutionExt is the extension solution records are stored under.
const solutionExt = "solution.yaml"

// ErrNotAddressable is returned for coordinates that have no place in a
// repository layout, such as system coordinates.
var ErrNotAddressable = errors.New("coordinate is not repository-addressable")

// Cache is the local artifact cache. It is safe for concurrent use by any
// number of resolvers.
type Cache struct {
	root            string
	layout          Layout
	secondary       string
	secondaryLayout Layout
	logger          *slog.Logger
	metrics         *Metrics
	flight          singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithSecondary adds a read-only fallback root laid out by layout.
func WithSecondary(root string, layout Layout) Option {
	return func(c *Cache) {
		c.secondary = root
		c.secondaryLayout = layout
	}
}

// WithLogger sets the logger used to report copy and write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics records lookups and writes into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates a cache rooted at root.
func New(root string, layout Layout, opts ...Option) *Cache {
	c := &Cache{
		root:   root,
		layout: layout,
		logger: ctxlog.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the primary cache root.
func (c *Cache) Root() string {
	return c.root
}

// Path returns where coord's file with extension ext lives in the primary
// root, whether or not it exists. An empty ext means the coordinate's type.
// Coordinates whose layout path would leave the root are rejected with
// fsutil.ErrOutsideRoot.
func (c *Cache) Path(coord coordinate.Coordinate, ext string) (string, error) {
	if coord.IsSystem() {
		return coord.SystemPath, nil
	}
	return fsutil.Rooted(c.root, c.layout.Path(coord, ext))
}

// File returns the local path of coord's file with extension ext and
// whether a file exists there.
//
// A primary hit returns immediately without looking at the secondary root.
// On a primary miss with a secondary hit the file is copied into the primary
// root and the primary path is returned. If that copy fails the failure is
// logged and the secondary path is returned instead. On a miss everywhere the
// primary path is returned with false, ready for Put. A coordinate that cannot
// be placed inside the root is always a miss with an empty path.
func (c *Cache) File(coord coordinate.Coordinate, ext string) (string, bool) {
	if coord.IsSystem() {
		return coord.SystemPath, fsutil.Exists(coord.SystemPath)
	}

	primary, err := c.Path(coord, ext)
	if err != nil {
		c.logger.Warn("Refusing to look up a coordinate outside the cache root.", "coordinate", coord.String(), "error", err)
		c.metrics.lookup(resultMiss)
		return "", false
	}
	if fsutil.Exists(primary) {
		c.metrics.lookup(resultPrimaryHit)
		return primary, true
	}
	if c.secondary == "" {
		c.metrics.lookup(resultMiss)
		return primary, false
	}

	secondary, err := fsutil.Rooted(c.secondary, c.secondaryLayout.Path(coord, ext))
	if err != nil || !fsutil.Exists(secondary) {
		c.metrics.lookup(resultMiss)
		return primary, false
	}

	_, err, _ = c.flight.Do(primary, func() (interface{}, error) {
		if fsutil.Exists(primary) {
			return nil, nil
		}
		return nil, fsutil.CopyFileAtomic(secondary, primary)
	})
	c.metrics.write(err)
	if err != nil {
		c.logger.Warn("Failed to copy artifact into the primary cache, using the secondary copy.",
			"coordinate", coord.String(), "source", secondary, "target", primary, "error", err)
		c.metrics.lookup(resultSecondaryFallback)
		return secondary, true
	}

	c.logger.Debug("Copied artifact from the secondary cache.", "coordinate", coord.String(), "target", primary)
	c.metrics.lookup(resultSecondaryCopy)
	return primary, true
}

// Put stores data as coord's file with extension ext in the primary root and
// returns its path.
func (c *Cache) Put(coord coordinate.Coordinate, ext string, data []byte) (string, error) {
	if coord.IsSystem() {
		return "", fmt.Errorf("failed to store %s: %w", coord.SystemPath, ErrNotAddressable)
	}
	path, err := c.Path(coord, ext)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", coord.GAV(), err)
	}
	_, err, _ = c.flight.Do(path, func() (interface{}, error) {
		return nil, fsutil.WriteFileAtomic(path, data, 0o644)
	})
	c.metrics.write(err)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", coord.GAV(), err)
	}
	return path, nil
}

// Solution returns where the solved descriptor of coord is memoized. The
// boolean is false for coordinates that cannot be memoized.
func (c *Cache) Solution(coord coordinate.Coordinate) (string, bool) {
	if coord.IsSystem() || coord.GroupID == "" || coord.Version == "" {
		return "", false
	}
	key := coordinate.New(coord.GroupID, coord.ArtifactID, coord.Version)
	path, err := c.Path(key, solutionExt)
	if err != nil {
		return "", false
	}
	return path, true
}

// ReadSolution returns the memoized solution record of coord, if any.
func (c *Cache) ReadSolution(coord coordinate.Coordinate) ([]byte, bool) {
	path, ok := c.Solution(coord)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// WriteSolution memoizes a solution record for coord.
func (c *Cache) WriteSolution(coord coordinate.Coordinate, data []byte) error {
	path, ok := c.Solution(coord)
	if !ok {
		return fmt.Errorf("failed to store solution for %s: %w", coord.String(), ErrNotAddressable)
	}
	err := fsutil.WriteFileAtomic(path, data, 0o644)
	c.metrics.write(err)
	if err != nil {
		return fmt.Errorf("failed to store solution for %s: %w", coord.GAV(), err)
	}
	return nil
}
