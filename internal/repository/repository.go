// Package repository combines the local cache with the remote repositories:
// files are served from the cache when present and downloaded into it
// otherwise. Descriptors are solved once, memoized in memory and persisted as
// solution records next to the artifacts.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/vk/kiln/internal/cache"
	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/ctxlog"
	"github.com/vk/kiln/internal/pom"
	"github.com/vk/kiln/internal/remote"
)

const (
	defaultMemoSize     = 4096
	defaultFetchTimeout = time.Minute
	maxParentDepth      = 16
)

// Repository resolves coordinates to local files and solved descriptors. It
// is safe for concurrent use.
type Repository struct {
	cache    *cache.Cache
	remote   remote.Fetcher
	logger   *slog.Logger
	metrics  *Metrics
	offline  bool
	memoSize int
	memo     *lru.Cache[string, *pom.Descriptor]
	flight   singleflight.Group

	// fetchTimeout bounds a shared descriptor fetch, which runs detached
	// from the callers waiting on it.
	fetchTimeout time.Duration
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithMetrics records descriptor lookups into m.
func WithMetrics(m *Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// WithOffline disables remote fetches; only cached files are served.
func WithOffline(offline bool) Option {
	return func(r *Repository) {
		r.offline = offline
	}
}

// WithMemoSize bounds the number of solved descriptors kept in memory.
func WithMemoSize(n int) Option {
	return func(r *Repository) {
		r.memoSize = n
	}
}

// WithFetchTimeout bounds the shared download of one descriptor chain. Zero
// disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Repository) {
		r.fetchTimeout = d
	}
}

// New creates a repository over c that downloads misses with fetcher.
func New(c *cache.Cache, fetcher remote.Fetcher, opts ...Option) (*Repository, error) {
	r := &Repository{
		cache:    c,
		remote:   fetcher,
		logger:   ctxlog.Discard(),
		memoSize: defaultMemoSize,

		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	memo, err := lru.New[string, *pom.Descriptor](r.memoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor memo: %w", err)
	}
	r.memo = memo
	return r, nil
}

// Bytes returns the contents of coord's file with extension ext. A cache miss
// is downloaded and stored; when storing fails the downloaded bytes are
// still returned.
func (r *Repository) Bytes(ctx context.Context, coord coordinate.Coordinate, ext string) ([]byte, error) {
	if path, ok := r.cache.File(coord, ext); ok {
		return os.ReadFile(path)
	}
	data, err := r.download(ctx, coord, ext)
	if err != nil {
		return nil, err
	}
	if _, err := r.cache.Put(coord, ext, data); err != nil {
		r.logger.Warn("Failed to store downloaded file, serving it uncached.", "coordinate", coord.String(), "error", err)
	}
	return data, nil
}

// Artifact returns the local path of coord's artifact, downloading it into
// the cache on a miss.
func (r *Repository) Artifact(ctx context.Context, coord coordinate.Coordinate) (string, error) {
	if path, ok := r.cache.File(coord, ""); ok {
		return path, nil
	}
	if coord.IsSystem() {
		return "", fmt.Errorf("system dependency %s does not exist", coord.SystemPath)
	}
	data, err := r.download(ctx, coord, "")
	if err != nil {
		return "", err
	}
	return r.cache.Put(coord, "", data)
}

func (r *Repository) download(ctx context.Context, coord coordinate.Coordinate, ext string) ([]byte, error) {
	if coord.IsSystem() {
		return nil, &remote.DownloadError{Repository: "local", Path: coord.SystemPath, Status: http.StatusNotFound}
	}
	if err := coord.Validate(); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", coord.String(), err)
	}
	if r.offline {
		return nil, &remote.DownloadError{Repository: "offline", Path: remote.Path(coord, ext), Status: http.StatusNotFound, Message: "not in the local cache"}
	}
	return r.remote.Fetch(ctx, coord, ext)
}

// Descriptor returns the solved descriptor of coord: its parent chain merged,
// properties substituted and managed versions applied. The result is shared
// and must not be modified.
func (r *Repository) Descriptor(ctx context.Context, coord coordinate.Coordinate) (*pom.Descriptor, error) {
	if coord.IsSystem() {
		return nil, fmt.Errorf("system dependency %s has no descriptor", coord.SystemPath)
	}
	key := coord.GAV()
	if d, ok := r.memo.Get(key); ok {
		r.metrics.descriptor(sourceMemory)
		return d, nil
	}

	// Callers of one key share a single solve that ignores their
	// cancellation. Each caller stops waiting when its own ctx ends.
	ch := r.flight.DoChan(key, func() (interface{}, error) {
		if d, ok := r.memo.Get(key); ok {
			r.metrics.descriptor(sourceMemory)
			return d, nil
		}
		if d, ok := r.readSolution(coord); ok {
			r.metrics.descriptor(sourceRecord)
			r.memo.Add(key, d)
			return d, nil
		}

		fctx := context.WithoutCancel(ctx)
		if r.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, r.fetchTimeout)
			defer cancel()
		}
		chain, err := r.parentChain(fctx, coord)
		if err != nil {
			return nil, err
		}
		d := pom.Solve(chain)
		r.metrics.descriptor(sourceSolved)
		r.writeSolution(coord, d)
		r.memo.Add(key, d)
		return d, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*pom.Descriptor), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("descriptor of %s: %w", key, ctx.Err())
	}
}

func (r *Repository) readSolution(coord coordinate.Coordinate) (*pom.Descriptor, bool) {
	data, ok := r.cache.ReadSolution(coord)
	if !ok {
		return nil, false
	}
	d, err := pom.UnmarshalRecord(data)
	if err != nil {
		r.logger.Warn("Ignoring unreadable solution record.", "coordinate", coord.GAV(), "error", err)
		return nil, false
	}
	return d, true
}

func (r *Repository) writeSolution(coord coordinate.Coordinate, d *pom.Descriptor) {
	data, err := pom.MarshalRecord(d)
	if err == nil {
		err = r.cache.WriteSolution(coord, data)
	}
	if err != nil {
		r.logger.Warn("Failed to persist solution record.", "coordinate", coord.GAV(), "error", err)
	}
}

// parentChain loads coord's descriptor followed by each of its ancestors.
func (r *Repository) parentChain(ctx context.Context, coord coordinate.Coordinate) ([]*pom.Descriptor, error) {
	var chain []*pom.Descriptor
	seen := make(map[string]bool)
	current := coordinate.New(coord.GroupID, coord.ArtifactID, coord.Version)

	for {
		gav := current.GAV()
		if seen[gav] {
			return nil, fmt.Errorf("descriptor of %s: %w at %s", coord.GAV(), pom.ErrParentCycle, gav)
		}
		if len(chain) >= maxParentDepth {
			return nil, fmt.Errorf("descriptor of %s: parent chain is deeper than %d", coord.GAV(), maxParentDepth)
		}
		seen[gav] = true

		data, err := r.Bytes(ctx, current, "pom")
		if err != nil {
			if len(chain) > 0 {
				return nil, fmt.Errorf("parent %s of %s: %w", gav, coord.GAV(), err)
			}
			return nil, err
		}
		d, err := pom.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse descriptor of %s: %w", gav, err)
		}
		chain = append(chain, d)

		if d.Parent == nil {
			return chain, nil
		}
		current = coordinate.New(d.Parent.GroupID, d.Parent.ArtifactID, d.Parent.Version)
		r.logger.Debug("Following parent descriptor.", "coordinate", coord.GAV(), "parent", current.GAV())
	}
}

// IsNotFound reports whether err means a file is missing from every
// repository, as opposed to a transport or parse failure.
func IsNotFound(err error) bool {
	return remote.IsNotFound(err) || errors.Is(err, os.ErrNotExist)
}
