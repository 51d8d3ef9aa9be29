package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/ctxlog"
)

// Chain tries its repositories in order and returns the first success.
type Chain struct {
	repos   []Repository
	logger  *slog.Logger
	metrics *Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the logger used to trace failed attempts.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithMetrics records every attempt into m.
func WithMetrics(m *Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

// NewChain creates a chain over repos.
func NewChain(repos []Repository, opts ...ChainOption) *Chain {
	c := &Chain{
		repos:  repos,
		logger: ctxlog.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repositories returns the names of the chained repositories in order.
func (c *Chain) Repositories() []string {
	names := make([]string, 0, len(c.repos))
	for _, r := range c.repos {
		names = append(names, r.Name())
	}
	return names
}

// Fetch implements Fetcher. When every repository fails the result is a
// DownloadError listing each failure; its status is 404 only if every
// repository reported the file as missing.
func (c *Chain) Fetch(ctx context.Context, coord coordinate.Coordinate, ext string) ([]byte, error) {
	path := Path(coord, ext)
	if coord.IsSystem() {
		return nil, &DownloadError{Repository: "chain", Path: coord.SystemPath, Status: http.StatusBadRequest, Message: "system dependencies cannot be downloaded"}
	}
	if len(c.repos) == 0 {
		return nil, &DownloadError{Repository: "chain", Path: path, Status: http.StatusNotFound, Message: "no repositories configured"}
	}

	var failures []string
	allNotFound := true
	for _, r := range c.repos {
		started := time.Now()
		data, err := r.Fetch(ctx, coord, ext)
		c.metrics.observe(r.Name(), started, err)
		if err == nil {
			c.logger.Debug("Fetched file.", "repository", r.Name(), "path", path, "bytes", len(data))
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Debug("Repository could not serve file.", "repository", r.Name(), "path", path, "error", err)
		if !IsNotFound(err) {
			allNotFound = false
		}
		failures = append(failures, fmt.Sprintf("%s: %v", r.Name(), err))
	}

	status := http.StatusBadGateway
	if allNotFound {
		status = http.StatusNotFound
	}
	return nil, &DownloadError{
		Repository: strings.Join(c.Repositories(), ", "),
		Path:       path,
		Status:     status,
		Message:    strings.Join(failures, "; "),
	}
}
