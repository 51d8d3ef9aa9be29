package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vk/kiln/internal/cache"
	"github.com/vk/kiln/internal/config"
	"github.com/vk/kiln/internal/ctxlog"
	"github.com/vk/kiln/internal/remote"
	"github.com/vk/kiln/internal/repository"
	"github.com/vk/kiln/internal/solver"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	project  *config.Project
	registry *prometheus.Registry
	cache    *cache.Cache
	repo     *repository.Repository
	solver   *solver.Solver
	closers  []io.Closer
}

// NewApp is the constructor for the main application. Command output goes to
// outW and logs to logW. The project configuration is loaded and every
// component is wired, but nothing is fetched until Run.
func NewApp(ctx context.Context, outW, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	project, err := config.Load(ctx, cfg.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Workers > 0 {
		project.Workers = cfg.Workers
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	cacheOpts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithMetrics(cache.NewMetrics(reg)),
	}
	if project.SecondaryRoot != "" {
		cacheOpts = append(cacheOpts, cache.WithSecondary(project.SecondaryRoot, project.SecondaryLayout))
	}
	c := cache.New(project.CacheRoot, project.CacheLayout, cacheOpts...)
	logger.Debug("Cache configured.", "root", project.CacheRoot, "layout", project.CacheLayout.Name, "secondary", project.SecondaryRoot)

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		project:  project,
		registry: reg,
		cache:    c,
	}

	repos, err := a.repositories()
	if err != nil {
		a.Close()
		return nil, err
	}
	chain := remote.NewChain(repos,
		remote.WithLogger(logger),
		remote.WithMetrics(remote.NewMetrics(reg)))
	logger.Debug("Remote repositories configured.", "repositories", chain.Repositories())

	a.repo, err = repository.New(c, chain,
		repository.WithLogger(logger),
		repository.WithMetrics(repository.NewMetrics(reg)),
		repository.WithOffline(project.Offline),
		repository.WithFetchTimeout(project.FetchTimeout))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.solver = solver.New(a.repo,
		solver.WithLogger(logger),
		solver.WithWorkers(project.Workers),
		solver.WithFetchTimeout(project.FetchTimeout))

	return a, nil
}

func (a *App) repositories() ([]remote.Repository, error) {
	repos := make([]remote.Repository, 0, len(a.project.Repositories))
	for _, r := range a.project.Repositories {
		if r.S3 != nil {
			s3, err := remote.NewS3Repository(r.Name, *r.S3)
			if err != nil {
				return nil, err
			}
			repos = append(repos, s3)
			continue
		}
		h := remote.NewHTTPRepository(r.Name, r.URL, a.logger)
		a.closers = append(a.closers, h)
		repos = append(repos, h)
	}
	return repos, nil
}

// Close releases the HTTP clients.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
