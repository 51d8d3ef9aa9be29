package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/ctxlog"
	"github.com/vk/kiln/internal/solver"
)

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	if a.config.Command == CommandServe {
		return a.serve(ctx)
	}

	res, err := a.resolve(ctx)
	if err != nil {
		return err
	}

	switch a.config.Command {
	case CommandTree:
		if err := res.WriteTree(a.outW); err != nil {
			return fmt.Errorf("failed to write dependency tree: %w", err)
		}
		return res.Err()
	case CommandFetch:
		return a.fetch(ctx, res)
	default:
		return a.classpath(ctx, res)
	}
}

func (a *App) resolve(ctx context.Context) (*solver.Resolution, error) {
	res, err := a.solver.Resolve(ctx, a.project.Root)
	if err != nil {
		return nil, err
	}
	for _, c := range res.Conflicts {
		if !c.LoserNewer {
			continue
		}
		a.logger.Warn("A newer version lost mediation to a nearer one.",
			"artifact", c.Key,
			"selected", c.Winner.Version,
			"rejected", c.Loser.Version,
			"trail", c.Trail())
	}
	return res, nil
}

// classpath prints the artifact files of the requested scope. Unresolved
// dependencies make the classpath incomplete, so nothing is printed.
func (a *App) classpath(ctx context.Context, res *solver.Resolution) error {
	if err := res.Err(); err != nil {
		return err
	}
	paths, err := a.artifacts(ctx, res.Classpath(a.config.Scope))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.outW, strings.Join(paths, string(os.PathListSeparator)))
	return err
}

// fetch downloads the artifact of every resolved dependency, whatever its
// scope, and prints one "coordinate path" line per artifact.
func (a *App) fetch(ctx context.Context, res *solver.Resolution) error {
	var coords []coordinate.Coordinate
	for _, n := range res.Nodes {
		if n.Resolved() {
			coords = append(coords, n.Coordinate)
		}
	}
	paths, fetchErr := a.artifacts(ctx, coords)
	for i, c := range coords {
		if paths[i] != "" {
			fmt.Fprintf(a.outW, "%s %s\n", c.GAV(), paths[i])
		}
	}
	a.logger.Info("Fetched artifacts.", "count", len(coords))
	return errors.Join(res.Err(), fetchErr)
}

// artifacts materialises coords into the cache concurrently. The returned
// paths are in the order of coords; a failed entry is left empty and its
// error is joined into the result.
func (a *App) artifacts(ctx context.Context, coords []coordinate.Coordinate) ([]string, error) {
	paths := make([]string, len(coords))
	errs := make([]error, len(coords))

	var g errgroup.Group
	g.SetLimit(a.project.Workers)
	for i, c := range coords {
		g.Go(func() error {
			path, err := a.repo.Artifact(ctx, c)
			if err != nil {
				errs[i] = fmt.Errorf("failed to fetch %s: %w", c.GAV(), err)
				return nil
			}
			paths[i] = path
			return nil
		})
	}
	_ = g.Wait()
	return paths, errors.Join(errs...)
}
