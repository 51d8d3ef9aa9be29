// Package solver resolves a root descriptor's dependency graph into one
// version per groupId:artifactId and the classpaths built from it.
//
// The graph is expanded breadth first, one ring at a time. All descriptors of
// a ring are fetched concurrently before any mediation decision for the next
// ring is made, so the nearest occurrence of an artifact always wins and ties
// go to whichever was discovered first: parents in ring order, then each
// parent's dependencies in declaration order.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/ctxlog"
	"github.com/vk/kiln/internal/depgraph"
	"github.com/vk/kiln/internal/pom"
	"github.com/vk/kiln/internal/scope"
	"github.com/vk/kiln/internal/version"
)

// ErrNoVersion is the failure recorded for a dependency that declares no
// version and has none managed.
var ErrNoVersion = errors.New("no version declared or managed")

const (
	defaultWorkers      = 8
	defaultFetchTimeout = time.Minute
)

// DescriptorSource supplies solved descriptors.
type DescriptorSource interface {
	Descriptor(ctx context.Context, coord coordinate.Coordinate) (*pom.Descriptor, error)
}

// Solver resolves dependency graphs. A Solver holds no per-resolution state
// and may be used for concurrent Resolve calls.
type Solver struct {
	source       DescriptorSource
	logger       *slog.Logger
	workers      int
	fetchTimeout time.Duration
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) {
		s.logger = logger
	}
}

// WithWorkers bounds the number of concurrent descriptor fetches.
func WithWorkers(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithFetchTimeout bounds each descriptor fetch. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Solver) {
		s.fetchTimeout = d
	}
}

// New creates a solver reading descriptors from source.
func New(source DescriptorSource, opts ...Option) *Solver {
	s := &Solver{
		source:       source,
		logger:       ctxlog.Discard(),
		workers:      defaultWorkers,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	coord  coordinate.Coordinate
	parent *Node
}

// state is the bookkeeping of a single Resolve call.
type state struct {
	root       *pom.Descriptor
	resolution *Resolution
}

// Resolve walks root's dependency graph. Failing to obtain a descriptor does
// not fail the call: the dependency is reported in Resolution.Unresolved and
// its siblings are resolved as usual. An error is returned only for an
// invalid root or when ctx ends.
func (s *Solver) Resolve(ctx context.Context, root *pom.Descriptor) (*Resolution, error) {
	if root == nil {
		return nil, errors.New("resolve: root descriptor is nil")
	}
	started := time.Now()

	rootKey := root.Coordinate.Key()
	st := &state{
		root: root,
		resolution: &Resolution{
			Root:  root.Coordinate,
			Graph: depgraph.New(),
			byKey: make(map[string]*Node),
		},
	}
	st.resolution.Graph.AddNode(rootKey)

	var frontier []candidate
	for _, dep := range root.Dependencies {
		if dep.Scope == scope.None {
			dep.Scope = scope.Compile
		}
		if dep.Key() == rootKey {
			s.logger.Debug("Skipping dependency on the project itself.", "dependency", dep.String())
			continue
		}
		frontier = append(frontier, candidate{coord: dep})
	}

	for ring := 0; len(frontier) > 0; ring++ {
		admitted := st.admit(frontier, ring)
		s.fetch(ctx, admitted)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root.Coordinate.GAV(), err)
		}
		frontier = s.expand(st, admitted, ring)
	}

	res := st.resolution
	s.logger.Info("Resolved dependencies.",
		"root", root.Coordinate.GAV(),
		"artifacts", len(res.Nodes),
		"unresolved", len(res.Unresolved),
		"conflicts", len(res.Conflicts),
		"duration", time.Since(started))
	return res, nil
}

// admit runs mediation for one ring. Candidates arrive in discovery order;
// the first one seen for a key wins unless a nearer ring already took it.
func (st *state) admit(frontier []candidate, ring int) []*Node {
	res := st.resolution
	var admitted []*Node
	for _, cand := range frontier {
		key := cand.coord.Key()
		if winner, ok := res.byKey[key]; ok {
			st.conflict(winner, cand)
			continue
		}

		coord := cand.coord
		coord.Ring = ring
		n := &Node{Coordinate: coord, Parent: cand.parent, root: st.root.Coordinate}
		if cand.parent != nil {
			n.exclusions = mergeExclusions(cand.parent.exclusions, coord.Exclusions)
		} else {
			n.exclusions = mergeExclusions(nil, coord.Exclusions)
		}
		if !coord.IsSystem() && coord.Version == "" {
			n.Err = ErrNoVersion
		}

		res.byKey[key] = n
		res.Nodes = append(res.Nodes, n)
		res.Graph.AddNode(key)
		from := st.root.Coordinate.Key()
		if cand.parent != nil {
			from = cand.parent.Key()
		}
		// Both ends exist and differ, so AddEdge cannot fail.
		_ = res.Graph.AddEdge(from, key)
		admitted = append(admitted, n)
	}
	return admitted
}

func (st *state) conflict(winner *Node, loser candidate) {
	if winner.Coordinate.Version == loser.coord.Version {
		return
	}
	path := []coordinate.Coordinate{st.root.Coordinate}
	if loser.parent != nil {
		path = loser.parent.Path()
	}
	st.resolution.Conflicts = append(st.resolution.Conflicts, Conflict{
		Key:        winner.Key(),
		Winner:     winner.Coordinate,
		Loser:      loser.coord,
		Path:       append(path, loser.coord),
		LoserNewer: version.Newer(loser.coord.Version, winner.Coordinate.Version),
	})
}

// fetch loads the descriptors of a ring concurrently. Failures are stored on
// the nodes.
func (s *Solver) fetch(ctx context.Context, nodes []*Node) {
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, n := range nodes {
		if !n.needsDescriptor() {
			continue
		}
		g.Go(func() error {
			fctx := ctx
			if s.fetchTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
				defer cancel()
			}
			d, err := s.source.Descriptor(fctx, n.Coordinate)
			if err != nil {
				n.Err = err
				return nil
			}
			n.Descriptor = d
			return nil
		})
	}
	_ = g.Wait()
}

// expand turns the admitted nodes of a ring into the candidates of the next.
func (s *Solver) expand(st *state, admitted []*Node, ring int) []candidate {
	res := st.resolution
	var next []candidate
	for _, n := range admitted {
		if n.Err != nil {
			s.logger.Warn("Failed to resolve dependency.", "dependency", n.Coordinate.GAV(), "trail", n.Trail(), "error", n.Err)
			res.Unresolved = append(res.Unresolved, Unresolved{Coordinate: n.Coordinate, Path: n.Path(), Err: n.Err})
			continue
		}
		if n.Descriptor == nil {
			continue
		}
		for _, dep := range n.Descriptor.Dependencies {
			if dep.Optional {
				s.logger.Debug("Skipping optional transitive dependency.", "dependency", dep.GAV(), "parent", n.Coordinate.GAV())
				continue
			}
			if n.excludes(dep) {
				s.logger.Debug("Skipping excluded dependency.", "dependency", dep.GAV(), "parent", n.Coordinate.GAV())
				continue
			}
			depScope := dep.Scope
			if depScope == scope.None {
				depScope = scope.Compile
			}
			propagated, ok := scope.TransitiveScope(n.Coordinate.Scope, depScope)
			if !ok {
				continue
			}
			if n.onPath(dep.Key()) {
				s.logger.Debug("Skipping dependency already on the expansion path.", "dependency", dep.GAV(), "trail", n.Trail())
				continue
			}

			child := dep
			child.Scope = propagated
			child.Ring = ring + 1
			if managed, ok := st.root.ManagedVersions[dep.Key()]; ok {
				child.Version = managed
			}
			next = append(next, candidate{coord: child, parent: n})
		}
	}
	return next
}
