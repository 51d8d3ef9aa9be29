package solver

import (
	"fmt"
	"io"
	"strings"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/depgraph"
	"github.com/vk/kiln/internal/scope"
)

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Root coordinate.Coordinate
	// Nodes holds one winner per groupId:artifactId, ordered by ring and
	// then by discovery.
	Nodes []*Node
	// Graph has an edge from every node to the winners it pulled in, keyed
	// by Node.Key. The root is keyed by Root.Key().
	Graph      *depgraph.Graph
	Unresolved []Unresolved
	Conflicts  []Conflict

	byKey map[string]*Node
}

// Unresolved is a dependency whose descriptor could not be obtained.
type Unresolved struct {
	Coordinate coordinate.Coordinate
	// Path runs from the root down to Coordinate.
	Path []coordinate.Coordinate
	Err  error
}

// Trail renders the path nearest first: "x required by y required by root".
func (u Unresolved) Trail() string {
	return trail(u.Path)
}

// Conflict records a version that lost mediation.
type Conflict struct {
	Key    string
	Winner coordinate.Coordinate
	Loser  coordinate.Coordinate
	// Path runs from the root down to the losing occurrence.
	Path []coordinate.Coordinate
	// LoserNewer is set when a nearer, older version displaced a newer one.
	LoserNewer bool
}

// Trail renders the path to the losing occurrence, nearest first.
func (c Conflict) Trail() string {
	return trail(c.Path)
}

// UnresolvedError aggregates every unresolved dependency of a resolution.
type UnresolvedError struct {
	Unresolved []Unresolved
}

func (e *UnresolvedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d dependencies could not be resolved", len(e.Unresolved))
	for _, u := range e.Unresolved {
		fmt.Fprintf(&b, "\n  %s: %v", u.Trail(), u.Err)
	}
	return b.String()
}

// Node returns the winner for key.
func (r *Resolution) Node(key string) (*Node, bool) {
	n, ok := r.byKey[key]
	return n, ok
}

// Err returns an *UnresolvedError when any dependency is unresolved.
func (r *Resolution) Err() error {
	if len(r.Unresolved) == 0 {
		return nil
	}
	return &UnresolvedError{Unresolved: r.Unresolved}
}

// Classpath returns the resolved coordinates that belong on the classpath
// for requested, in ring order. Unresolved nodes are left out.
func (r *Resolution) Classpath(requested scope.Scope) []coordinate.Coordinate {
	var out []coordinate.Coordinate
	for _, n := range r.Nodes {
		if !n.Resolved() {
			continue
		}
		if scope.IncludeOnClasspath(requested, n.Coordinate.Scope) {
			out = append(out, n.Coordinate)
		}
	}
	return out
}

// Scopes returns the classpath of every classpath scope.
func (r *Resolution) Scopes() map[scope.Scope][]coordinate.Coordinate {
	out := make(map[scope.Scope][]coordinate.Coordinate, len(scope.Classpaths))
	for _, s := range scope.Classpaths {
		out[s] = r.Classpath(s)
	}
	return out
}

// WriteTree renders the graph depth-first from the root, one node per line.
func (r *Resolution) WriteTree(w io.Writer) error {
	var werr error
	err := r.Graph.Walk(r.Root.Key(), func(id string, depth int) {
		if werr != nil {
			return
		}
		if depth == 0 {
			_, werr = fmt.Fprintln(w, r.Root.GAV())
			return
		}
		n := r.byKey[id]
		line := fmt.Sprintf("%s+- %s [%s]", strings.Repeat("|  ", depth-1), n.Coordinate.String(), n.Coordinate.Scope)
		if !n.Resolved() {
			line += " (unresolved)"
		}
		_, werr = fmt.Fprintln(w, line)
	})
	if err != nil {
		return err
	}
	return werr
}
