package solver

import (
	"strings"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/pom"
)

// Node is one admitted artifact of a resolution: the winner of mediation for
// its groupId:artifactId.
type Node struct {
	// Coordinate carries the mediated version, the propagated scope and the
	// ring the node was reached at.
	Coordinate coordinate.Coordinate
	// Parent is the node that pulled this one in; nil for direct
	// dependencies of the root.
	Parent *Node
	// Descriptor is nil for leaves (system, @ext) and unresolved nodes.
	Descriptor *pom.Descriptor
	// Err is set when the descriptor could not be obtained.
	Err error

	root       coordinate.Coordinate
	exclusions []string
}

// Key returns the mediation key of the node.
func (n *Node) Key() string {
	return n.Coordinate.Key()
}

// Resolved reports whether the node's descriptor, if it needs one, was
// obtained.
func (n *Node) Resolved() bool {
	return n.Err == nil
}

// Path returns the chain of coordinates from the root down to n.
func (n *Node) Path() []coordinate.Coordinate {
	var rev []coordinate.Coordinate
	for cur := n; cur != nil; cur = cur.Parent {
		rev = append(rev, cur.Coordinate)
	}
	path := make([]coordinate.Coordinate, 0, len(rev)+1)
	path = append(path, n.root)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// Trail renders the path nearest first: "x required by y required by root".
func (n *Node) Trail() string {
	return trail(n.Path())
}

func (n *Node) excludes(c coordinate.Coordinate) bool {
	for _, e := range n.exclusions {
		if coordinate.MatchExclusion(e, c) {
			return true
		}
	}
	return false
}

// onPath reports whether key belongs to n or one of its ancestors, the root
// included.
func (n *Node) onPath(key string) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Key() == key {
			return true
		}
	}
	return n.root.Key() == key
}

func (n *Node) needsDescriptor() bool {
	return n.Err == nil && !n.Coordinate.IsSystem() && n.Coordinate.ResolveTransitively
}

func trail(path []coordinate.Coordinate) string {
	parts := make([]string, 0, len(path))
	for i := len(path) - 1; i >= 0; i-- {
		parts = append(parts, path[i].GAV())
	}
	return strings.Join(parts, " required by ")
}

func mergeExclusions(inherited, own []string) []string {
	out := make([]string, 0, len(inherited)+len(own))
	seen := make(map[string]bool, len(inherited)+len(own))
	for _, list := range [][]string{inherited, own} {
		for _, e := range list {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}
