// Package depgraph records a resolved dependency graph: which artifact
// pulled in which, in the order the edges were discovered. Unlike a plain
// adjacency map it keeps insertion order so renderings are deterministic.
package depgraph

import (
	"fmt"
	"sync"
)

type node struct {
	id         string
	deps       []*node
	dependents []*node
}

// Graph is a directed graph keyed by string IDs. An edge from A to B means
// A depends on B. It is safe for concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	order []*node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a node with the given ID. Adding an existing ID is a no-op.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	n := &node{id: id}
	g.nodes[id] = n
	g.order = append(g.order, n)
}

// AddEdge records that fromID depends on toID. Both nodes must exist and a
// node may not depend on itself. Repeating an edge is a no-op.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	for _, d := range fromNode.deps {
		if d == toNode {
			return nil
		}
	}
	fromNode.deps = append(fromNode.deps, toNode)
	toNode.dependents = append(toNode.dependents, fromNode)
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Dependencies returns the IDs id depends on, in discovery order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(n.deps), nil
}

// Dependents returns the IDs that depend on id, in discovery order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(n.dependents), nil
}

// Roots returns the nodes nothing depends on, in insertion order.
func (g *Graph) Roots() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var roots []string
	for _, n := range g.order {
		if len(n.dependents) == 0 {
			roots = append(roots, n.id)
		}
	}
	return roots
}

// DetectCycles returns an error naming a node on a cycle, if any.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// permanent: fully explored and cycle-free.
	// temporary: on the current DFS stack.
	permanent := make(map[*node]bool)
	temporary := make(map[*node]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n] {
			return nil
		}
		if temporary[n] {
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}
		temporary[n] = true
		for _, d := range n.deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		delete(temporary, n)
		permanent[n] = true
		return nil
	}

	for _, n := range g.order {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every node reachable from start depth-first, in discovery
// order, calling fn with the node ID and its depth below start. A node that
// is already on the current path is not entered again.
func (g *Graph) Walk(start string, fn func(id string, depth int)) error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	root, ok := g.nodes[start]
	if !ok {
		return fmt.Errorf("node not found: %s", start)
	}

	onPath := make(map[*node]bool)
	var visit func(n *node, depth int)
	visit = func(n *node, depth int) {
		fn(n.id, depth)
		onPath[n] = true
		for _, d := range n.deps {
			if !onPath[d] {
				visit(d, depth+1)
			}
		}
		delete(onPath, n)
	}
	visit(root, 0)
	return nil
}

func ids(nodes []*node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.id)
	}
	return out
}
