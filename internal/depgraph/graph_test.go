package depgraph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddEdge(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		from, to    string
		expectedErr string
	}{
		{name: "valid edge", from: "app", to: "lib"},
		{name: "self reference", from: "app", to: "app", expectedErr: "self-referential edge not allowed: app -> app"},
		{name: "missing source", from: "ghost", to: "lib", expectedErr: "source node not found: ghost"},
		{name: "missing destination", from: "app", to: "ghost", expectedErr: "destination node not found: ghost"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := New()
			g.AddNode("app")
			g.AddNode("lib")

			err := g.AddEdge(tc.from, tc.to)
			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)

			deps, err := g.Dependencies("app")
			require.NoError(t, err)
			assert.Equal(t, []string{"lib"}, deps)

			dependents, err := g.Dependents("lib")
			require.NoError(t, err)
			assert.Equal(t, []string{"app"}, dependents)
		})
	}
}

func TestGraph_KeepsDiscoveryOrder(t *testing.T) {
	g := New()
	for _, id := range []string{"root", "z", "a", "m"} {
		g.AddNode(id)
	}
	g.AddNode("z")
	require.NoError(t, g.AddEdge("root", "z"))
	require.NoError(t, g.AddEdge("root", "a"))
	require.NoError(t, g.AddEdge("root", "m"))
	require.NoError(t, g.AddEdge("root", "a"))

	deps, err := g.Dependencies("root")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, deps)
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"root"}, g.Roots())

	_, err = g.Dependencies("nope")
	assert.EqualError(t, err, "node not found: nope")
	_, err = g.Dependents("nope")
	assert.EqualError(t, err, "node not found: nope")
}

func TestGraph_DetectCycles(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.DetectCycles())

	require.NoError(t, g.AddEdge("c", "a"))
	assert.ErrorContains(t, g.DetectCycles(), "cycle detected involving node")
}

func TestGraph_Walk(t *testing.T) {
	g := New()
	for _, id := range []string{"root", "a", "b", "c"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("root", "a"))
	require.NoError(t, g.AddEdge("root", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("c", "a"))

	var visited []string
	err := g.Walk("root", func(id string, depth int) {
		visited = append(visited, fmt.Sprintf("%d:%s", depth, id))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0:root", "1:a", "2:c", "1:b"}, visited)

	assert.Error(t, g.Walk("missing", func(string, int) {}))
}

func TestGraph_ConcurrentAdds(t *testing.T) {
	g := New()
	g.AddNode("root")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("n%d", i)
			g.AddNode(id)
			assert.NoError(t, g.AddEdge("root", id))
		}(i)
	}
	wg.Wait()

	deps, err := g.Dependencies("root")
	require.NoError(t, err)
	assert.Len(t, deps, 50)
}
