package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/stencil/internal/errs"
)

func build(t *testing.T, nodes []string, edges [][2]string) *Graph {
	t.Helper()
	g := New(nodes)
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestTopoSort_DependencyOrderIndependentOfDeclaration(t *testing.T) {
	// base <- a <- b, declared in every permutation.
	perms := [][]string{
		{"base", "a", "b"}, {"base", "b", "a"}, {"a", "base", "b"},
		{"a", "b", "base"}, {"b", "base", "a"}, {"b", "a", "base"},
	}
	for _, nodes := range perms {
		g := build(t, nodes, [][2]string{{"base", "a"}, {"a", "b"}})
		order, err := g.TopoSort()
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "a", "b"}, order, "declared as %v", nodes)
	}
}

func TestTopoSort_TiesBrokenByName(t *testing.T) {
	g := build(t, []string{"python", "base", "docker", "ci"}, [][2]string{
		{"base", "python"}, {"base", "docker"}, {"base", "ci"}, {"docker", "ci"},
	})
	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "docker", "ci", "python"}, order)
}

func TestTopoSort_Cycle(t *testing.T) {
	g := build(t, []string{"base", "a", "b", "c"}, [][2]string{
		{"base", "a"}, {"a", "b"}, {"b", "c"}, {"c", "a"},
	})
	_, err := g.TopoSort()
	require.Error(t, err)

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle.Path)
	assert.EqualError(t, err, "dependency cycle: a -> b -> c -> a")
	assert.True(t, errors.Is(err, ErrCycle))
	assert.True(t, errors.Is(err, errs.ErrSemantic))
}

func TestTopoSort_SelfLoop(t *testing.T) {
	g := build(t, []string{"a"}, [][2]string{{"a", "a"}})
	_, err := g.TopoSort()
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "a"}, cycle.Path)
}

func TestAddEdge(t *testing.T) {
	g := New([]string{"a", "b", "a"})
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "b"))
	assert.Error(t, g.AddEdge("a", "missing"))
	assert.True(t, g.Has("b"))
	assert.False(t, g.Has("missing"))

	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestReachable(t *testing.T) {
	g := build(t, []string{"base", "a", "b", "orphan"}, [][2]string{{"base", "a"}, {"a", "b"}})
	assert.True(t, g.Reachable("base", "b"))
	assert.False(t, g.Reachable("b", "base"))
	assert.False(t, g.Reachable("base", "orphan"))
	assert.True(t, g.Reachable("a", "a"))
}
