// Package graph orders packs by their dependencies.
//
// Nodes are indexed in name order, and the Kahn ready queue is a min-heap over
// those indices, so among packs whose dependencies are satisfied the one with
// the smallest name always comes first. The order is a pure function of the
// node and edge sets; declaration order never matters.
package graph

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danieljhkim/stencil/internal/errs"
)

// ErrCycle is matched by every CycleError.
var ErrCycle = errors.New("dependency cycle")

// CycleError names one cycle, first node repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

// Is classifies a cycle as both ErrCycle and a semantic error.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle || target == errs.ErrSemantic
}

// Graph is a directed graph over named nodes. An edge from a to b means a
// must come before b.
type Graph struct {
	names    []string
	index    map[string]int
	outgoing [][]int
	indeg    []int
}

// New returns a graph over the given node names. Duplicates are collapsed.
func New(nodes []string) *Graph {
	names := make([]string, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)

	g := &Graph{
		names:    names,
		index:    make(map[string]int, len(names)),
		outgoing: make([][]int, len(names)),
		indeg:    make([]int, len(names)),
	}
	for i, n := range names {
		g.index[n] = i
	}
	return g
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// AddEdge records that from must precede to. Repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) error {
	u, ok := g.index[from]
	if !ok {
		return fmt.Errorf("unknown node %q", from)
	}
	v, ok := g.index[to]
	if !ok {
		return fmt.Errorf("unknown node %q", to)
	}

	pos := sort.SearchInts(g.outgoing[u], v)
	if pos < len(g.outgoing[u]) && g.outgoing[u][pos] == v {
		return nil
	}
	g.outgoing[u] = append(g.outgoing[u], 0)
	copy(g.outgoing[u][pos+1:], g.outgoing[u][pos:])
	g.outgoing[u][pos] = v
	g.indeg[v]++
	return nil
}

// Reachable reports whether to can be reached from from along edges.
func (g *Graph) Reachable(from, to string) bool {
	u, ok := g.index[from]
	if !ok {
		return false
	}
	v, ok := g.index[to]
	if !ok {
		return false
	}
	seen := make([]bool, len(g.names))
	stack := []int{u}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == v {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.outgoing[n]...)
	}
	return false
}

// TopoSort returns every node in dependency order, ties broken by name. A
// cycle yields a *CycleError.
func (g *Graph) TopoSort() ([]string, error) {
	order := g.topoOrderIndices()
	if len(order) != len(g.names) {
		return nil, &CycleError{Path: g.findCycle()}
	}
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = g.names[idx]
	}
	return out, nil
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (g *Graph) topoOrderIndices() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle runs a DFS in index order and returns the first cycle found, in
// edge direction.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.names))
	parent := make([]int, len(g.names))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back edge u -> v closes v ... u -> v.
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.names {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = g.names[cycle[len(cycle)-1-i]]
	}
	return out
}
