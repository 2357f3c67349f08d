package stepgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowplan/internal/element"
	"github.com/vk/flowplan/internal/planerr"
	"github.com/vk/flowplan/internal/step"
)

// newStep freezes a step sinking into "/<name>" with the given priority.
func newStep(id int, name string, priority int) *step.Step {
	sink := &element.Tap{Name: name, Path: "/" + name, SubmitPriority: priority}
	return step.NewBuilder(name, id+1, "test", sink, nil).Freeze(id)
}

// handGraph assembles a step graph from priorities and edges.
func handGraph(t *testing.T, names []string, priorities []int, edges ...Edge) *Graph {
	t.Helper()
	g := New()
	for i, name := range names {
		require.NoError(t, g.AddStep(newStep(i, name, priorities[i])))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e.From, e.To))
	}
	return g
}

func TestGraph_AddStep(t *testing.T) {
	g := New()
	require.NoError(t, g.AddStep(newStep(0, "a", 0)))

	err := g.AddStep(newStep(5, "b", 0))
	assert.ErrorContains(t, err, "expected 1")

	dup := step.NewBuilder("dup", 2, "test", &element.Tap{Name: "other", Path: "/a"}, nil).Freeze(1)
	assert.ErrorContains(t, g.AddStep(dup), "already owned")

	s, ok := g.StepBySink("/a")
	require.True(t, ok)
	assert.Equal(t, "a", s.Name())
	_, ok = g.StepBySink("/missing")
	assert.False(t, ok)
}

func TestGraph_AddEdge(t *testing.T) {
	g := handGraph(t, []string{"a", "b"}, []int{0, 0})

	assert.ErrorContains(t, g.AddEdge(0, 0), "self-referential edge not allowed")
	assert.ErrorContains(t, g.AddEdge(7, 1), "source step not found")
	assert.ErrorContains(t, g.AddEdge(0, 7), "destination step not found")

	require.NoError(t, g.AddEdge(0, 1))
	require.NoError(t, g.AddEdge(0, 1))
	assert.Equal(t, []Edge{{From: 0, To: 1}}, g.Edges())
}

func TestGraph_Adjacency(t *testing.T) {
	// a -> b -> d
	// a -> c
	g := handGraph(t, []string{"a", "b", "c", "d"}, []int{0, 0, 0, 0},
		Edge{0, 1}, Edge{0, 2}, Edge{1, 3})

	names := func(steps []*step.Step) []string {
		var out []string
		for _, s := range steps {
			out = append(out, s.Name())
		}
		return out
	}

	assert.Equal(t, []string{"b", "c"}, names(g.Successors(0)))
	assert.Equal(t, []string{"b"}, names(g.Predecessors(3)))
	assert.Equal(t, []string{"b", "c", "d"}, names(g.Downstream(0)))
	assert.Equal(t, []string{"a"}, names(g.Roots()))
	assert.Nil(t, g.Successors(42))
	assert.Nil(t, g.Downstream(-1))

	_, ok := g.Step(4)
	assert.False(t, ok)
}

func TestGraph_DetectCycles(t *testing.T) {
	acyclic := handGraph(t, []string{"a", "b", "c"}, []int{0, 0, 0}, Edge{0, 1}, Edge{1, 2}, Edge{0, 2})
	assert.NoError(t, acyclic.DetectCycles())

	cyclic := handGraph(t, []string{"a", "b", "c"}, []int{0, 0, 0}, Edge{0, 1}, Edge{1, 2}, Edge{2, 1})
	err := cyclic.DetectCycles()
	require.Error(t, err)
	assert.Equal(t, planerr.KindCycle, planerr.KindOf(err))
}
