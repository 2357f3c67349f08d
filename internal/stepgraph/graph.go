package stepgraph

import (
	"fmt"
	"sync"

	"github.com/vk/flowplan/internal/planerr"
	"github.com/vk/flowplan/internal/step"
)

// Graph is a directed acyclic graph over execution steps. Steps live in an
// arena indexed by their ID; edges are kept as forward and backward
// adjacency lists. An edge A -> B means B reads the dataset A writes.
//
// Graphs returned by Builder.Build are read-only and safe for concurrent
// readers. AddStep and AddEdge exist for the builder and for callers that
// assemble graphs by hand.
type Graph struct {
	mutex  sync.RWMutex
	steps  []*step.Step
	succ   [][]int
	pred   [][]int
	edges  map[[2]int]struct{}
	bySink map[string]int
}

// New creates an empty step graph.
func New() *Graph {
	return &Graph{
		edges:  make(map[[2]int]struct{}),
		bySink: make(map[string]int),
	}
}

// AddStep appends a step to the arena. The step ID must equal the current
// number of steps and its sink must not already be owned by another step.
func (g *Graph) AddStep(s *step.Step) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if s.ID() != len(g.steps) {
		return fmt.Errorf("step %q has id %d, expected %d", s.Name(), s.ID(), len(g.steps))
	}
	if s.Sink() != nil {
		sink := s.Sink().Identifier()
		if other, ok := g.bySink[sink]; ok {
			return fmt.Errorf("sink [%s] already owned by step %q", sink, g.steps[other].Name())
		}
		g.bySink[sink] = s.ID()
	}

	g.steps = append(g.steps, s)
	g.succ = append(g.succ, nil)
	g.pred = append(g.pred, nil)
	return nil
}

// AddEdge records that step `to` depends on step `from`. Adding an existing
// edge again is a no-op.
func (g *Graph) AddEdge(from, to int) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %d -> %d", from, to)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if from < 0 || from >= len(g.steps) {
		return fmt.Errorf("source step not found: %d", from)
	}
	if to < 0 || to >= len(g.steps) {
		return fmt.Errorf("destination step not found: %d", to)
	}

	key := [2]int{from, to}
	if _, ok := g.edges[key]; ok {
		return nil
	}
	g.edges[key] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
	return nil
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.steps)
}

// Steps returns all steps in ID order.
func (g *Graph) Steps() []*step.Step {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]*step.Step, len(g.steps))
	copy(out, g.steps)
	return out
}

// Step returns the step with the given ID.
func (g *Graph) Step(id int) (*step.Step, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if id < 0 || id >= len(g.steps) {
		return nil, false
	}
	return g.steps[id], true
}

// StepBySink returns the step writing the sink with the given identity.
func (g *Graph) StepBySink(identity string) (*step.Step, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	id, ok := g.bySink[identity]
	if !ok {
		return nil, false
	}
	return g.steps[id], true
}

// Successors returns the steps that directly depend on id.
func (g *Graph) Successors(id int) []*step.Step {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if id < 0 || id >= len(g.steps) {
		return nil
	}
	return g.resolve(g.succ[id])
}

// Predecessors returns the steps id directly depends on.
func (g *Graph) Predecessors(id int) []*step.Step {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if id < 0 || id >= len(g.steps) {
		return nil
	}
	return g.resolve(g.pred[id])
}

// Downstream returns every step reachable from id, in breadth-first order.
// An executor uses it to withdraw all dependents of a failed step.
func (g *Graph) Downstream(id int) []*step.Step {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if id < 0 || id >= len(g.steps) {
		return nil
	}

	seen := map[int]bool{id: true}
	queue := append([]int(nil), g.succ[id]...)
	var out []*step.Step
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, g.steps[next])
		queue = append(queue, g.succ[next]...)
	}
	return out
}

// Roots returns the steps without upstream dependencies, in ID order.
func (g *Graph) Roots() []*step.Step {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out []*step.Step
	for id, preds := range g.pred {
		if len(preds) == 0 {
			out = append(out, g.steps[id])
		}
	}
	return out
}

// Edge is a dependency between two steps, by ID.
type Edge struct {
	From, To int
}

// Edges returns every edge ordered by source then insertion.
func (g *Graph) Edges() []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out []Edge
	for from, succ := range g.succ {
		for _, to := range succ {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// DetectCycles checks the graph for cycles. It returns a planning error
// naming one step on the cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three colours:
	// permanent nodes are fully explored and not on a cycle,
	// temporary nodes are on the current recursion stack.
	permanent := make([]bool, len(g.steps))
	temporary := make([]bool, len(g.steps))

	var visit func(id int) error
	visit = func(id int) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return planerr.Cycle(g.steps[id].Name())
		}
		temporary[id] = true
		for _, next := range g.succ[id] {
			if err := visit(next); err != nil {
				return err
			}
		}
		temporary[id] = false
		permanent[id] = true
		return nil
	}

	for id := range g.steps {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) resolve(ids []int) []*step.Step {
	out := make([]*step.Step, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.steps[id])
	}
	return out
}
