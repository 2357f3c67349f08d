// This file defines the element Graph and the path queries the planner runs
// over it.

package element

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a directed graph of elements connected by scopes. Elements are
// addressed by name and kept in insertion order so that every walk over the
// graph is deterministic.
type Graph struct {
	mutex    sync.RWMutex
	order    []string
	elements map[string]Element
	succ     map[string][]string
	pred     map[string][]string
	scopes   map[[2]string]Scope
}

// New creates an empty element graph.
func New() *Graph {
	return &Graph{
		elements: make(map[string]Element),
		succ:     make(map[string][]string),
		pred:     make(map[string][]string),
		scopes:   make(map[[2]string]Scope),
	}
}

// Add registers an element. Names must be unique across all variants.
func (g *Graph) Add(e Element) error {
	if e == nil {
		return fmt.Errorf("element must not be nil")
	}
	name := e.ElementName()
	if name == "" {
		return fmt.Errorf("%s element has an empty name", e.Kind())
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if existing, ok := g.elements[name]; ok {
		return fmt.Errorf("duplicate element name %q (already a %s)", name, existing.Kind())
	}
	g.elements[name] = e
	g.order = append(g.order, name)
	return nil
}

// Connect adds a scope from one element to another. Connecting the same pair
// twice replaces the scope metadata and keeps a single edge.
func (g *Graph) Connect(from, to string, scope Scope) error {
	if from == to {
		return fmt.Errorf("self-referential scope not allowed: %s -> %s", from, to)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.elements[from]; !ok {
		return fmt.Errorf("source element not found: %s", from)
	}
	if _, ok := g.elements[to]; !ok {
		return fmt.Errorf("destination element not found: %s", to)
	}

	key := [2]string{from, to}
	if _, ok := g.scopes[key]; !ok {
		g.succ[from] = append(g.succ[from], to)
		g.pred[to] = append(g.pred[to], from)
	}
	g.scopes[key] = scope
	return nil
}

// Element looks up an element by name.
func (g *Graph) Element(name string) (Element, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	e, ok := g.elements[name]
	return e, ok
}

// Len returns the number of elements.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Elements returns all elements in insertion order.
func (g *Graph) Elements() []Element {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]Element, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.elements[name])
	}
	return out
}

// Taps returns every tap in insertion order.
func (g *Graph) Taps() []*Tap {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var taps []*Tap
	for _, name := range g.order {
		if t, ok := g.elements[name].(*Tap); ok {
			taps = append(taps, t)
		}
	}
	return taps
}

// Successors returns the elements directly downstream of name.
func (g *Graph) Successors(name string) []Element {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.resolve(g.succ[name])
}

// Predecessors returns the elements directly upstream of name.
func (g *Graph) Predecessors(name string) []Element {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.resolve(g.pred[name])
}

// scopeOf returns the scope between two elements.
func (g *Graph) scopeOf(from, to string) (Scope, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	s, ok := g.scopes[[2]string{from, to}]
	return s, ok
}

func (g *Graph) resolve(names []string) []Element {
	out := make([]Element, 0, len(names))
	for _, n := range names {
		out = append(out, g.elements[n])
	}
	return out
}

// Path is an ordered list of elements connected by scopes.
type Path []Element

// String renders the path as "a -> b -> c".
func (p Path) String() string {
	names := make([]string, len(p))
	for i, e := range p {
		names[i] = e.ElementName()
	}
	return strings.Join(names, " -> ")
}

// Taps returns the taps visited by the path, endpoints included.
func (p Path) Taps() []*Tap {
	var taps []*Tap
	for _, e := range p {
		if t, ok := e.(*Tap); ok {
			taps = append(taps, t)
		}
	}
	return taps
}

// AllSimplePaths returns every path from one element to another that visits
// no element twice. Paths are produced in successor insertion order.
func (g *Graph) AllSimplePaths(from, to string) []Path {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start, ok := g.elements[from]
	if !ok {
		return nil
	}
	if _, ok := g.elements[to]; !ok {
		return nil
	}

	var paths []Path
	onPath := map[string]bool{from: true}
	current := Path{start}

	var walk func(name string)
	walk = func(name string) {
		if name == to {
			found := make(Path, len(current))
			copy(found, current)
			paths = append(paths, found)
			return
		}
		for _, next := range g.succ[name] {
			if onPath[next] {
				continue
			}
			onPath[next] = true
			current = append(current, g.elements[next])
			walk(next)
			current = current[:len(current)-1]
			delete(onPath, next)
		}
	}
	walk(from)
	return paths
}
