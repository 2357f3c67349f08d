// Package step defines the execution step, the unit of work the planner hands
// to a batch backend, together with the factory capability that creates the
// backend half of each step and the naming helper.
//
// A step is assembled with a Builder while the step graph is being built:
// sources are appended as more branches are found to feed the same sink.
// Freeze turns the builder into an immutable Step once the build completes.
package step

import (
	"github.com/vk/flowplan/internal/element"
	"github.com/vk/flowplan/internal/planerr"
)

// Builder accumulates a step while the step graph is under construction.
// It is not safe for concurrent use.
type Builder struct {
	name     string
	ordinal  int
	flowName string
	sink     *element.Tap
	sources  []*element.Tap
	seen     map[string]struct{}
	group    *element.Group
	traps    map[string]*element.Tap
	backend  Backend
}

// NewBuilder starts a step for the given sink.
func NewBuilder(name string, ordinal int, flowName string, sink *element.Tap, backend Backend) *Builder {
	return &Builder{
		name:     name,
		ordinal:  ordinal,
		flowName: flowName,
		sink:     sink,
		seen:     make(map[string]struct{}),
		traps:    make(map[string]*element.Tap),
		backend:  backend,
	}
}

// Name returns the generated step name.
func (b *Builder) Name() string { return b.name }

// Ordinal returns the creation ordinal, starting at 1.
func (b *Builder) Ordinal() int { return b.ordinal }

// Sink returns the step sink.
func (b *Builder) Sink() *element.Tap { return b.sink }

// Sources returns the sources added so far. The slice must not be modified.
func (b *Builder) Sources() []*element.Tap { return b.sources }

// AddSource appends a source tap unless a tap with the same identity was
// already added.
func (b *Builder) AddSource(tap *element.Tap) {
	id := tap.Identifier()
	if _, ok := b.seen[id]; ok {
		return
	}
	b.seen[id] = struct{}{}
	b.sources = append(b.sources, tap)
}

// SetGroup records the grouping point of the step. Setting the same group
// again is a no-op; a different group is a planning error.
func (b *Builder) SetGroup(g *element.Group) error {
	if g == nil || b.group == g {
		return nil
	}
	if b.group != nil && b.group.Name != g.Name {
		return &planerr.Error{
			Kind:    planerr.KindGroupConflict,
			Message: "step " + b.name + " cannot contain both group " + b.group.Name + " and group " + g.Name,
			Tap:     b.sink.Identifier(),
		}
	}
	b.group = g
	return nil
}

// AddTrap binds a trap for a branch crossed by this step.
func (b *Builder) AddTrap(branch string, tap *element.Tap) {
	b.traps[branch] = tap
}

// Freeze returns the immutable step. The builder must not be used afterwards.
func (b *Builder) Freeze(id int) *Step {
	priority := DefaultSubmitPriority
	if b.backend != nil {
		priority = b.backend.SubmitPriority()
	}
	if b.sink != nil && b.sink.SubmitPriority != 0 {
		priority = b.sink.SubmitPriority
	}

	sources := make([]*element.Tap, len(b.sources))
	copy(sources, b.sources)

	traps := make(map[string]*element.Tap, len(b.traps))
	for k, v := range b.traps {
		traps[k] = v
	}

	return &Step{
		id:       id,
		name:     b.name,
		ordinal:  b.ordinal,
		flowName: b.flowName,
		sources:  sources,
		sink:     b.sink,
		group:    b.group,
		traps:    traps,
		priority: priority,
		backend:  b.backend,
	}
}

// Step is one frozen unit of work: a set of source taps, exactly one sink
// tap, an optional group and the traps that apply inside it.
type Step struct {
	id       int
	name     string
	ordinal  int
	flowName string
	sources  []*element.Tap
	sink     *element.Tap
	group    *element.Group
	traps    map[string]*element.Tap
	priority int
	backend  Backend
}

// ID is the step's index in its step graph.
func (s *Step) ID() int { return s.id }

// Name is the generated display name.
func (s *Step) Name() string { return s.name }

// Ordinal is the 1-based creation ordinal.
func (s *Step) Ordinal() int { return s.ordinal }

// FlowName is the name of the flow the step belongs to.
func (s *Step) FlowName() string { return s.flowName }

// Sink returns the single sink tap.
func (s *Step) Sink() *element.Tap { return s.sink }

// Group returns the grouping point, or nil.
func (s *Step) Group() *element.Group { return s.group }

// Priority is the submission priority. Lower values are more urgent.
func (s *Step) Priority() int { return s.priority }

// Backend returns the value created by the step factory.
func (s *Step) Backend() Backend { return s.backend }

// Sources returns a copy of the source taps in discovery order.
func (s *Step) Sources() []*element.Tap {
	out := make([]*element.Tap, len(s.sources))
	copy(out, s.sources)
	return out
}

// Traps returns a copy of the branch to trap bindings.
func (s *Step) Traps() map[string]*element.Tap {
	out := make(map[string]*element.Tap, len(s.traps))
	for k, v := range s.traps {
		out[k] = v
	}
	return out
}

// Trap returns the trap bound for a branch inside this step.
func (s *Step) Trap(branch string) (*element.Tap, bool) {
	t, ok := s.traps[branch]
	return t, ok
}

// String returns the step name.
func (s *Step) String() string { return s.name }
