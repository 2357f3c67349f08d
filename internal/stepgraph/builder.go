package stepgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/element"
	"github.com/vk/flowplan/internal/metrics"
	"github.com/vk/flowplan/internal/partition"
	"github.com/vk/flowplan/internal/planerr"
	"github.com/vk/flowplan/internal/step"
)

// Builder compiles element graphs into step graphs. It holds no per-build
// state and may be reused; each Build call is single-threaded.
type Builder struct {
	factory  step.Factory
	strategy partition.Strategy
	metrics  *metrics.Planner
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used when the build context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithMetrics records every build in the given planner metrics.
func WithMetrics(m *metrics.Planner) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// NewBuilder creates a builder. A nil factory defaults to step.BatchFactory
// and a nil strategy to partition.TapStrategy.
func NewBuilder(factory step.Factory, strategy partition.Strategy, opts ...Option) *Builder {
	if factory == nil {
		factory = &step.BatchFactory{}
	}
	if strategy == nil {
		strategy = partition.TapStrategy{}
	}
	b := &Builder{factory: factory, strategy: strategy}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs a complete, validated step graph for one flow. Any
// structural problem is returned as a *planerr.Error.
func (b *Builder) Build(ctx context.Context, flowName string, g *element.Graph, traps element.Traps) (*Graph, error) {
	start := time.Now()
	graph, err := b.build(ctx, flowName, g, traps)

	steps := 0
	if graph != nil {
		steps = graph.Len()
	}
	b.metrics.ObserveBuild(time.Since(start), steps, err)
	return graph, err
}

func (b *Builder) build(ctx context.Context, flowName string, g *element.Graph, traps element.Traps) (*Graph, error) {
	if g == nil {
		return nil, fmt.Errorf("element graph for flow %q is nil", flowName)
	}
	if b.logger != nil && !ctxlog.Has(ctx) {
		ctx = ctxlog.WithLogger(ctx, b.logger)
	}
	logger := ctxlog.FromContext(ctx).With("flow", flowName)
	logger.Debug("Build: Starting step graph construction.", "elements", g.Len())

	boundaries, err := b.strategy.Boundaries(ctx, g)
	if err != nil {
		if planerr.IsPlanning(err) {
			return nil, err
		}
		return nil, &planerr.Error{Kind: planerr.KindPartition, Message: "partitioning failed", Err: err}
	}
	logger.Debug("Build: Boundaries computed.", "boundary_count", len(boundaries))

	total := countSinks(boundaries)
	// index is the construction-time sink -> step lookup. It does not outlive
	// this call.
	index := make(map[string]*step.Builder, total)
	var created []*step.Builder

	getOrCreateStep := func(sink *element.Tap) *step.Builder {
		key := sink.Identifier()
		if sb, ok := index[key]; ok {
			return sb
		}
		logger.Debug("creating step", "sink", key)

		name := step.NameFor(len(index), total, sink.Identifier())
		ordinal := len(index) + 1
		sb := step.NewBuilder(name, ordinal, flowName, sink, b.factory.CreateStep(name, ordinal))
		index[key] = sb
		created = append(created, sb)
		return sb
	}

	for _, bd := range boundaries {
		if bd.Sink == nil {
			return nil, planerr.New(planerr.KindPartition, "boundary without a sink")
		}
		sb := getOrCreateStep(bd.Sink)
		for _, src := range bd.Sources {
			sb.AddSource(src)
		}
		if err := sb.SetGroup(bd.Group); err != nil {
			return nil, err
		}
		for _, branch := range bd.Branches {
			if trap, ok := traps[branch]; ok {
				sb.AddTrap(branch, trap)
			}
		}
	}
	logger.Debug("Build: Step creation complete.", "step_count", len(created))

	if err := b.validatePaths(boundaries); err != nil {
		return nil, err
	}
	if err := b.validateElementPaths(g, created); err != nil {
		return nil, err
	}
	logger.Debug("Build: Path legality passed.")

	if err := ValidateTraps(traps); err != nil {
		return nil, err
	}
	logger.Debug("Build: Trap uniqueness passed.", "trap_count", len(traps))

	graph := New()
	for id, sb := range created {
		if err := graph.AddStep(sb.Freeze(id)); err != nil {
			return nil, fmt.Errorf("internal error freezing step: %w", err)
		}
	}
	if err := linkSteps(graph); err != nil {
		return nil, err
	}

	if err := graph.DetectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: Cycle detection passed.")

	logger.Info("Step graph built.", "steps", graph.Len(), "edges", len(graph.Edges()))
	return graph, nil
}

// validatePaths checks every path spanned by a boundary.
func (b *Builder) validatePaths(boundaries []partition.Boundary) error {
	for _, bd := range boundaries {
		for _, p := range bd.Paths {
			if err := b.checkPath(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateElementPaths checks every simple path of the element graph between
// a step's sources and its sink, including the ones the strategy did not
// report. A source that is also fed through another tap makes such a path
// cross that tap.
func (b *Builder) validateElementPaths(g *element.Graph, steps []*step.Builder) error {
	for _, sb := range steps {
		sink := sb.Sink()
		for _, src := range sb.Sources() {
			if src.Name == sink.Name {
				continue
			}
			for _, p := range g.AllSimplePaths(src.Name, sink.Name) {
				if err := b.checkPath(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *Builder) checkPath(p element.Path) error {
	if IsLegalPath(p) {
		return nil
	}
	if err := b.strategy.IllegalPath(p); err != nil {
		return err
	}
	return planerr.IllegalPath(p.String(), CountTaps(p))
}

// linkSteps adds an edge from every step to each step reading its sink.
func linkSteps(graph *Graph) error {
	for _, consumer := range graph.Steps() {
		for _, src := range consumer.Sources() {
			producer, ok := graph.StepBySink(src.Identifier())
			if !ok {
				continue
			}
			if producer.ID() == consumer.ID() {
				return planerr.Cycle(consumer.Name())
			}
			if err := graph.AddEdge(producer.ID(), consumer.ID()); err != nil {
				return fmt.Errorf("internal error linking steps: %w", err)
			}
		}
	}
	return nil
}

func countSinks(boundaries []partition.Boundary) int {
	seen := make(map[string]struct{})
	for _, bd := range boundaries {
		if bd.Sink != nil {
			seen[bd.Sink.Identifier()] = struct{}{}
		}
	}
	return len(seen)
}

// CountTaps returns the number of taps a path visits, endpoints included.
func CountTaps(p element.Path) int {
	return len(p.Taps())
}

// IsLegalPath reports whether a path stays inside one step: it may visit at
// most two taps, its own source and its own sink.
func IsLegalPath(p element.Path) bool {
	return CountTaps(p) <= 2
}

// ValidateTraps checks that every trap tap is bound on exactly one branch.
func ValidateTraps(traps element.Traps) error {
	for _, branch := range traps.Branches() {
		tap := traps[branch]
		if tap == nil {
			return &planerr.Error{
				Kind:    planerr.KindTrapReuse,
				Message: fmt.Sprintf("trap on branch %q is not bound to a tap", branch),
			}
		}
		if count := traps.BindingCount(tap); count != 1 {
			return planerr.TrapReuse(tap.Identifier(), count)
		}
	}
	return nil
}
