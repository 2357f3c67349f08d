package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/flowplan/internal/config"
	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/dot"
	"github.com/vk/flowplan/internal/metrics"
	"github.com/vk/flowplan/internal/partition"
	"github.com/vk/flowplan/internal/scheduler"
	"github.com/vk/flowplan/internal/step"
	"github.com/vk/flowplan/internal/stepgraph"
)

// errSimulated marks steps failed on request.
var errSimulated = errors.New("simulated failure")

// Plan is the outcome of planning one flow.
type Plan struct {
	Flow  string
	Graph *stepgraph.Graph
	// Order is the submission order.
	Order []*step.Step
	// Waves maps a step ID to the submission round it becomes ready in when
	// every earlier round finishes. Withdrawn steps have no wave.
	Waves map[int]int
	// Status is the final status of each step after the submission
	// simulation.
	Status map[int]scheduler.Status
	// Failure is the first simulated step failure, nil when every step
	// completed.
	Failure error
}

// Run executes the main application logic: plan every selected flow and
// write the report.
func (a *App) Run(ctx context.Context) error {
	ctx = a.Context(ctx)
	a.logger.Debug("App.Run method started.")

	if a.config.MetricsPath != "" {
		defer func() {
			if err := metrics.WriteTextfile(a.config.MetricsPath, a.registry); err != nil {
				a.logger.Error("Failed to write metrics.", "error", err)
			}
		}()
	}

	plans, err := a.Plan(ctx)
	if err != nil {
		return err
	}
	if err := a.report(plans); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// Plan loads the definitions and builds, orders and simulates one step graph
// per selected flow. The first failing flow aborts planning.
func (a *App) Plan(ctx context.Context) ([]*Plan, error) {
	ctx = a.Context(ctx)

	def, err := a.loader.Load(ctx, a.config.DefinitionPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	flows, err := selectFlows(def, a.config.Flows)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Definitions loaded.", "flows", len(flows))

	builder := stepgraph.NewBuilder(&step.BatchFactory{}, a.strategy(), stepgraph.WithMetrics(a.metrics))
	matched := make(map[string]bool)

	plans := make([]*Plan, 0, len(flows))
	for _, f := range flows {
		p, err := a.planFlow(ctx, builder, f, len(flows) > 1, matched)
		if err != nil {
			return nil, fmt.Errorf("flow %q: %w", f.Name, err)
		}
		plans = append(plans, p)
	}

	for _, name := range a.config.Fail {
		if !matched[name] {
			a.logger.Warn("Simulated failure matches no step.", "step", name)
		}
	}
	return plans, nil
}

func (a *App) strategy() partition.Strategy {
	if a.config.Permissive {
		return partition.Permissive{Strategy: partition.TapStrategy{}}
	}
	return partition.TapStrategy{}
}

func (a *App) planFlow(ctx context.Context, builder *stepgraph.Builder, f *config.Flow, many bool, matched map[string]bool) (*Plan, error) {
	logger := ctxlog.FromContext(ctx).With("flow", f.Name)

	eg, traps, err := f.ElementGraph(ctx)
	if err != nil {
		return nil, err
	}
	g, err := builder.Build(ctx, f.Name, eg, traps)
	if err != nil {
		return nil, err
	}
	if a.config.DotPath != "" {
		dot.Export(ctx, g, dotPath(a.config.DotPath, f.Name, many))
	}

	order, err := stepgraph.Order(g)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		Flow:   f.Name,
		Graph:  g,
		Order:  order,
		Waves:  make(map[int]int, g.Len()),
		Status: make(map[int]scheduler.Status, g.Len()),
	}
	if err := a.simulate(ctx, p, matched); err != nil {
		return nil, err
	}

	counts := p.StatusCounts()
	logger.Info("Flow planned.", "steps", g.Len(), "failed", counts[scheduler.Failed], "skipped", counts[scheduler.Skipped])
	return p, nil
}

// simulate replays the submission of p's steps round by round, failing the
// steps named in Config.Fail.
func (a *App) simulate(ctx context.Context, p *Plan, matched map[string]bool) error {
	failing := make(map[string]bool, len(a.config.Fail))
	for _, name := range a.config.Fail {
		failing[name] = true
	}

	tracker, err := scheduler.New(p.Graph)
	if err != nil {
		return err
	}

	for wave := 1; !tracker.Done(); wave++ {
		ready := tracker.Ready()
		if len(ready) == 0 {
			return fmt.Errorf("submission stalled after %d rounds", wave-1)
		}
		for _, s := range ready {
			if err := tracker.MarkSubmitted(s.ID()); err != nil {
				return err
			}
			p.Waves[s.ID()] = wave
		}
		for _, s := range ready {
			key := ""
			switch {
			case failing[s.Name()]:
				key = s.Name()
			case failing[s.Sink().Identifier()]:
				key = s.Sink().Identifier()
			}
			if key == "" {
				if err := tracker.MarkCompleted(s.ID()); err != nil {
					return err
				}
				continue
			}
			matched[key] = true
			if _, err := tracker.MarkFailed(ctx, s.ID(), errSimulated); err != nil {
				return err
			}
		}
	}

	for _, s := range p.Order {
		p.Status[s.ID()] = tracker.Status(s.ID())
	}
	if err := tracker.Err(); err != nil {
		p.Failure = err
		ctxlog.FromContext(ctx).Warn("Simulated submission did not complete.", "flow", p.Flow, "error", err)
	}
	return nil
}

func selectFlows(def *config.Definition, names []string) ([]*config.Flow, error) {
	if len(def.Flows) == 0 {
		return nil, errors.New("no flows defined")
	}
	if len(names) == 0 {
		return def.Flows, nil
	}

	flows := make([]*config.Flow, 0, len(names))
	for _, name := range names {
		f, ok := def.Flow(name)
		if !ok {
			return nil, fmt.Errorf("flow %q not found; defined flows: %s", name, strings.Join(def.FlowNames(), ", "))
		}
		flows = append(flows, f)
	}
	return flows, nil
}

// dotPath returns the DOT file of a flow. With several flows the flow name
// is inserted before the extension.
func dotPath(path, flow string, many bool) string {
	if !many {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + flow + ext
}
