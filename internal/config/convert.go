package config

import (
	"context"
	"fmt"

	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/element"
)

// ElementGraph converts the flow into an element graph and its trap
// registry. Taps are added first, in declaration order, so step ordinals
// follow the order sinks are declared in.
func (f *Flow) ElementGraph(ctx context.Context) (*element.Graph, element.Traps, error) {
	logger := ctxlog.FromContext(ctx).With("flow", f.Name)
	logger.Debug("Converting flow to element graph.", "taps", len(f.Taps), "operators", len(f.Operators), "groups", len(f.Groups))

	g := element.New()
	taps := make(map[string]*element.Tap, len(f.Taps))
	from := make(map[string][]string)
	var order []string

	add := func(e element.Element, deps []string) error {
		if err := g.Add(e); err != nil {
			return fmt.Errorf("flow %q: %w", f.Name, err)
		}
		order = append(order, e.ElementName())
		from[e.ElementName()] = deps
		return nil
	}

	for _, t := range f.Taps {
		tap := &element.Tap{Name: t.Name, Path: t.Path, Temporary: t.Temporary, SubmitPriority: t.Priority}
		if err := add(tap, t.From); err != nil {
			return nil, nil, err
		}
		taps[t.Name] = tap
	}
	for _, o := range f.Operators {
		if err := add(&element.Operator{Name: o.Name, Branch: o.Branch}, o.From); err != nil {
			return nil, nil, err
		}
	}
	for _, grp := range f.Groups {
		if err := add(&element.Group{Name: grp.Name, Branch: grp.Branch}, grp.From); err != nil {
			return nil, nil, err
		}
	}

	for _, name := range order {
		for _, src := range from[name] {
			if err := g.Connect(src, name, element.Scope{}); err != nil {
				return nil, nil, fmt.Errorf("flow %q: connecting %q to %q: %w", f.Name, src, name, err)
			}
		}
	}

	traps := make(element.Traps, len(f.Traps))
	for _, tr := range f.Traps {
		if _, dup := traps[tr.Branch]; dup {
			return nil, nil, fmt.Errorf("flow %q: branch %q has more than one trap", f.Name, tr.Branch)
		}
		tap, ok := taps[tr.Tap]
		if !ok {
			return nil, nil, fmt.Errorf("flow %q: trap on branch %q references unknown tap %q", f.Name, tr.Branch, tr.Tap)
		}
		traps[tr.Branch] = tap
	}

	logger.Debug("Flow converted.", "elements", g.Len(), "traps", len(traps))
	return g, traps, nil
}
