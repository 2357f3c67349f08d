package config

import (
	"fmt"
	"strings"
)

// Definition is the unified, format-agnostic representation of all pipeline
// flows read from configuration.
type Definition struct {
	Flows []*Flow
}

// Flow is one pipeline: its taps, operators and groups connected through
// `from` references, plus its trap bindings.
type Flow struct {
	Name      string
	Taps      []*Tap
	Operators []*Operator
	Groups    []*Group
	Traps     []*Trap
}

// Tap is the format-agnostic representation of a `tap` block.
type Tap struct {
	Name      string
	Path      string
	Temporary bool
	// Priority is the submit priority of the step writing this tap. Zero
	// leaves the backend default in place.
	Priority int
	From     []string
}

// Operator is the format-agnostic representation of an `operator` block.
type Operator struct {
	Name   string
	Branch string
	From   []string
}

// Group is the format-agnostic representation of a `group` block.
type Group struct {
	Name   string
	Branch string
	From   []string
}

// Trap binds the tap named Tap as the trap of branch Branch.
type Trap struct {
	Branch string
	Tap    string
}

// Flow returns the flow with the given name.
func (d *Definition) Flow(name string) (*Flow, bool) {
	for _, f := range d.Flows {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FlowNames returns the flow names in declaration order.
func (d *Definition) FlowNames() []string {
	names := make([]string, 0, len(d.Flows))
	for _, f := range d.Flows {
		names = append(names, f.Name)
	}
	return names
}

// Merge appends the flows of other. Flow names must stay unique.
func (d *Definition) Merge(other *Definition) error {
	for _, f := range other.Flows {
		if _, exists := d.Flow(f.Name); exists {
			return fmt.Errorf("flow %q is defined more than once", f.Name)
		}
		d.Flows = append(d.Flows, f)
	}
	return nil
}

// Validate checks the definition for problems a loader cannot see in a
// single file: empty or duplicate flow names and flows without taps.
func (d *Definition) Validate() error {
	var problems []string
	seen := make(map[string]bool)
	for i, f := range d.Flows {
		switch {
		case f.Name == "":
			problems = append(problems, fmt.Sprintf("flow #%d has no name", i+1))
		case seen[f.Name]:
			problems = append(problems, fmt.Sprintf("flow %q is defined more than once", f.Name))
		case len(f.Taps) == 0:
			problems = append(problems, fmt.Sprintf("flow %q declares no taps", f.Name))
		}
		seen[f.Name] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid definition: %s", strings.Join(problems, "; "))
	}
	return nil
}
