package hcl

import "github.com/vk/flowplan/internal/config"

// translateFlow converts the HCL-specific flow schema into the agnostic model.
func translateFlow(b *flowBlock) *config.Flow {
	f := &config.Flow{Name: b.Name}
	for _, t := range b.Taps {
		f.Taps = append(f.Taps, &config.Tap{
			Name:      t.Name,
			Path:      t.Path,
			Temporary: t.Temporary,
			Priority:  t.Priority,
			From:      t.From,
		})
	}
	for _, o := range b.Operators {
		f.Operators = append(f.Operators, &config.Operator{Name: o.Name, Branch: o.Branch, From: o.From})
	}
	for _, g := range b.Groups {
		f.Groups = append(f.Groups, &config.Group{Name: g.Name, Branch: g.Branch, From: g.From})
	}
	for _, tr := range b.Traps {
		f.Traps = append(f.Traps, &config.Trap{Branch: tr.Branch, Tap: tr.Tap})
	}
	return f
}
