// This file defines the trap registry supplied alongside the element graph.

package element

import "sort"

// Traps maps a branch name to the tap that captures records failing on that
// branch.
type Traps map[string]*Tap

// Branches returns the bound branch names in lexical order.
func (t Traps) Branches() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BindingCount reports how many branches bind the given tap. Taps are
// compared by identity, so two instances pointing at the same path count as
// the same trap.
func (t Traps) BindingCount(tap *Tap) int {
	count := 0
	for _, bound := range t {
		if bound != nil && bound.Identifier() == tap.Identifier() {
			count++
		}
	}
	return count
}
