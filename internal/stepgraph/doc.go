// Package stepgraph compiles an element graph and its trap registry into a
// directed acyclic graph of execution steps, and yields those steps in a
// dependency- and priority-respecting submission order.
//
// Construction runs in fixed phases: the partition strategy proposes step
// boundaries, boundaries sharing a sink are folded into one step, every
// spanned path is checked for legality, trap bindings are checked for
// uniqueness, and finally steps are linked by shared taps and checked for
// cycles. The first violation aborts the build with a *planerr.Error.
package stepgraph
