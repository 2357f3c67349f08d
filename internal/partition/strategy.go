// Package partition decides where execution steps begin and end.
//
// The step-graph builder is backend agnostic: it asks a Strategy for the
// candidate step boundaries of an element graph and for the policy to apply
// when a step would span an illegal path. Backends with different notions of
// a unit of work plug in their own Strategy instead of subclassing the
// builder.
package partition

import (
	"context"

	"github.com/vk/flowplan/internal/element"
	"github.com/vk/flowplan/internal/planerr"
)

// Boundary is one candidate step: the sink it writes, the source taps it
// reads and the element paths between them. Several boundaries may name the
// same sink when branches converge; the builder folds them into one step.
type Boundary struct {
	Sink    *element.Tap
	Sources []*element.Tap
	// Group is the grouping point crossed between sources and sink, or nil.
	Group *element.Group
	// Branches are the branch names crossed, used to attach traps.
	Branches []string
	// Paths are the element paths the boundary spans, sources first.
	Paths []element.Path
}

// Strategy partitions an element graph into step boundaries.
type Strategy interface {
	// Boundaries returns the candidate step boundaries in a deterministic
	// order.
	Boundaries(ctx context.Context, g *element.Graph) ([]Boundary, error)

	// IllegalPath is called for every boundary path that visits more than
	// two taps. It returns the error that aborts the build.
	IllegalPath(path element.Path) error
}

// Permissive wraps a strategy so that illegal paths are reported as a request
// for an additional split boundary rather than a hard rejection.
type Permissive struct {
	Strategy
}

// IllegalPath implements Strategy. The split is requested at the first tap
// found strictly inside the path.
func (p Permissive) IllegalPath(path element.Path) error {
	at := path.String()
	if len(path) > 2 {
		for _, e := range path[1 : len(path)-1] {
			if t, ok := e.(*element.Tap); ok {
				at = t.String()
				break
			}
		}
	}
	return planerr.SplitRequired(at, path.String())
}
