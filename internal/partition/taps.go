package partition

import (
	"context"
	"fmt"

	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/element"
	"github.com/vk/flowplan/internal/planerr"
)

// TapStrategy ends a step at every tap that has an upstream and starts one at
// every tap that is read. A grouping point must sit between two taps: a path
// crossing two groups without a tap in between needs a split the element
// graph does not provide.
type TapStrategy struct{}

// Boundaries implements Strategy. It walks every incoming path of each sink
// backwards until it meets a tap and emits one boundary per path.
func (s TapStrategy) Boundaries(ctx context.Context, g *element.Graph) ([]Boundary, error) {
	logger := ctxlog.FromContext(ctx)

	var boundaries []Boundary
	for _, sink := range g.Taps() {
		if len(g.Predecessors(sink.Name)) == 0 {
			continue
		}

		paths, err := upstreamPaths(g, sink)
		if err != nil {
			return nil, err
		}

		for _, path := range paths {
			b, err := boundaryFor(path)
			if err != nil {
				return nil, err
			}
			boundaries = append(boundaries, b)
		}
		logger.Debug("Partitioned sink.", "sink", sink.Identifier(), "paths", len(paths))
	}
	return boundaries, nil
}

// IllegalPath implements Strategy by rejecting the path.
func (s TapStrategy) IllegalPath(path element.Path) error {
	return planerr.IllegalPath(path.String(), len(path.Taps()))
}

// upstreamPaths returns every path that ends at sink and starts at the first
// tap met walking backwards. Paths are returned source first.
func upstreamPaths(g *element.Graph, sink *element.Tap) ([]element.Path, error) {
	var paths []element.Path
	onPath := map[string]bool{sink.Name: true}
	reversed := element.Path{sink}

	var walk func(current element.Element) error
	walk = func(current element.Element) error {
		preds := g.Predecessors(current.ElementName())
		if len(preds) == 0 {
			return &planerr.Error{
				Kind:    planerr.KindPartition,
				Message: fmt.Sprintf("%s %q has no upstream tap", current.Kind(), current.ElementName()),
				Tap:     sink.Identifier(),
			}
		}

		for _, p := range preds {
			if onPath[p.ElementName()] {
				continue
			}
			reversed = append(reversed, p)

			if _, isTap := p.(*element.Tap); isTap {
				paths = append(paths, reverse(reversed))
			} else {
				onPath[p.ElementName()] = true
				if err := walk(p); err != nil {
					return err
				}
				delete(onPath, p.ElementName())
			}

			reversed = reversed[:len(reversed)-1]
		}
		return nil
	}

	if err := walk(sink); err != nil {
		return nil, err
	}
	return paths, nil
}

// boundaryFor turns a source-to-sink path into a boundary.
func boundaryFor(path element.Path) (Boundary, error) {
	b := Boundary{
		Sources: []*element.Tap{path[0].(*element.Tap)},
		Sink:    path[len(path)-1].(*element.Tap),
		Paths:   []element.Path{path},
	}

	seen := make(map[string]bool)
	for _, e := range path {
		if grp, ok := e.(*element.Group); ok {
			if b.Group != nil {
				return Boundary{}, planerr.SplitRequired(fmt.Sprintf("group %q", grp.Name), path.String())
			}
			b.Group = grp
		}
		if br, ok := e.(element.Branched); ok && !seen[br.BranchName()] {
			seen[br.BranchName()] = true
			b.Branches = append(b.Branches, br.BranchName())
		}
	}
	return b, nil
}

func reverse(p element.Path) element.Path {
	out := make(element.Path, len(p))
	for i, e := range p {
		out[len(p)-1-i] = e
	}
	return out
}
