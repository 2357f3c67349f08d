// Package dot renders step graphs in Graphviz DOT format for debugging.
//
// Export is best effort. A failure to write the file is logged and never
// reaches the caller, so a broken diagnostics path cannot fail a plan.
package dot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/step"
	"github.com/vk/flowplan/internal/stepgraph"
)

// Write renders g as a DOT digraph. Nodes are numbered from 1 in step ID
// order; edges carry no label.
func Write(w io.Writer, g *stepgraph.Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph G {")
	for _, s := range g.Steps() {
		fmt.Fprintf(bw, "  %d [ label = \"%s\" ];\n", s.ID()+1, Label(s))
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "  %d -> %d;\n", e.From+1, e.To+1)
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}

// Label composes the node label of a step: its name, the non-temporary
// sources, the group and the sink unless it is temporary. Lines are joined
// with a literal \n escape and double quotes become apostrophes.
func Label(s *step.Step) string {
	var sb strings.Builder
	sb.WriteString("[" + s.Name() + "]")

	var sources strings.Builder
	for _, src := range s.Sources() {
		if src.Temporary {
			continue
		}
		sources.WriteString("[" + src.Identifier() + "]")
	}
	if sources.Len() > 0 {
		sb.WriteString(`\nsrc:` + sources.String())
	}

	if grp := s.Group(); grp != nil && grp.Name != "" {
		sb.WriteString(`\ngrp:` + grp.Name)
	}

	if sink := s.Sink(); sink != nil && !sink.Temporary {
		sb.WriteString(`\nsnk:[` + sink.Identifier() + "]")
	}

	return strings.ReplaceAll(sb.String(), `"`, "'")
}

// Export writes g to filename. Errors are logged, not returned.
func Export(ctx context.Context, g *stepgraph.Graph, filename string) {
	logger := ctxlog.FromContext(ctx).With("file", filename)

	f, err := os.Create(filename)
	if err != nil {
		logger.Error("failed printing graph", "error", err)
		return
	}
	if err := Write(f, g); err != nil {
		logger.Error("failed printing graph", "error", err)
		_ = f.Close()
		return
	}
	if err := f.Close(); err != nil {
		logger.Error("failed printing graph", "error", err)
		return
	}
	logger.Debug("Step graph exported.", "steps", g.Len())
}
