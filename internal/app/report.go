package app

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/vk/flowplan/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// FlowReport is the serialisable form of a Plan.
type FlowReport struct {
	Flow  string       `yaml:"flow"`
	Steps []StepReport `yaml:"steps"`
}

// StepReport describes one step in submission order.
type StepReport struct {
	Position int               `yaml:"position"`
	Name     string            `yaml:"name"`
	Backend  string            `yaml:"backend_id"`
	Priority int               `yaml:"priority"`
	Wave     int               `yaml:"wave,omitempty"`
	Status   string            `yaml:"status"`
	Sources  []string          `yaml:"sources"`
	Sink     string            `yaml:"sink"`
	Group    string            `yaml:"group,omitempty"`
	Traps    map[string]string `yaml:"traps,omitempty"`
	After    []string          `yaml:"after,omitempty"`
}

// Report converts a plan into its serialisable form.
func (p *Plan) Report() FlowReport {
	r := FlowReport{Flow: p.Flow, Steps: make([]StepReport, 0, len(p.Order))}
	for i, s := range p.Order {
		sr := StepReport{
			Position: i + 1,
			Name:     s.Name(),
			Priority: s.Priority(),
			Wave:     p.Waves[s.ID()],
			Status:   p.Status[s.ID()].String(),
			Sink:     s.Sink().Identifier(),
		}
		if b := s.Backend(); b != nil {
			sr.Backend = b.ID()
		}
		for _, src := range s.Sources() {
			sr.Sources = append(sr.Sources, src.Identifier())
		}
		if g := s.Group(); g != nil {
			sr.Group = g.Name
		}
		if traps := s.Traps(); len(traps) > 0 {
			sr.Traps = make(map[string]string, len(traps))
			for branch, tap := range traps {
				sr.Traps[branch] = tap.Identifier()
			}
		}
		for _, up := range p.Graph.Predecessors(s.ID()) {
			sr.After = append(sr.After, up.Name())
		}
		r.Steps = append(r.Steps, sr)
	}
	return r
}

func (a *App) report(plans []*Plan) error {
	reports := make([]FlowReport, 0, len(plans))
	for _, p := range plans {
		reports = append(reports, p.Report())
	}

	if a.config.Output == OutputYAML {
		enc := yaml.NewEncoder(a.outW)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeText(a.outW, reports, len(a.config.Fail) > 0)
}

// writeText prints one table per flow.
func writeText(w io.Writer, reports []FlowReport, withStatus bool) error {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "flow %q: %d steps\n", r.Flow, len(r.Steps))

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		header := []string{"#", "WAVE", "PRIORITY", "STEP", "SOURCES", "GROUP", "TRAPS"}
		if withStatus {
			header = append(header, "STATUS")
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))

		for _, s := range r.Steps {
			wave := "-"
			if s.Wave > 0 {
				wave = strconv.Itoa(s.Wave)
			}
			row := []string{
				strconv.Itoa(s.Position),
				wave,
				strconv.Itoa(s.Priority),
				s.Name,
				orDash(strings.Join(s.Sources, ",")),
				orDash(s.Group),
				orDash(formatTraps(s.Traps)),
			}
			if withStatus {
				row = append(row, s.Status)
			}
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func formatTraps(traps map[string]string) string {
	parts := make([]string, 0, len(traps))
	for branch, tap := range traps {
		parts = append(parts, branch+"="+tap)
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// StatusCounts tallies the step statuses of a plan.
func (p *Plan) StatusCounts() map[scheduler.Status]int {
	counts := make(map[scheduler.Status]int)
	for _, st := range p.Status {
		counts[st]++
	}
	return counts
}
