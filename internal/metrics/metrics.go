// Package metrics records planner metrics with Prometheus.
//
// A planning run is a one-shot batch job, so the usual way to export these
// metrics is a node-exporter textfile written when the run ends (see
// WriteTextfile) rather than a scrape endpoint.
//
// Metrics exported:
//
//   - flowplan_planner_builds_total: counter by outcome (ok, error)
//   - flowplan_planner_errors_total: counter by planning error kind
//   - flowplan_planner_build_duration_seconds: histogram of build durations
//   - flowplan_planner_steps: gauge of steps in the last built graph
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vk/flowplan/internal/planerr"
)

const (
	namespace = "flowplan"
	subsystem = "planner"
)

// Planner holds the planner collectors. A nil *Planner records nothing.
type Planner struct {
	builds   *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration prometheus.Histogram
	steps    prometheus.Gauge
}

// NewPlanner creates the planner collectors and registers them.
func NewPlanner(reg prometheus.Registerer) (*Planner, error) {
	p := &Planner{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "builds_total",
			Help:      "Step graph builds by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Planning errors by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "build_duration_seconds",
			Help:      "Time spent building a step graph.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		steps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "steps",
			Help:      "Number of steps in the last built step graph.",
		}),
	}

	for _, c := range []prometheus.Collector{p.builds, p.errors, p.duration, p.steps} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("planner metrics already registered: %w", err)
			}
			return nil, fmt.Errorf("failed to register planner metrics: %w", err)
		}
	}
	return p, nil
}

// ObserveBuild records one build attempt.
func (p *Planner) ObserveBuild(elapsed time.Duration, steps int, err error) {
	if p == nil {
		return
	}
	p.duration.Observe(elapsed.Seconds())
	if err != nil {
		p.builds.WithLabelValues("error").Inc()
		p.errors.WithLabelValues(planerr.KindOf(err).String()).Inc()
		return
	}
	p.builds.WithLabelValues("ok").Inc()
	p.steps.Set(float64(steps))
}

// WriteTextfile writes everything in g to filename in the text exposition
// format used by the node exporter textfile collector.
func WriteTextfile(filename string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(filename, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", filename, err)
	}
	return nil
}
