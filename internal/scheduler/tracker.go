package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/step"
	"github.com/vk/flowplan/internal/stepgraph"
)

// Status is the submission state of one step.
type Status int

const (
	// Pending steps have not been handed out yet.
	Pending Status = iota
	// Submitted steps were handed to a backend and have not reported back.
	Submitted
	// Completed steps finished successfully; their sink is available.
	Completed
	// Failed steps reported an error.
	Failed
	// Skipped steps were withdrawn because an upstream step failed.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Submitted:
		return "submitted"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Tracker records the status of every step in a step graph. It is safe for
// concurrent use.
type Tracker struct {
	mutex  sync.Mutex
	graph  *stepgraph.Graph
	order  []*step.Step
	status []Status
	err    error
}

// New creates a tracker with every step pending. It fails if the graph
// cannot be ordered.
func New(g *stepgraph.Graph) (*Tracker, error) {
	order, err := stepgraph.Order(g)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		graph:  g,
		order:  order,
		status: make([]Status, g.Len()),
	}, nil
}

// Ready returns the pending steps whose upstream steps have all completed,
// in submission order.
func (t *Tracker) Ready() []*step.Step {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var ready []*step.Step
	for _, s := range t.order {
		if t.status[s.ID()] == Pending && t.upstreamDone(s.ID()) {
			ready = append(ready, s)
		}
	}
	return ready
}

// MarkSubmitted records that a ready step was handed to a backend.
func (t *Tracker) MarkSubmitted(id int) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.expect(id, Pending); err != nil {
		return err
	}
	if !t.upstreamDone(id) {
		return fmt.Errorf("step %d is not ready: upstream steps have not completed", id)
	}
	t.status[id] = Submitted
	return nil
}

// MarkCompleted records that a submitted step finished successfully.
func (t *Tracker) MarkCompleted(id int) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.expect(id, Submitted); err != nil {
		return err
	}
	t.status[id] = Completed
	return nil
}

// MarkFailed records that a submitted step failed and skips every pending
// step downstream of it. The skipped steps are returned.
func (t *Tracker) MarkFailed(ctx context.Context, id int, cause error) ([]*step.Step, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.expect(id, Submitted); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	failed, _ := t.graph.Step(id)
	t.status[id] = Failed
	if t.err == nil {
		t.err = fmt.Errorf("step %q failed: %w", failed.Name(), cause)
	}
	logger.Error("Step failed.", "step", failed.Name(), "error", cause)

	var skipped []*step.Step
	for _, s := range t.graph.Downstream(id) {
		if t.status[s.ID()] != Pending {
			continue
		}
		logger.Warn("Skipping dependent step due to upstream failure.", "step", s.Name(), "dependency", failed.Name())
		t.status[s.ID()] = Skipped
		skipped = append(skipped, s)
	}
	return skipped, nil
}

// Status returns the status of a step. Unknown IDs report Pending.
func (t *Tracker) Status(id int) Status {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if id < 0 || id >= len(t.status) {
		return Pending
	}
	return t.status[id]
}

// Done reports whether no step is pending or submitted anymore.
func (t *Tracker) Done() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, s := range t.status {
		if s == Pending || s == Submitted {
			return false
		}
	}
	return true
}

// Err returns the first failure recorded, or nil.
func (t *Tracker) Err() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.err
}

func (t *Tracker) expect(id int, want Status) error {
	if id < 0 || id >= len(t.status) {
		return fmt.Errorf("step %d not found", id)
	}
	if got := t.status[id]; got != want {
		return fmt.Errorf("step %d is %s, expected %s", id, got, want)
	}
	return nil
}

func (t *Tracker) upstreamDone(id int) bool {
	for _, p := range t.graph.Predecessors(id) {
		if t.status[p.ID()] != Completed {
			return false
		}
	}
	return true
}
