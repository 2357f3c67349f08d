package stepgraph

import (
	"container/heap"
	"iter"

	"github.com/vk/flowplan/internal/planerr"
	"github.com/vk/flowplan/internal/step"
)

// Iterator yields steps in submission order: a step is only yielded after
// every step it depends on, and among the steps ready at the same time the
// one with the lowest priority value goes first. Ready steps with equal
// priority leave in the order they became ready; the initial roots become
// ready in ID order.
//
// An Iterator is lazy and cannot be restarted.
type Iterator struct {
	steps    []*step.Step
	succ     [][]int
	inDegree []int
	ready    readyQueue
	seq      int
	emitted  int
	done     bool
	err      error
}

// Iterate returns a submission-order iterator over a snapshot of the graph.
func (g *Graph) Iterate() *Iterator {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	it := &Iterator{
		steps:    append([]*step.Step(nil), g.steps...),
		succ:     make([][]int, len(g.succ)),
		inDegree: make([]int, len(g.steps)),
	}
	for id, succ := range g.succ {
		it.succ[id] = append([]int(nil), succ...)
	}
	for id, preds := range g.pred {
		it.inDegree[id] = len(preds)
	}
	for id, deg := range it.inDegree {
		if deg == 0 {
			it.push(id)
		}
	}
	return it
}

// Next returns the next step to submit. It returns false once every step was
// yielded or when the remaining steps can never become ready, in which case
// Err reports the cycle.
func (it *Iterator) Next() (*step.Step, bool) {
	if it.done {
		return nil, false
	}
	if it.ready.Len() == 0 {
		it.done = true
		if it.emitted < len(it.steps) {
			it.err = it.cycleError()
		}
		return nil, false
	}

	item := heap.Pop(&it.ready).(readyItem)
	it.emitted++
	for _, next := range it.succ[item.id] {
		it.inDegree[next]--
		if it.inDegree[next] == 0 {
			it.push(next)
		}
	}
	return it.steps[item.id], true
}

// Err returns the error that stopped iteration early, if any.
func (it *Iterator) Err() error {
	return it.err
}

// All adapts the iterator to a range-over-func sequence. Check Err after the
// loop ends.
func (it *Iterator) All() iter.Seq[*step.Step] {
	return func(yield func(*step.Step) bool) {
		for {
			s, ok := it.Next()
			if !ok || !yield(s) {
				return
			}
		}
	}
}

// Order drains a fresh iterator into a slice.
func Order(g *Graph) ([]*step.Step, error) {
	it := g.Iterate()
	out := make([]*step.Step, 0, g.Len())
	for s := range it.All() {
		out = append(out, s)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (it *Iterator) push(id int) {
	heap.Push(&it.ready, readyItem{id: id, priority: it.steps[id].Priority(), seq: it.seq})
	it.seq++
}

// cycleError names the lowest-ID step that never became ready.
func (it *Iterator) cycleError() error {
	for id, deg := range it.inDegree {
		if deg > 0 {
			return planerr.Cycle(it.steps[id].Name())
		}
	}
	return planerr.New(planerr.KindCycle, "step graph iteration stopped after %d of %d steps", it.emitted, len(it.steps))
}

type readyItem struct {
	id       int
	priority int
	seq      int
}

// readyQueue is a min-heap on (priority, seq).
type readyQueue []readyItem

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(readyItem)) }

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
