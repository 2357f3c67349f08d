package stepgraph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowplan/internal/element"
	"github.com/vk/flowplan/internal/metrics"
	"github.com/vk/flowplan/internal/partition"
	"github.com/vk/flowplan/internal/planerr"
	"github.com/vk/flowplan/internal/step"
)

// elementGraph builds an element graph from elements and "from->to" pairs.
func elementGraph(t *testing.T, elems []element.Element, edges ...[2]string) *element.Graph {
	t.Helper()
	g := element.New()
	for _, e := range elems {
		require.NoError(t, g.Add(e))
	}
	for _, e := range edges {
		require.NoError(t, g.Connect(e[0], e[1], element.Scope{}))
	}
	return g
}

// chain is in -> parse -> mid -> count -> out.
func chain(t *testing.T) *element.Graph {
	return elementGraph(t,
		[]element.Element{
			&element.Tap{Name: "in", Path: "/in"},
			&element.Operator{Name: "parse"},
			&element.Tap{Name: "mid", Path: "/mid", Temporary: true},
			&element.Operator{Name: "count"},
			&element.Tap{Name: "out", Path: "/out"},
		},
		[2]string{"in", "parse"},
		[2]string{"parse", "mid"},
		[2]string{"mid", "count"},
		[2]string{"count", "out"},
	)
}

func TestBuild_Chain(t *testing.T) {
	g, err := NewBuilder(nil, nil).Build(context.Background(), "wordcount", chain(t), nil)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	first, _ := g.Step(0)
	second, _ := g.Step(1)
	assert.Equal(t, "(1/2) /mid", first.Name())
	assert.Equal(t, "(2/2) /out", second.Name())
	assert.Equal(t, 1, first.Ordinal())
	assert.Equal(t, 2, second.Ordinal())
	assert.Equal(t, "wordcount", first.FlowName())
	assert.Equal(t, step.DefaultSubmitPriority, first.Priority())

	require.Len(t, second.Sources(), 1)
	assert.Equal(t, "/mid", second.Sources()[0].Identifier())
	assert.Equal(t, []Edge{{From: 0, To: 1}}, g.Edges())
}

func TestBuild_FoldsBoundariesSharingASink(t *testing.T) {
	g := elementGraph(t,
		[]element.Element{
			&element.Tap{Name: "a", Path: "/a"},
			&element.Tap{Name: "b", Path: "/b"},
			&element.Operator{Name: "left"},
			&element.Operator{Name: "right"},
			&element.Group{Name: "join"},
			&element.Tap{Name: "out", Path: "/out"},
		},
		[2]string{"a", "left"},
		[2]string{"b", "right"},
		[2]string{"left", "join"},
		[2]string{"right", "join"},
		[2]string{"join", "out"},
	)

	sg, err := NewBuilder(nil, nil).Build(context.Background(), "join", g, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sg.Len())

	s, _ := sg.Step(0)
	assert.Equal(t, "(1/1) /out", s.Name())
	require.Len(t, s.Sources(), 2)
	assert.Equal(t, "/a", s.Sources()[0].Identifier())
	assert.Equal(t, "/b", s.Sources()[1].Identifier())
	require.NotNil(t, s.Group())
	assert.Equal(t, "join", s.Group().Name)
}

func TestBuild_AttachesTraps(t *testing.T) {
	trap := &element.Tap{Name: "bad_records", Path: "/trap/parse"}
	traps := element.Traps{"parse": trap}

	g, err := NewBuilder(nil, nil).Build(context.Background(), "wordcount", chain(t), traps)
	require.NoError(t, err)

	first, _ := g.Step(0)
	got, ok := first.Trap("parse")
	require.True(t, ok)
	assert.Same(t, trap, got)

	second, _ := g.Step(1)
	assert.Empty(t, second.Traps())
}

func TestBuild_TrapReuse(t *testing.T) {
	trap := &element.Tap{Name: "bad", Path: "/trap"}
	copyOfTrap := &element.Tap{Name: "bad_again", Path: "/trap"}

	tests := []struct {
		name  string
		traps element.Traps
	}{
		{name: "same tap", traps: element.Traps{"parse": trap, "count": trap}},
		{name: "same path", traps: element.Traps{"parse": trap, "count": copyOfTrap}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(nil, nil).Build(context.Background(), "wordcount", chain(t), tt.traps)
			require.Error(t, err)
			assert.True(t, errors.Is(err, planerr.ErrTrapReuse))

			var pe *planerr.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "/trap", pe.Tap)
			assert.Contains(t, err.Error(), "traps must be unique")
		})
	}
}

func TestBuild_GroupConflict(t *testing.T) {
	g := elementGraph(t,
		[]element.Element{
			&element.Tap{Name: "a", Path: "/a"},
			&element.Tap{Name: "b", Path: "/b"},
			&element.Group{Name: "g1"},
			&element.Group{Name: "g2"},
			&element.Tap{Name: "out", Path: "/out"},
		},
		[2]string{"a", "g1"},
		[2]string{"b", "g2"},
		[2]string{"g1", "out"},
		[2]string{"g2", "out"},
	)

	_, err := NewBuilder(nil, nil).Build(context.Background(), "f", g, nil)
	require.Error(t, err)
	assert.Equal(t, planerr.KindGroupConflict, planerr.KindOf(err))
	assert.Contains(t, err.Error(), "[/out]")
}

func TestBuild_Cycle(t *testing.T) {
	g := elementGraph(t,
		[]element.Element{
			&element.Tap{Name: "a", Path: "/a"},
			&element.Operator{Name: "ab"},
			&element.Tap{Name: "b", Path: "/b"},
			&element.Operator{Name: "ba"},
		},
		[2]string{"a", "ab"},
		[2]string{"ab", "b"},
		[2]string{"b", "ba"},
		[2]string{"ba", "a"},
	)

	_, err := NewBuilder(nil, nil).Build(context.Background(), "loop", g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, planerr.ErrCycle))
}

// fixedStrategy returns canned boundaries and delegates the path policy.
type fixedStrategy struct {
	boundaries []partition.Boundary
	err        error
	policy     func(element.Path) error
}

func (s fixedStrategy) Boundaries(context.Context, *element.Graph) ([]partition.Boundary, error) {
	return s.boundaries, s.err
}

func (s fixedStrategy) IllegalPath(p element.Path) error { return s.policy(p) }

func TestBuild_IllegalPath(t *testing.T) {
	in := &element.Tap{Name: "in", Path: "/in"}
	mid := &element.Tap{Name: "mid", Path: "/mid"}
	out := &element.Tap{Name: "out", Path: "/out"}
	op := &element.Operator{Name: "op"}
	boundaries := []partition.Boundary{{
		Sink:    out,
		Sources: []*element.Tap{in},
		Paths:   []element.Path{{in, op, mid, out}},
	}}

	t.Run("strict", func(t *testing.T) {
		strategy := fixedStrategy{boundaries: boundaries, policy: partition.TapStrategy{}.IllegalPath}
		_, err := NewBuilder(nil, strategy).Build(context.Background(), "f", element.New(), nil)
		require.Error(t, err)
		assert.Equal(t, planerr.KindIllegalPath, planerr.KindOf(err))
		assert.Contains(t, err.Error(), "in -> op -> mid -> out")
	})

	t.Run("permissive", func(t *testing.T) {
		strategy := partition.Permissive{Strategy: fixedStrategy{boundaries: boundaries, policy: func(element.Path) error { return nil }}}
		_, err := NewBuilder(nil, strategy).Build(context.Background(), "f", element.New(), nil)
		require.Error(t, err)
		assert.Equal(t, planerr.KindSplitRequired, planerr.KindOf(err))
		assert.Contains(t, err.Error(), "required at [/mid]")
	})

	t.Run("policy returning nil still rejects", func(t *testing.T) {
		strategy := fixedStrategy{boundaries: boundaries, policy: func(element.Path) error { return nil }}
		_, err := NewBuilder(nil, strategy).Build(context.Background(), "f", element.New(), nil)
		assert.Equal(t, planerr.KindIllegalPath, planerr.KindOf(err))
	})
}

// bypass is a -> op1 -> b -> op2 -> c plus a -> op3 -> c: the step writing c
// reads a directly, and a also reaches c through the intermediate tap b.
func bypass(t *testing.T) *element.Graph {
	return elementGraph(t,
		[]element.Element{
			&element.Tap{Name: "a", Path: "/a"},
			&element.Operator{Name: "op1"},
			&element.Tap{Name: "b", Path: "/b", Temporary: true},
			&element.Operator{Name: "op2"},
			&element.Operator{Name: "op3"},
			&element.Tap{Name: "c", Path: "/c"},
		},
		[2]string{"a", "op1"},
		[2]string{"op1", "b"},
		[2]string{"b", "op2"},
		[2]string{"op2", "c"},
		[2]string{"a", "op3"},
		[2]string{"op3", "c"},
	)
}

func TestBuild_IllegalElementPath(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		_, err := NewBuilder(nil, partition.TapStrategy{}).Build(context.Background(), "f", bypass(t), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, planerr.ErrIllegalPath))
		assert.Contains(t, err.Error(), "a -> op1 -> b -> op2 -> c")
		assert.Contains(t, err.Error(), "path visits 3 taps")
	})

	t.Run("permissive", func(t *testing.T) {
		strategy := partition.Permissive{Strategy: partition.TapStrategy{}}
		_, err := NewBuilder(nil, strategy).Build(context.Background(), "f", bypass(t), nil)
		require.Error(t, err)
		assert.Equal(t, planerr.KindSplitRequired, planerr.KindOf(err))
		assert.Contains(t, err.Error(), "required at [/b]")
	})

	t.Run("without the bypass", func(t *testing.T) {
		g := elementGraph(t,
			[]element.Element{
				&element.Tap{Name: "a", Path: "/a"},
				&element.Operator{Name: "op1"},
				&element.Tap{Name: "b", Path: "/b", Temporary: true},
				&element.Operator{Name: "op2"},
				&element.Tap{Name: "c", Path: "/c"},
			},
			[2]string{"a", "op1"},
			[2]string{"op1", "b"},
			[2]string{"b", "op2"},
			[2]string{"op2", "c"},
		)
		sg, err := NewBuilder(nil, partition.TapStrategy{}).Build(context.Background(), "f", g, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, sg.Len())
	})
}

func TestBuild_SelfLoopIsCycle(t *testing.T) {
	tap := &element.Tap{Name: "t", Path: "/t"}
	strategy := fixedStrategy{boundaries: []partition.Boundary{{
		Sink:    tap,
		Sources: []*element.Tap{tap},
		Paths:   []element.Path{{tap, &element.Operator{Name: "op"}, tap}},
	}}}

	_, err := NewBuilder(nil, strategy).Build(context.Background(), "f", element.New(), nil)
	assert.True(t, errors.Is(err, planerr.ErrCycle))
}

func TestBuild_StrategyError(t *testing.T) {
	strategy := fixedStrategy{err: errors.New("boom")}
	_, err := NewBuilder(nil, strategy).Build(context.Background(), "f", element.New(), nil)
	require.Error(t, err)
	assert.Equal(t, planerr.KindPartition, planerr.KindOf(err))
	assert.ErrorContains(t, err, "boom")
}

func TestBuild_UsesFactory(t *testing.T) {
	var names []string
	factory := step.FactoryFunc(func(name string, ordinal int) step.Backend {
		names = append(names, name)
		return &step.BatchStep{StepID: name, Name: name, Ordinal: ordinal, Priority: 7}
	})

	g, err := NewBuilder(factory, nil).Build(context.Background(), "wordcount", chain(t), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"(1/2) /mid", "(2/2) /out"}, names)

	s, _ := g.Step(1)
	assert.Equal(t, 7, s.Priority())
	assert.Equal(t, "(2/2) /out", s.Backend().ID())
}

func TestBuild_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPlanner(reg)
	require.NoError(t, err)
	b := NewBuilder(nil, nil, WithMetrics(m))

	_, err = b.Build(context.Background(), "wordcount", chain(t), nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "flowplan_planner_builds_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestValidateTraps(t *testing.T) {
	a := &element.Tap{Name: "a", Path: "/a"}
	b := &element.Tap{Name: "b", Path: "/b"}

	assert.NoError(t, ValidateTraps(nil))
	assert.NoError(t, ValidateTraps(element.Traps{"x": a, "y": b}))
	assert.Error(t, ValidateTraps(element.Traps{"x": a, "y": a}))
	assert.Equal(t, planerr.KindTrapReuse, planerr.KindOf(ValidateTraps(element.Traps{"x": nil})))
}

func TestIsLegalPath(t *testing.T) {
	in := &element.Tap{Name: "in"}
	out := &element.Tap{Name: "out"}
	op := &element.Operator{Name: "op"}

	assert.True(t, IsLegalPath(element.Path{in, op, out}))
	assert.True(t, IsLegalPath(element.Path{op}))
	assert.False(t, IsLegalPath(element.Path{in, op, &element.Tap{Name: "mid"}, out}))
	assert.Equal(t, 3, CountTaps(element.Path{in, op, &element.Tap{Name: "mid"}, out}))
}

func TestBuild_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := NewBuilder(nil, nil, WithLogger(logger)).Build(context.Background(), "wordcount", chain(t), nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "creating step")
	assert.Contains(t, buf.String(), "sink=/mid")
}

func TestBuild_NilGraph(t *testing.T) {
	_, err := NewBuilder(nil, nil).Build(context.Background(), "f", nil, nil)
	assert.ErrorContains(t, err, "is nil")
}
