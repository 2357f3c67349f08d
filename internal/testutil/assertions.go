package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowplan/internal/app"
)

// AssertStepCreated checks the log output within a HarnessResult to confirm
// that the builder created a step for the given sink path.
func AssertStepCreated(t *testing.T, result *HarnessResult, sinkPath string) {
	t.Helper()

	expected := fmt.Sprintf("sink=%s", sinkPath)
	require.True(t,
		strings.Contains(result.LogOutput, expected),
		"expected a step with sink %q in the logs", sinkPath,
	)
}

// StepNames lists the names of a plan's steps in submission order.
func StepNames(p *app.Plan) []string {
	names := make([]string, 0, len(p.Order))
	for _, s := range p.Order {
		names = append(names, s.Name())
	}
	return names
}

// AssertOrder checks that the plan submits the given sink paths in exactly
// this order.
func AssertOrder(t *testing.T, p *app.Plan, sinkPaths ...string) {
	t.Helper()

	got := make([]string, 0, len(p.Order))
	for _, s := range p.Order {
		got = append(got, s.Sink().Identifier())
	}
	assert.Equal(t, sinkPaths, got, "unexpected submission order for flow %q", p.Flow)
}
