package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowplan/internal/app"
	"github.com/vk/flowplan/internal/testutil"
)

func TestPlan_ChainSplitsAtIntermediateTap(t *testing.T) {
	// --- Arrange ---
	gridHCL := `
		flow "wordcount" {
			tap "docs" {
				path = "/data/docs"
			}
			operator "tokenize" {
				from = ["docs"]
			}
			tap "tokens" {
				path      = "/tmp/tokens"
				temporary = true
				from      = ["tokenize"]
			}
			group "by_word" {
				from = ["tokens"]
			}
			operator "count" {
				from = ["by_word"]
			}
			tap "counts" {
				path = "/data/counts"
				from = ["count"]
			}
		}
	`
	files := map[string]string{"flows/main.hcl": gridHCL}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, app.Config{})

	// --- Assert ---
	require.NoError(t, result.Err, "planning should not produce an error")
	p := result.Plan(t, "wordcount")

	testutil.AssertStepCreated(t, result, "/tmp/tokens")
	testutil.AssertStepCreated(t, result, "/data/counts")
	testutil.AssertOrder(t, p, "/tmp/tokens", "/data/counts")
	assert.Equal(t, []string{"(1/2) /tmp/tokens", "(2/2) /data/counts"}, testutil.StepNames(p))

	first, second := p.Order[0], p.Order[1]
	assert.Nil(t, first.Group())
	require.NotNil(t, second.Group())
	assert.Equal(t, "by_word", second.Group().Name)
	assert.Equal(t, []int{first.ID()}, ids(p.Graph.Predecessors(second.ID())))
	assert.Equal(t, 1, p.Waves[first.ID()])
	assert.Equal(t, 2, p.Waves[second.ID()])

	assert.Contains(t, result.Output, `flow "wordcount": 2 steps`)
}

func TestPlan_FanIn(t *testing.T) {
	// --- Arrange ---
	gridHCL := `
		flow "join" {
			tap "left" {
				path = "/in/left"
			}
			tap "right" {
				path = "/in/right"
			}
			operator "merge" {
				from = ["left", "right"]
			}
			tap "out" {
				path = "/out"
				from = ["merge"]
			}
		}
	`

	// --- Act ---
	result := testutil.RunIntegrationTest(t, map[string]string{"main.hcl": gridHCL}, app.Config{})

	// --- Assert ---
	require.NoError(t, result.Err)
	p := result.Plan(t, "join")
	require.Len(t, p.Order, 1, "both sources feed a single step")

	var sources []string
	for _, src := range p.Order[0].Sources() {
		sources = append(sources, src.Identifier())
	}
	assert.ElementsMatch(t, []string{"/in/left", "/in/right"}, sources)
}
