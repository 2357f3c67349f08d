package integration_tests

import "github.com/vk/flowplan/internal/step"

func ids(steps []*step.Step) []int {
	out := make([]int, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.ID())
	}
	return out
}

// fanOutHCL shares one intermediate tap between two downstream steps. The
// "fast" branch asks to be submitted first.
const fanOutHCL = `
	flow "fanout" {
		tap "in" {
			path = "/in"
		}
		operator "clean" {
			from = ["in"]
		}
		tap "mid" {
			path      = "/tmp/mid"
			temporary = true
			from      = ["clean"]
		}
		operator "slow_op" {
			from = ["mid"]
		}
		tap "slow" {
			path = "/out/slow"
			from = ["slow_op"]
		}
		operator "fast_op" {
			from = ["mid"]
		}
		tap "fast" {
			path     = "/out/fast"
			priority = 1
			from     = ["fast_op"]
		}
	}
`
