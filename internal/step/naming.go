package step

import (
	"fmt"
	"unicode/utf8"
)

// maxNamePathLen bounds the sink path portion of a step name, in characters.
const maxNamePathLen = 75

// ellipsis prefixes truncated sink paths.
const ellipsis = "..."

// NameFor returns the display name of the step created after count others,
// out of an expected total. Sink paths longer than 75 characters keep only
// their trailing 75 characters behind an ellipsis.
func NameFor(count, total int, sinkPath string) string {
	if utf8.RuneCountInString(sinkPath) > maxNamePathLen {
		runes := []rune(sinkPath)
		sinkPath = ellipsis + string(runes[len(runes)-maxNamePathLen:])
	}
	return fmt.Sprintf("(%d/%d) %s", count+1, total, sinkPath)
}
