// Package planerr defines the planning error taxonomy. Every structural
// problem the planner finds is reported as an *Error so callers can tell a
// broken pipeline definition apart from I/O or configuration failures.
package planerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a planning failure.
type Kind int

const (
	// KindTrapReuse means one tap is bound as a trap on more than one branch.
	KindTrapReuse Kind = iota + 1
	// KindIllegalPath means a step spans a path through an intermediate tap.
	KindIllegalPath
	// KindSplitRequired means the partitioning policy asks for an extra step
	// boundary instead of rejecting the path outright.
	KindSplitRequired
	// KindGroupConflict means two grouping points landed in the same step.
	KindGroupConflict
	// KindCycle means the step graph is not acyclic.
	KindCycle
	// KindPartition covers strategy failures that fit no other kind.
	KindPartition
)

var kindNames = map[Kind]string{
	KindTrapReuse:     "trap_reuse",
	KindIllegalPath:   "illegal_path",
	KindSplitRequired: "split_required",
	KindGroupConflict: "group_conflict",
	KindCycle:         "cycle",
	KindPartition:     "partition",
}

// String returns the snake_case name of the kind, also used as a metric label.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var (
	// ErrTrapReuse matches any *Error of KindTrapReuse.
	ErrTrapReuse = &Error{Kind: KindTrapReuse, Message: "traps must be unique, cannot be reused on different branches"}
	// ErrIllegalPath matches any *Error of KindIllegalPath.
	ErrIllegalPath = &Error{Kind: KindIllegalPath, Message: "path spans more than one step boundary"}
	// ErrSplitRequired matches any *Error of KindSplitRequired.
	ErrSplitRequired = &Error{Kind: KindSplitRequired, Message: "additional step boundary required"}
	// ErrGroupConflict matches any *Error of KindGroupConflict.
	ErrGroupConflict = &Error{Kind: KindGroupConflict, Message: "step cannot contain more than one group"}
	// ErrCycle matches any *Error of KindCycle.
	ErrCycle = &Error{Kind: KindCycle, Message: "step graph contains a cycle"}
)

// Error is a fatal planning failure.
type Error struct {
	Kind Kind
	// Message is the human readable reason.
	Message string
	// Tap is the identity of the offending tap, if any.
	Tap string
	// Path is the offending element path rendered as text, if any.
	Path string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("planning error: ")
	sb.WriteString(e.Message)
	if e.Tap != "" {
		sb.WriteString(": [")
		sb.WriteString(e.Tap)
		sb.WriteString("]")
	}
	if e.Path != "" {
		sb.WriteString(" (path: ")
		sb.WriteString(e.Path)
		sb.WriteString(")")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a planning error of the same kind. This makes
// the package sentinels usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a planning error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TrapReuse reports a trap tap bound by count branches.
func TrapReuse(tap string, count int) *Error {
	return &Error{
		Kind:    KindTrapReuse,
		Message: fmt.Sprintf("traps must be unique, cannot be reused on different branches (bound %d times)", count),
		Tap:     tap,
	}
}

// IllegalPath reports a path visiting more taps than a single step allows.
func IllegalPath(path string, taps int) *Error {
	return &Error{
		Kind:    KindIllegalPath,
		Message: fmt.Sprintf("path visits %d taps, a step may only span its source and sink", taps),
		Path:    path,
	}
}

// SplitRequired reports that a step boundary is needed at the given tap or
// element.
func SplitRequired(at, path string) *Error {
	return &Error{
		Kind:    KindSplitRequired,
		Message: "additional step boundary required at " + at,
		Path:    path,
	}
}

// Cycle reports a cycle involving the named step.
func Cycle(step string) *Error {
	return &Error{
		Kind:    KindCycle,
		Message: fmt.Sprintf("step graph contains a cycle involving %q", step),
	}
}

// IsPlanning reports whether err wraps a planning error.
func IsPlanning(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// KindOf returns the kind of the first planning error in err's chain, or zero.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
