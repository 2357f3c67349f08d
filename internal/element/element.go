// This file defines the element variants that make up a pipeline graph.

package element

// Kind distinguishes the element variants.
type Kind int

const (
	// KindTap is an external data source or sink.
	KindTap Kind = iota
	// KindOperator is a record-at-a-time processing element.
	KindOperator
	// KindGroup is a grouping point (a shuffle boundary on batch backends).
	KindGroup
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTap:
		return "tap"
	case KindOperator:
		return "operator"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Element is a node in the element graph.
type Element interface {
	// ElementName is the unique name of the element inside its graph.
	ElementName() string
	// Kind reports which variant the element is.
	Kind() Kind
}

// Tap is a named external dataset.
type Tap struct {
	Name string
	// Path is the dataset location (path or URI). It is the tap's identity.
	Path string
	// Temporary marks intermediate, backend-managed datasets.
	Temporary bool
	// SubmitPriority overrides the submission priority of the step sinking
	// into this tap. Zero means unset.
	SubmitPriority int
}

// ElementName implements Element.
func (t *Tap) ElementName() string { return t.Name }

// Kind implements Element.
func (t *Tap) Kind() Kind { return KindTap }

// Identifier returns the identity used to deduplicate sinks and sources.
func (t *Tap) Identifier() string {
	if t.Path != "" {
		return t.Path
	}
	return t.Name
}

// String returns the tap identity in brackets, which is how taps show up in
// planner error messages.
func (t *Tap) String() string {
	if t == nil {
		return "[<nil>]"
	}
	return "[" + t.Identifier() + "]"
}

// Operator is a processing element that belongs to a named branch.
type Operator struct {
	Name string
	// Branch is the pipe branch the operator belongs to. Traps are bound by
	// branch name. Empty means the operator name.
	Branch string
}

// ElementName implements Element.
func (o *Operator) ElementName() string { return o.Name }

// Kind implements Element.
func (o *Operator) Kind() Kind { return KindOperator }

// BranchName returns the branch the operator belongs to.
func (o *Operator) BranchName() string {
	if o.Branch != "" {
		return o.Branch
	}
	return o.Name
}

// Group is a grouping point. At most one group may live inside a step.
type Group struct {
	Name   string
	Branch string
}

// ElementName implements Element.
func (g *Group) ElementName() string { return g.Name }

// Kind implements Element.
func (g *Group) Kind() Kind { return KindGroup }

// BranchName returns the branch the group belongs to.
func (g *Group) BranchName() string {
	if g.Branch != "" {
		return g.Branch
	}
	return g.Name
}

// Branched is implemented by elements that belong to a trap-able branch.
type Branched interface {
	Element
	BranchName() string
}

// Scope is the edge between two elements. The field list is carried for
// diagnostics only; the planner only looks at connectivity.
type Scope struct {
	Fields []string
}
