package step

import (
	"github.com/google/uuid"
)

// DefaultSubmitPriority is the priority a step gets when neither the backend
// nor the sink tap says otherwise. Lower values are submitted first.
const DefaultSubmitPriority = 5

// Backend is the backend-specific half of an execution step, produced by a
// Factory. The planner only needs an identity and a submission priority; the
// rest is for the backend translator.
type Backend interface {
	// ID is unique per created step.
	ID() string
	// SubmitPriority orders steps that are ready at the same time.
	SubmitPriority() int
}

// Factory creates backend steps. Implementations must return a fresh value
// on every call and have no side effects beyond allocation.
type Factory interface {
	CreateStep(name string, ordinal int) Backend
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(name string, ordinal int) Backend

// CreateStep implements Factory.
func (f FactoryFunc) CreateStep(name string, ordinal int) Backend {
	return f(name, ordinal)
}

// BatchStep is the backend value produced by BatchFactory.
type BatchStep struct {
	StepID   string
	Name     string
	Ordinal  int
	Priority int
	// Properties carries backend job settings copied from the factory.
	Properties map[string]string
}

// ID implements Backend.
func (b *BatchStep) ID() string { return b.StepID }

// SubmitPriority implements Backend.
func (b *BatchStep) SubmitPriority() int { return b.Priority }

// BatchFactory is a generic batch-backend factory. Each step gets a random
// UUID, the default priority unless Priorities overrides it by ordinal, and a
// private copy of Properties.
type BatchFactory struct {
	Priorities map[int]int
	Properties map[string]string
}

// CreateStep implements Factory.
func (f *BatchFactory) CreateStep(name string, ordinal int) Backend {
	priority := DefaultSubmitPriority
	if p, ok := f.Priorities[ordinal]; ok {
		priority = p
	}

	props := make(map[string]string, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}

	return &BatchStep{
		StepID:     uuid.New().String(),
		Name:       name,
		Ordinal:    ordinal,
		Priority:   priority,
		Properties: props,
	}
}
