// internal/engine/narrative.go
package engine

// Narrative is the agent's only persistent state between cycles. Memory is
// bounded by construction: Story is fully replaced each step, so state never
// grows with the length of the run.
type Narrative struct {
	// Story is the agent's self-authored account of the run so far.
	Story string
	// StepIndex counts successfully interpreted cycles. Rejected invocations
	// do not advance it.
	StepIndex int
	// ConsecutiveObservations counts the current uninterrupted run of observe
	// actions. Any committing or terminal action resets it.
	ConsecutiveObservations int
}

// NewNarrative returns the state for a fresh run, seeded with an opening story.
func NewNarrative(seed string) Narrative {
	return Narrative{Story: seed}
}
