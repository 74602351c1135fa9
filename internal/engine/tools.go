// internal/engine/tools.go
package engine

// Kind is an enumeration of the agent's tool set. The set is closed: the
// model's response is interpreted as a tagged variant over exactly these five
// kinds, never as an open-ended dispatch table.
type Kind string

const (
	KindObserve Kind = "observe" // Continue the narrative without acting.
	KindClick   Kind = "click"   // Click a point on the surface.
	KindType    Kind = "type"    // Type text into the focused target.
	KindScroll  Kind = "scroll"  // Scroll the surface vertically.
	KindDone    Kind = "done"    // End the story; terminates the loop.
)

// ParseKind maps a raw tool name onto a known Kind.
func ParseKind(name string) (Kind, bool) {
	switch Kind(name) {
	case KindObserve, KindClick, KindType, KindScroll, KindDone:
		return Kind(name), true
	}
	return "", false
}

// Committing reports whether the kind has an operating-system side effect.
// Observe and Done never reach the executor.
func (k Kind) Committing() bool {
	switch k {
	case KindClick, KindType, KindScroll:
		return true
	}
	return false
}

// Terminal reports whether the kind ends the loop.
func (k Kind) Terminal() bool { return k == KindDone }

// ToolParam describes one parameter of a tool declaration.
type ToolParam struct {
	Name        string
	Type        string // "string" or "number"
	Description string
	Required    bool
}

// ToolSpec is the provider-independent declaration of one tool. Both
// inference clients derive their wire-level function declarations from this
// single source so the contract cannot drift between providers.
type ToolSpec struct {
	Kind        Kind
	Description string
	Params      []ToolParam
}

// storyParam is shared by every tool: each invocation carries the rewritten
// narrative for the step.
var storyParam = ToolParam{
	Name:        "story",
	Type:        "string",
	Description: "Your rewritten narrative for this step",
	Required:    true,
}

// Tools returns the full tool set. Callers must not mutate the result.
func Tools() []ToolSpec {
	return []ToolSpec{
		{
			Kind:        KindObserve,
			Description: "Continue the story with new observations, without acting",
			Params:      []ToolParam{storyParam},
		},
		{
			Kind:        KindClick,
			Description: "Click a point on the screen and update the story",
			Params: []ToolParam{
				{Name: "x", Type: "number", Description: "Horizontal position, 0 (left edge) to 1000 (right edge)", Required: true},
				{Name: "y", Type: "number", Description: "Vertical position, 0 (top edge) to 1000 (bottom edge)", Required: true},
				storyParam,
			},
		},
		{
			Kind:        KindType,
			Description: "Type text into the focused input and update the story",
			Params: []ToolParam{
				{Name: "text", Type: "string", Description: "The text to type", Required: true},
				storyParam,
			},
		},
		{
			Kind:        KindScroll,
			Description: "Scroll the screen vertically and update the story",
			Params: []ToolParam{
				{Name: "dy", Type: "number", Description: "Scroll amount; positive scrolls down", Required: true},
				storyParam,
			},
		},
		{
			Kind:        KindDone,
			Description: "End the story",
			Params:      []ToolParam{storyParam},
		},
	}
}
