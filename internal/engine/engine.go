// internal/engine/engine.go

// Package engine holds the decision core: the closed tool set, the
// validation that turns an untrusted model invocation into a normalized
// Action, and the bounded narrative state that threads between cycles.
// It performs no I/O; capture, inference and execution live elsewhere.
package engine

import (
	"strings"

	"go.uber.org/zap"
)

// Engine interprets model invocations against the narrative state.
type Engine struct {
	logger          *zap.Logger
	maxObservations int
}

// New creates an Engine. maxObservations is the number of consecutive observe
// actions accepted before a committing action is forced.
func New(logger *zap.Logger, maxObservations int) *Engine {
	if maxObservations < 1 {
		maxObservations = 1
	}
	return &Engine{
		logger:          logger.Named("engine"),
		maxObservations: maxObservations,
	}
}

// instructions is the standing behavioral policy. It addresses the agent
// directly: imperatives visible on screen are its objectives, and the story
// must be rewritten whole each step.
var instructions = strings.TrimSpace(`
You are Franz, a small agent living inside a screen. Each turn you are shown
what the screen looks like right now, together with the story of your run so
far.

Rules of your existence:
- Read the screen. If it addresses you with an instruction, that instruction
  is your current objective.
- Do not click anything that looks destructive (delete, remove, pay, confirm
  purchase) unless the screen explicitly tells you to.
- Every turn, call exactly one tool. There is no other way to respond.
- Every tool call rewrites your story from scratch. The story is your only
  memory; anything you leave out is forgotten. Keep it short and concrete.
- Watching is allowed, but not forever. If nothing changes, act.
- When your objective is complete, or nothing meaningful remains to do, call
  done and close the story.
`)

// BuildRequest assembles the provider-independent inference request for the
// current cycle. Observe is withheld once the consecutive observation window
// is full, so a retried cycle after a stall violation cannot stall again.
func (e *Engine) BuildRequest(frame Frame, ns Narrative) Request {
	return Request{
		Instructions:    instructions,
		Story:           ns.Story,
		Frame:           frame,
		DisallowObserve: ns.ConsecutiveObservations >= e.maxObservations,
	}
}

// Interpret validates a raw invocation and, on success, folds it into the
// narrative state and returns the normalized action. On failure the narrative
// is untouched: no story update, no step advance, no counter change.
func (e *Engine) Interpret(inv RawInvocation, ns *Narrative) (Action, error) {
	kind, ok := ParseKind(inv.Name)
	if !ok {
		return Action{}, &MalformedInvocationError{Name: inv.Name, Reason: "unknown tool"}
	}

	// The stall check happens before any state update so a rejected observe
	// leaves the window exactly as it was.
	if kind == KindObserve && ns.ConsecutiveObservations >= e.maxObservations {
		return Action{}, &StallViolationError{
			Consecutive: ns.ConsecutiveObservations,
			Limit:       e.maxObservations,
		}
	}

	action := Action{Kind: kind}
	switch kind {
	case KindClick:
		if inv.Args.X == nil || inv.Args.Y == nil {
			return Action{}, &MalformedInvocationError{Name: inv.Name, Reason: "click requires x and y"}
		}
		action.Position = &GridPoint{X: ClampGrid(*inv.Args.X), Y: ClampGrid(*inv.Args.Y)}
	case KindType:
		if inv.Args.Text == nil {
			return Action{}, &MalformedInvocationError{Name: inv.Name, Reason: "type requires text"}
		}
		if *inv.Args.Text == "" {
			e.logger.Warn("Type action with empty text")
		}
		text := *inv.Args.Text
		action.Text = &text
	case KindScroll:
		if inv.Args.DeltaY == nil {
			return Action{}, &MalformedInvocationError{Name: inv.Name, Reason: "scroll requires dy"}
		}
		delta := int(*inv.Args.DeltaY)
		action.Delta = &delta
	}

	// The story fully replaces the previous one. A model that omits it keeps
	// the prior story rather than wiping memory.
	story := ns.Story
	if inv.Args.Story != nil && *inv.Args.Story != "" {
		story = *inv.Args.Story
	}
	action.Story = story

	if err := action.Validate(); err != nil {
		return Action{}, &MalformedInvocationError{Name: inv.Name, Reason: err.Error()}
	}

	ns.Story = story
	ns.StepIndex++
	if kind == KindObserve {
		ns.ConsecutiveObservations++
	} else {
		ns.ConsecutiveObservations = 0
	}

	e.logger.Debug("interpreted invocation",
		zap.String("kind", string(kind)),
		zap.Int("step", ns.StepIndex),
		zap.Int("consecutive_observations", ns.ConsecutiveObservations),
	)
	return action, nil
}

// MaxObservations exposes the anti-stall window size.
func (e *Engine) MaxObservations() int { return e.maxObservations }
