// internal/engine/action.go
package engine

import (
	"fmt"
)

// GridMax is the upper bound of the device-independent coordinate space.
// 0 is the left/top edge, GridMax the right/bottom edge; the executor maps
// grid coordinates onto actual pixels by linear scaling.
const GridMax = 1000

// GridPoint is a position in the device-independent coordinate space.
type GridPoint struct {
	X int
	Y int
}

// ClampGrid forces a raw coordinate into [0, GridMax]. Out-of-range model
// output is clamped, never passed through raw.
func ClampGrid(v float64) int {
	if v < 0 {
		return 0
	}
	if v > GridMax {
		return GridMax
	}
	return int(v)
}

// Action is a validated, normalized instruction ready for execution. Exactly
// one kind-specific payload field is populated, matching Kind; Story carries
// the narrative fragment attributed to the step.
type Action struct {
	Kind     Kind
	Position *GridPoint // click only, already clamped
	Text     *string    // type only
	Delta    *int       // scroll only, positive = downward
	Story    string
}

// Validate enforces the kind/payload invariant. An action with a missing,
// extra or mismatched payload is rejected.
func (a Action) Validate() error {
	wantPosition := a.Kind == KindClick
	wantText := a.Kind == KindType
	wantDelta := a.Kind == KindScroll

	if _, ok := ParseKind(string(a.Kind)); !ok {
		return fmt.Errorf("action has unknown kind %q", a.Kind)
	}
	if (a.Position != nil) != wantPosition {
		return fmt.Errorf("action kind %s: position payload mismatch", a.Kind)
	}
	if (a.Text != nil) != wantText {
		return fmt.Errorf("action kind %s: text payload mismatch", a.Kind)
	}
	if (a.Delta != nil) != wantDelta {
		return fmt.Errorf("action kind %s: delta payload mismatch", a.Kind)
	}
	if a.Position != nil {
		if a.Position.X < 0 || a.Position.X > GridMax || a.Position.Y < 0 || a.Position.Y > GridMax {
			return fmt.Errorf("action position (%d,%d) outside [0,%d]", a.Position.X, a.Position.Y, GridMax)
		}
	}
	return nil
}

// Describe returns a short human-readable summary, used for logging and the
// cycle journal.
func (a Action) Describe() string {
	switch a.Kind {
	case KindClick:
		return fmt.Sprintf("click (%d,%d)", a.Position.X, a.Position.Y)
	case KindType:
		return fmt.Sprintf("type %q", *a.Text)
	case KindScroll:
		return fmt.Sprintf("scroll %+d", *a.Delta)
	default:
		return string(a.Kind)
	}
}
