// internal/engine/request.go
package engine

import (
	"fmt"
	"strings"
)

// Frame is one captured perception raster, already downsampled to the model's
// input resolution.
type Frame struct {
	PNG    []byte
	Width  int
	Height int
}

// Request is everything an inference client needs to ask the model for one
// decision. It is provider independent; clients translate it to their wire
// format.
type Request struct {
	// Instructions is the standing behavioral policy, sent as the system role.
	Instructions string
	// Story is the narrative carried into this cycle.
	Story string
	// Frame is the current perception raster.
	Frame Frame
	// DisallowObserve tells the client to remove observe from the offered tool
	// set, mechanically forcing a committing or terminal choice.
	DisallowObserve bool
	// RetryNote, when set, is appended to the user turn to tell the model its
	// previous response was unusable.
	RetryNote string
}

// UserText renders the per-cycle user turn that accompanies the frame.
func (r Request) UserText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "The story so far:\n%s\n\n", r.Story)
	b.WriteString("This is what you see now. Continue the story by calling exactly one tool.")
	if r.DisallowObserve {
		b.WriteString("\nYou have been watching too long. You must act now: click, type, scroll, or finish.")
	}
	if r.RetryNote != "" {
		b.WriteString("\n")
		b.WriteString(r.RetryNote)
	}
	return b.String()
}
