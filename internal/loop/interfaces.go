// internal/loop/interfaces.go
package loop

import (
	"context"

	"github.com/xkilldash9x/franz-cli/internal/engine"
)

// FrameSource captures the current state of the surface as a perception frame.
type FrameSource interface {
	Capture(ctx context.Context) (engine.Frame, error)
}

// InferenceClient asks the model for one tool invocation. Errors are
// transport-level only; a response that reached us but is unusable comes back
// as a zero invocation and is rejected during interpretation.
type InferenceClient interface {
	Decide(ctx context.Context, req engine.Request) (engine.RawInvocation, error)
}

// ActionExecutor applies a committing action to the surface.
type ActionExecutor interface {
	Execute(ctx context.Context, action engine.Action) error
}
