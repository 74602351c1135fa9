// internal/loop/mocks_test.go
package loop

import (
	"context"

	"github.com/xkilldash9x/franz-cli/internal/engine"
)

// mockFrames serves frames from a function, counting calls.
type mockFrames struct {
	captures int
	fn       func(call int) (engine.Frame, error)
}

func (m *mockFrames) Capture(ctx context.Context) (engine.Frame, error) {
	m.captures++
	if m.fn != nil {
		return m.fn(m.captures)
	}
	return engine.Frame{PNG: []byte{1}, Width: 512, Height: 288}, nil
}

// mockClient scripts one invocation (or transport error) per Decide call.
type mockClient struct {
	calls    int
	requests []engine.Request
	fn       func(call int, req engine.Request) (engine.RawInvocation, error)
}

func (m *mockClient) Decide(ctx context.Context, req engine.Request) (engine.RawInvocation, error) {
	m.calls++
	m.requests = append(m.requests, req)
	return m.fn(m.calls, req)
}

// mockExecutor records executed actions.
type mockExecutor struct {
	executed []engine.Action
	fn       func(action engine.Action) error
}

func (m *mockExecutor) Execute(ctx context.Context, action engine.Action) error {
	m.executed = append(m.executed, action)
	if m.fn != nil {
		return m.fn(action)
	}
	return nil
}

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }

func observeInv(story string) engine.RawInvocation {
	return engine.RawInvocation{Name: "observe", Args: engine.RawArgs{Story: strPtr(story)}}
}

func clickInv(x, y float64, story string) engine.RawInvocation {
	return engine.RawInvocation{Name: "click", Args: engine.RawArgs{
		X: f64Ptr(x), Y: f64Ptr(y), Story: strPtr(story),
	}}
}

func doneInv(story string) engine.RawInvocation {
	return engine.RawInvocation{Name: "done", Args: engine.RawArgs{Story: strPtr(story)}}
}
