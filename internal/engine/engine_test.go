// internal/engine/engine_test.go
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func ptr[T any](v T) *T { return &v }

func obs(story string) RawInvocation {
	return RawInvocation{Name: "observe", Args: RawArgs{Story: ptr(story)}}
}

func TestInterpretObserveUpdatesNarrative(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("opening")

	action, err := e.Interpret(obs("first watch"), &ns)
	require.NoError(t, err)

	assert.Equal(t, KindObserve, action.Kind)
	assert.Equal(t, "first watch", action.Story)
	assert.Equal(t, "first watch", ns.Story)
	assert.Equal(t, 1, ns.StepIndex)
	assert.Equal(t, 1, ns.ConsecutiveObservations)
}

func TestInterpretStallViolation(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("opening")

	_, err := e.Interpret(obs("watch one"), &ns)
	require.NoError(t, err)
	_, err = e.Interpret(obs("watch two"), &ns)
	require.NoError(t, err)
	require.Equal(t, 2, ns.ConsecutiveObservations)

	// Third consecutive observe hits the window.
	_, err = e.Interpret(obs("watch three"), &ns)
	var stall *StallViolationError
	require.ErrorAs(t, err, &stall)
	assert.Equal(t, 2, stall.Consecutive)
	assert.Equal(t, 2, stall.Limit)

	// Rejection leaves the narrative untouched.
	assert.Equal(t, "watch two", ns.Story)
	assert.Equal(t, 2, ns.StepIndex)
	assert.Equal(t, 2, ns.ConsecutiveObservations)

	// The retried request must withhold observe.
	req := e.BuildRequest(Frame{}, ns)
	assert.True(t, req.DisallowObserve)

	// A committing action is still accepted and resets the window.
	click := RawInvocation{Name: "click", Args: RawArgs{
		X: ptr(500.0), Y: ptr(500.0), Story: ptr("he acts at last"),
	}}
	action, err := e.Interpret(click, &ns)
	require.NoError(t, err)
	assert.Equal(t, KindClick, action.Kind)
	assert.Equal(t, 0, ns.ConsecutiveObservations)
	assert.Equal(t, 3, ns.StepIndex)
}

func TestInterpretClickClampsCoordinates(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("opening")

	inv := RawInvocation{Name: "click", Args: RawArgs{
		X: ptr(1500.0), Y: ptr(-20.0), Story: ptr("he reaches past the edge"),
	}}
	action, err := e.Interpret(inv, &ns)
	require.NoError(t, err)
	require.NotNil(t, action.Position)
	assert.Equal(t, 1000, action.Position.X)
	assert.Equal(t, 0, action.Position.Y)
}

func TestInterpretMissingStoryRetainsPrior(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("the story stands")

	inv := RawInvocation{Name: "scroll", Args: RawArgs{DeltaY: ptr(120.0)}}
	action, err := e.Interpret(inv, &ns)
	require.NoError(t, err)

	assert.Equal(t, "the story stands", action.Story)
	assert.Equal(t, "the story stands", ns.Story)
	assert.Equal(t, 1, ns.StepIndex)
}

func TestInterpretStoryFullyReplaces(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("a long opening that should vanish entirely")

	_, err := e.Interpret(obs("short"), &ns)
	require.NoError(t, err)
	// Replacement, not accumulation.
	assert.Equal(t, "short", ns.Story)
}

func TestInterpretMalformed(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)

	cases := []struct {
		name string
		inv  RawInvocation
	}{
		{"unknown tool", RawInvocation{Name: "drag", Args: RawArgs{Story: ptr("s")}}},
		{"click without x", RawInvocation{Name: "click", Args: RawArgs{Y: ptr(10.0), Story: ptr("s")}}},
		{"click without y", RawInvocation{Name: "click", Args: RawArgs{X: ptr(10.0), Story: ptr("s")}}},
		{"type without text", RawInvocation{Name: "type", Args: RawArgs{Story: ptr("s")}}},
		{"scroll without dy", RawInvocation{Name: "scroll", Args: RawArgs{Story: ptr("s")}}},
		{"empty invocation", RawInvocation{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ns := NewNarrative("before")
			_, err := e.Interpret(tc.inv, &ns)
			var malformed *MalformedInvocationError
			require.ErrorAs(t, err, &malformed)

			// Rejection never advances or mutates state.
			assert.Equal(t, "before", ns.Story)
			assert.Equal(t, 0, ns.StepIndex)
			assert.Equal(t, 0, ns.ConsecutiveObservations)
		})
	}
}

func TestInterpretEmptyTypeTextIsAccepted(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("opening")

	inv := RawInvocation{Name: "type", Args: RawArgs{Text: ptr(""), Story: ptr("he types nothing")}}
	action, err := e.Interpret(inv, &ns)
	require.NoError(t, err)
	require.NotNil(t, action.Text)
	assert.Empty(t, *action.Text)
	assert.Equal(t, 1, ns.StepIndex)
}

func TestInterpretDoneIsTerminal(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("opening")
	ns.ConsecutiveObservations = 2

	// Done is accepted even when the observation window is full.
	inv := RawInvocation{Name: "done", Args: RawArgs{Story: ptr("and so it ends")}}
	action, err := e.Interpret(inv, &ns)
	require.NoError(t, err)

	assert.True(t, action.Kind.Terminal())
	assert.False(t, action.Kind.Committing())
	assert.Equal(t, "and so it ends", ns.Story)
	assert.Equal(t, 0, ns.ConsecutiveObservations)
}

func TestBuildRequestAllowsObserveBelowWindow(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	ns := NewNarrative("opening")
	ns.ConsecutiveObservations = 1

	req := e.BuildRequest(Frame{PNG: []byte{1}, Width: 512, Height: 288}, ns)
	assert.False(t, req.DisallowObserve)
	assert.Equal(t, "opening", req.Story)
	assert.NotEmpty(t, req.Instructions)
	assert.Contains(t, req.UserText(), "opening")
}

func TestBuildRequestRetryNoteSurfacesInUserText(t *testing.T) {
	e := New(zaptest.NewLogger(t), 2)
	req := e.BuildRequest(Frame{}, NewNarrative("opening"))
	req.RetryNote = "Your previous reply was not a valid tool call."
	assert.Contains(t, req.UserText(), "not a valid tool call")
}

func TestNewClampsWindowToAtLeastOne(t *testing.T) {
	e := New(zaptest.NewLogger(t), 0)
	assert.Equal(t, 1, e.MaxObservations())
}
