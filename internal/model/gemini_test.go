// internal/model/gemini_test.go
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"
)

func TestGeminiDeclarationsCoverToolSet(t *testing.T) {
	decls := geminiDeclarations()
	require.Len(t, decls, 5)

	byName := map[string]*genai.FunctionDeclaration{}
	for _, d := range decls {
		byName[d.Name] = d
	}

	click, ok := byName["click"]
	require.True(t, ok)
	require.NotNil(t, click.Parameters)
	assert.Equal(t, genai.TypeObject, click.Parameters.Type)
	assert.Equal(t, genai.TypeNumber, click.Parameters.Properties["x"].Type)
	assert.Equal(t, genai.TypeNumber, click.Parameters.Properties["y"].Type)
	assert.Equal(t, genai.TypeString, click.Parameters.Properties["story"].Type)
	assert.ElementsMatch(t, []string{"x", "y", "story"}, click.Parameters.Required)

	observe, ok := byName["observe"]
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"story"}, observe.Parameters.Required)
}

func TestAllowedToolNames(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"observe", "click", "type", "scroll", "done"},
		allowedToolNames(false))
	assert.ElementsMatch(t,
		[]string{"click", "type", "scroll", "done"},
		allowedToolNames(true))
}

func TestInvocationFromArgMap(t *testing.T) {
	logger := zaptest.NewLogger(t)

	inv := invocationFromArgMap(logger, "click", map[string]any{
		"x": 1500.0, "y": -20.0, "story": "past the edge",
	})
	assert.Equal(t, "click", inv.Name)
	require.NotNil(t, inv.Args.X)
	assert.Equal(t, 1500.0, *inv.Args.X)

	// Arguments of the wrong shape yield a zero invocation rather than an
	// error; interpretation rejects it downstream.
	inv = invocationFromArgMap(logger, "click", map[string]any{"x": []any{1, 2}})
	assert.Empty(t, inv.Name)
}
