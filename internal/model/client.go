// internal/model/client.go

// Package model holds the inference clients. Each provider translates the
// engine's provider-independent request into its own wire format and hands
// back the model's raw tool invocation, untrusted and unvalidated.
package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/franz-cli/internal/config"
	"github.com/xkilldash9x/franz-cli/internal/engine"
)

// Client asks a vision model to choose one tool for the current frame.
//
// Decide returns an error only for transport-level faults. A response that
// arrived but contains no usable tool call yields a zero RawInvocation and a
// nil error; the engine rejects it as malformed and the cycle retries.
type Client interface {
	Decide(ctx context.Context, req engine.Request) (engine.RawInvocation, error)
	Close() error
}

// New builds the client for the configured provider.
func New(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
