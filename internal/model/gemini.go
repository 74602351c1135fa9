// internal/model/gemini.go
package model

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/franz-cli/internal/config"
	"github.com/xkilldash9x/franz-cli/internal/engine"
)

// GeminiClient decides via the Gemini API using forced function calling.
type GeminiClient struct {
	client *genai.Client
	cfg    config.ModelConfig
	logger *zap.Logger
}

// NewGeminiClient creates a client against the Gemini API backend.
func NewGeminiClient(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{
		client: client,
		cfg:    cfg,
		logger: logger.Named("gemini"),
	}, nil
}

func (c *GeminiClient) Decide(ctx context.Context, req engine.Request) (engine.RawInvocation, error) {
	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromBytes(req.Frame.PNG, "image/png"),
			genai.NewPartFromText(req.UserText()),
		},
	}}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Instructions, ""),
		Temperature:       genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens:   int32(c.cfg.MaxTokens),
		Tools: []*genai.Tool{
			{FunctionDeclarations: geminiDeclarations()},
		},
		ToolConfig: &genai.ToolConfig{
			// Mode ANY forces a function call; narrowing the allowed names is
			// how observe gets withheld when the window is full.
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: allowedToolNames(req.DisallowObserve),
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
	if err != nil {
		return engine.RawInvocation{}, fmt.Errorf("gemini generate content: %w", err)
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		c.logger.Warn("Model response contained no function call")
		return engine.RawInvocation{}, nil
	}
	if len(calls) > 1 {
		c.logger.Warn("Model returned multiple function calls, using the first",
			zap.Int("count", len(calls)))
	}
	return invocationFromArgMap(c.logger, calls[0].Name, calls[0].Args), nil
}

func (c *GeminiClient) Close() error { return nil }

// geminiDeclarations maps the shared tool set onto Gemini function
// declarations.
func geminiDeclarations() []*genai.FunctionDeclaration {
	specs := engine.Tools()
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		properties := make(map[string]*genai.Schema, len(spec.Params))
		var required []string
		for _, p := range spec.Params {
			properties[p.Name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(spec.Kind),
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			},
		})
	}
	return decls
}

func geminiType(t string) genai.Type {
	if t == "number" {
		return genai.TypeNumber
	}
	return genai.TypeString
}

// allowedToolNames returns the tool names offered this cycle.
func allowedToolNames(disallowObserve bool) []string {
	var names []string
	for _, spec := range engine.Tools() {
		if disallowObserve && spec.Kind == engine.KindObserve {
			continue
		}
		names = append(names, string(spec.Kind))
	}
	return names
}

// invocationFromArgMap converts a decoded argument map into a raw invocation.
// Undecodable arguments produce a zero invocation, which interpretation then
// rejects as malformed.
func invocationFromArgMap(logger *zap.Logger, name string, args map[string]any) engine.RawInvocation {
	data, err := json.Marshal(args)
	if err != nil {
		logger.Warn("Failed to re-encode function call arguments", zap.Error(err))
		return engine.RawInvocation{}
	}
	decoded, err := engine.DecodeRawArgs(data)
	if err != nil {
		logger.Warn("Failed to decode function call arguments",
			zap.String("tool", name), zap.Error(err))
		return engine.RawInvocation{}
	}
	return engine.RawInvocation{Name: name, Args: decoded}
}
