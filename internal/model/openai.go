// internal/model/openai.go
package model

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/franz-cli/internal/config"
	"github.com/xkilldash9x/franz-cli/internal/engine"
)

// OpenAIClient decides via any OpenAI-compatible chat completion endpoint,
// including local servers such as LM Studio.
type OpenAIClient struct {
	client *openai.Client
	cfg    config.ModelConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a client against cfg.Endpoint.
func NewOpenAIClient(cfg config.ModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.Named("openai"),
	}, nil
}

func (c *OpenAIClient) Decide(ctx context.Context, req engine.Request) (engine.RawInvocation, error) {
	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	frameURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.Frame.PNG)

	chatReq := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.Instructions,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: frameURL},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.UserText(),
					},
				},
			},
		},
		Tools:       openAITools(req.DisallowObserve),
		ToolChoice:  "required",
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return engine.RawInvocation{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("Model response contained no choices")
		return engine.RawInvocation{}, nil
	}

	toolCalls := resp.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		c.logger.Warn("Model response contained no tool call")
		return engine.RawInvocation{}, nil
	}
	if len(toolCalls) > 1 {
		c.logger.Warn("Model returned multiple tool calls, using the first",
			zap.Int("count", len(toolCalls)))
	}

	call := toolCalls[0].Function
	args, err := engine.DecodeRawArgs([]byte(call.Arguments))
	if err != nil {
		c.logger.Warn("Failed to decode tool call arguments",
			zap.String("tool", call.Name), zap.Error(err))
		return engine.RawInvocation{}, nil
	}
	return engine.RawInvocation{Name: call.Name, Args: args}, nil
}

func (c *OpenAIClient) Close() error { return nil }

// openAITools maps the shared tool set onto OpenAI tool definitions. Observe
// is removed from the offered set when it is disallowed this cycle.
func openAITools(disallowObserve bool) []openai.Tool {
	specs := engine.Tools()
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		if disallowObserve && spec.Kind == engine.KindObserve {
			continue
		}
		properties := make(map[string]any, len(spec.Params))
		required := make([]string, 0, len(spec.Params))
		for _, p := range spec.Params {
			properties[p.Name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(spec.Kind),
				Description: spec.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return tools
}
