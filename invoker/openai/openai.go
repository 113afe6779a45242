// Package openai provides an AgentInvoker backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentrun/core"
)

// Options configures the OpenAI invoker. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without breaking
// callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	SystemPrompt        string
}

// Invoker adapts the OpenAI Chat Completions API to core.AgentInvoker.
type Invoker struct {
	client *openai.Client
	opts   Options
}

var _ core.AgentInvoker = (*Invoker)(nil)

// NewInvoker creates an Invoker using the official client (API key from the
// environment).
func NewInvoker(optFns ...func(o *Options)) *Invoker {
	client := openai.NewClient()
	return NewInvokerFromClient(&client, optFns...)
}

// NewInvokerFromClient creates an Invoker from an existing client.
func NewInvokerFromClient(client *openai.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, opts: opts}
}

// Invoke implements core.AgentInvoker.
func (i *Invoker) Invoke(ctx context.Context, req core.InvocationRequest) (*core.InvocationResult, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(i.opts.SystemPrompt, req),
		Model:               i.opts.Model,
		Temperature:         openai.Float(i.opts.Temperature),
		MaxCompletionTokens: openai.Int(i.opts.MaxCompletionTokens),
	}

	resp, err := i.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &core.InvocationResult{
		OutputText: resp.Choices[0].Message.Content,
		Model:      i.opts.Model,
	}, nil
}

// buildMessages converts turns to OpenAI chat messages, prepending the
// system prompt when configured.
func buildMessages(systemPrompt string, req core.InvocationRequest) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, t := range req.Context {
		if t.Content == "" {
			continue
		}
		if t.Role == core.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Content))
		} else {
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.InputText))
	return messages
}

// classifyError marks retryable API failures (rate limits, server errors)
// as transient so the dispatcher backs off and retries them.
func classifyError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return core.Transient(fmt.Errorf("openai api error: %w", err))
		}
		return fmt.Errorf("openai api error: %w", err)
	}
	return core.Transient(fmt.Errorf("openai request failed: %w", err))
}
