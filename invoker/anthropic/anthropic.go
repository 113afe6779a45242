// Package anthropic provides an AgentInvoker backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentrun/core"
)

// Model aliases the SDK's model identifier so callers can set it without
// importing the SDK directly.
type Model = anthropic.Model

// Options configures the Anthropic invoker (model id, temperature, max
// tokens, API key, system prompt).
type Options struct {
	Model        anthropic.Model
	Temperature  float64
	MaxTokens    int64
	APIKey       string
	SystemPrompt string
}

// Invoker adapts the Anthropic Messages API to core.AgentInvoker. The
// assembled context turns become alternating user/assistant messages
// followed by the current input.
type Invoker struct {
	client *anthropic.Client
	opts   Options
}

var _ core.AgentInvoker = (*Invoker)(nil)

// NewInvoker creates an Invoker using the official client.
func NewInvoker(optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions(optFns...)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Invoker{client: &client, opts: opts}
}

// NewInvokerFromClient creates an Invoker from an existing client.
func NewInvokerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Invoker {
	return &Invoker{client: client, opts: defaultOptions(optFns...)}
}

func defaultOptions(optFns ...func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Invoke implements core.AgentInvoker.
func (i *Invoker) Invoke(ctx context.Context, req core.InvocationRequest) (*core.InvocationResult, error) {
	params := anthropic.MessageNewParams{
		Model:       i.opts.Model,
		Messages:    buildMessages(req),
		MaxTokens:   i.opts.MaxTokens,
		Temperature: anthropic.Float(i.opts.Temperature),
	}
	if i.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: i.opts.SystemPrompt}}
	}

	resp, err := i.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	return &core.InvocationResult{OutputText: text, Model: string(i.opts.Model)}, nil
}

// buildMessages converts turns to Anthropic message format, collapsing
// consecutive same-role turns into one message as the API requires strict
// alternation.
func buildMessages(req core.InvocationRequest) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	appendText := func(role core.Role, text string) {
		if text == "" {
			return
		}
		block := anthropic.NewTextBlock(text)
		if len(messages) > 0 {
			last := &messages[len(messages)-1]
			if (role == core.RoleUser && last.Role == anthropic.MessageParamRoleUser) ||
				(role == core.RoleAssistant && last.Role == anthropic.MessageParamRoleAssistant) {
				last.Content = append(last.Content, block)
				return
			}
		}
		if role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	for _, t := range req.Context {
		appendText(t.Role, t.Content)
	}
	appendText(core.RoleUser, req.InputText)

	return messages
}

// classifyError marks retryable API failures (rate limits, server errors)
// as transient so the dispatcher backs off and retries them.
func classifyError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return core.Transient(fmt.Errorf("anthropic api error: %w", err))
		}
		return fmt.Errorf("anthropic api error: %w", err)
	}
	// no typed API error means the request never got a response
	return core.Transient(fmt.Errorf("anthropic request failed: %w", err))
}
