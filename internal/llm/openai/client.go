// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API. It translates tool-execution requests into
// openai.ChatCompletionNewParams calls using github.com/openai/openai-go and
// maps responses (text, tool calls, usage) back into the generic planner
// structures in internal/llm/model.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/infrabay/opscore/internal/llm/model"
	"github.com/infrabay/opscore/internal/tools"
)

type (
	// ChatCompletionsClient captures the subset of the OpenAI SDK client used by
	// the adapter, satisfied by *sdk.ChatCompletionService so callers can pass a
	// mock in tests.
	ChatCompletionsClient interface {
		New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
		NewStreaming(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.ChatCompletionChunk]
	}

	// Options configures the OpenAI adapter.
	Options struct {
		// DefaultModel is the model identifier used when model.Request.Model is
		// empty and ModelClass does not resolve to HighModel/SmallModel.
		DefaultModel string
		// HighModel is used for model.ModelClassHighReasoning requests.
		HighModel string
		// SmallModel is used for model.ModelClassSmall requests.
		SmallModel string
		// MaxTokens is the default completion cap applied when a request does
		// not specify one.
		MaxTokens int
		// Temperature is used when a request does not specify Temperature.
		Temperature float64
	}

	// Client implements model.Client on top of the OpenAI Chat Completions API.
	Client struct {
		chat         ChatCompletionsClient
		defaultModel string
		highModel    string
		smallModel   string
		maxTokens    int
		temperature  float64
	}
)

// New builds an OpenAI-backed model client from the provided chat client and
// configuration options.
func New(chat ChatCompletionsClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai chat client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		chat:         chat,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client,
// reading OPENAI_API_KEY and related defaults from the environment.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, opts)
}

// Complete issues a non-streaming chat completion and translates the response
// into the generic planner structures (assistant messages + tool calls).
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat completions.new: %w", err)
	}
	return translateResponse(resp)
}

// Stream invokes NewStreaming and adapts incremental chunks into model.Chunk
// values so planners can surface partial responses.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.chat.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat completions.new stream: %w", err)
	}
	return newOpenAIStreamer(stream), nil
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, errors.New("openai: model identifier is required")
	}
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	toolDefs, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}
	params := sdk.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if len(toolDefs) > 0 {
		params.Tools = toolDefs
	}
	if maxTokens := c.effectiveMaxTokens(req.MaxTokens); maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(maxTokens))
	}
	if temp := c.effectiveTemperature(req.Temperature); temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return &params, nil
}

func (c *Client) resolveModelID(req *model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch string(req.ModelClass) { //nolint:exhaustive
	case string(model.ModelClassHighReasoning):
		if c.highModel != "" {
			return c.highModel
		}
	case string(model.ModelClassSmall):
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func (c *Client) effectiveMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return c.maxTokens
}

func (c *Client) effectiveTemperature(requested float32) float64 {
	if requested > 0 {
		return float64(requested)
	}
	return c.temperature
}

func encodeMessages(msgs []*model.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		text := flattenText(m.Parts)
		switch m.Role { //nolint:exhaustive
		case model.ConversationRoleSystem:
			out = append(out, sdk.SystemMessage(text))
		case model.ConversationRoleUser:
			out = append(out, encodeUserMessage(m, text))
		case model.ConversationRoleAssistant:
			out = append(out, encodeAssistantMessage(m, text))
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openai: at least one message with content is required")
	}
	return out, nil
}

func encodeUserMessage(m *model.Message, text string) sdk.ChatCompletionMessageParamUnion {
	for _, p := range m.Parts {
		if v, ok := p.(model.ToolResultPart); ok {
			return sdk.ToolMessage(encodeToolResultContent(v), v.ToolUseID)
		}
	}
	return sdk.UserMessage(text)
}

func encodeAssistantMessage(m *model.Message, text string) sdk.ChatCompletionMessageParamUnion {
	var calls []sdk.ChatCompletionMessageToolCallParam
	for _, p := range m.Parts {
		v, ok := p.(model.ToolUsePart)
		if !ok {
			continue
		}
		args, _ := json.Marshal(v.Input)
		calls = append(calls, sdk.ChatCompletionMessageToolCallParam{
			ID: v.ID,
			Function: sdk.ChatCompletionMessageToolCallFunctionParam{
				Name:      string(v.Name),
				Arguments: string(args),
			},
		})
	}
	msg := sdk.AssistantMessage(text)
	if len(calls) > 0 && msg.OfAssistant != nil {
		msg.OfAssistant.ToolCalls = calls
	}
	return msg
}

func flattenText(parts []model.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if v, ok := p.(model.TextPart); ok {
			b.WriteString(v.Text)
		}
	}
	return b.String()
}

func encodeToolResultContent(v model.ToolResultPart) string {
	switch c := v.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func encodeTools(defs []*model.ToolDefinition) ([]sdk.ChatCompletionToolParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		schema, err := toFunctionParameters(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("openai: tool %q schema: %w", def.Name, err)
		}
		out = append(out, sdk.ChatCompletionToolParam{
			Function: sdk.FunctionDefinitionParam{
				Name:        string(def.Name),
				Description: sdk.String(def.Description),
				Parameters:  schema,
			},
		})
	}
	return out, nil
}

func toFunctionParameters(schema any) (sdk.FunctionParameters, error) {
	if schema == nil {
		return sdk.FunctionParameters{}, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return sdk.FunctionParameters{}, err
	}
	var params sdk.FunctionParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return sdk.FunctionParameters{}, err
	}
	return params, nil
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

func translateResponse(resp *sdk.ChatCompletion) (*model.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}
	out := &model.Response{}
	choice := resp.Choices[0]
	if text := choice.Message.Content; text != "" {
		out.Content = append(out.Content, model.Message{
			Role:  model.ConversationRoleAssistant,
			Parts: []model.Part{model.TextPart{Text: text}},
		})
	}
	for _, call := range choice.Message.ToolCalls {
		var payload any
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &payload); err != nil {
				payload = map[string]any{"raw": call.Function.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			Name:    tools.Ident(call.Function.Name),
			Payload: payload,
			ID:      call.ID,
		})
	}
	out.Usage = model.TokenUsage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	out.StopReason = string(choice.FinishReason)
	return out, nil
}
