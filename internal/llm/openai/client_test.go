package openai

import (
	"context"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/llm/model"
	"github.com/infrabay/opscore/internal/tools"
)

type stubChatClient struct {
	lastParams sdk.ChatCompletionNewParams
	resp       *sdk.ChatCompletion
	err        error
	stream     *ssestream.Stream[sdk.ChatCompletionChunk]
}

func (s *stubChatClient) New(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) (*sdk.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubChatClient) NewStreaming(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.ChatCompletionChunk] {
	s.lastParams = body
	if s.stream == nil {
		s.stream = ssestream.NewStream[sdk.ChatCompletionChunk](&noopDecoder{}, nil)
	}
	return s.stream
}

type noopDecoder struct{}

func (n *noopDecoder) Event() ssestream.Event { return ssestream.Event{} }
func (n *noopDecoder) Next() bool             { return false }
func (n *noopDecoder) Close() error           { return nil }
func (n *noopDecoder) Err() error             { return nil }

func TestClientComplete(t *testing.T) {
	stub := &stubChatClient{}
	client, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	stub.resp = &sdk.ChatCompletion{
		Choices: []sdk.ChatCompletionChoice{
			{
				FinishReason: "stop",
				Message: sdk.ChatCompletionMessage{
					Role:    "assistant",
					Content: "hi there",
					ToolCalls: []sdk.ChatCompletionMessageToolCall{
						{
							Function: sdk.ChatCompletionMessageToolCallFunction{
								Name:      "lookup",
								Arguments: `{"query":"docs"}`,
							},
						},
					},
				},
			},
		},
		Usage: sdk.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	resp, err := client.Complete(context.Background(), &model.Request{
		Messages: []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "ping"}}}},
		Tools: []*model.ToolDefinition{{
			Name:        "lookup",
			Description: "Search",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)

	found := false
	for _, p := range resp.Content[0].Parts {
		if tp, ok := p.(model.TextPart); ok && tp.Text == "hi there" {
			found = true
		}
	}
	require.True(t, found, "expected hi there text part")
	require.Equal(t, tools.Ident("lookup"), resp.ToolCalls[0].Name)
	require.Equal(t, "docs", resp.ToolCalls[0].Payload.(map[string]any)["query"])
	require.Equal(t, "stop", resp.StopReason)
	require.Equal(t, 15, resp.Usage.TotalTokens)

	require.Equal(t, "gpt-4o", stub.lastParams.Model)
	require.Len(t, stub.lastParams.Messages, 1)
	require.Len(t, stub.lastParams.Tools, 1)
	require.Equal(t, "lookup", stub.lastParams.Tools[0].Function.Name)
}

func TestClientRequiresDefaultModel(t *testing.T) {
	_, err := New(&stubChatClient{}, Options{})
	require.Error(t, err)
}

func TestClientRequiresChatClient(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "gpt-4o"})
	require.Error(t, err)
}
