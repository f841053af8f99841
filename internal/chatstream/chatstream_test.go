package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/convstore"
	convstoreinmem "github.com/infrabay/opscore/internal/convstore/inmem"
	execstoreinmem "github.com/infrabay/opscore/internal/execstore/inmem"
	"github.com/infrabay/opscore/internal/approvalbus"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/llm/model"
	"github.com/infrabay/opscore/internal/sse"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// fakeStreamer replays a fixed sequence of chunks, then io.EOF.
type fakeStreamer struct {
	chunks []model.Chunk
	pos    int
}

func (f *fakeStreamer) Recv() (model.Chunk, error) {
	if f.pos >= len(f.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}
func (f *fakeStreamer) Close() error             { return nil }
func (f *fakeStreamer) Metadata() map[string]any { return nil }

type fakeClient struct {
	chunks []model.Chunk
}

func (c *fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return &model.Response{}, nil
}

func (c *fakeClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return &fakeStreamer{chunks: c.chunks}, nil
}

func textChunk(s string) model.Chunk {
	return model.Chunk{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: s}}}}
}

func toolCallChunk(id string, name tools.Ident, payload string) model.Chunk {
	return model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{ID: id, Name: name, Payload: json.RawMessage(payload)}}
}

func newTestPipeline(t *testing.T, chunks []model.Chunk) (*Pipeline, *toolregistry.Registry) {
	t.Helper()
	reg := toolregistry.NewRegistry()
	require.NoError(t, reg.Register(tools.ToolSpec{
		Name:    "demo.project_list",
		Toolset: "demo.demo",
	}, func(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
		return json.RawMessage(`{"projects":[]}`), nil, nil
	}))
	require.NoError(t, reg.Register(tools.ToolSpec{
		Name:     "demo.project_delete",
		Toolset:  "demo.demo",
		Approval: tools.ApprovalPolicy{RiskLevel: tools.RiskHigh, RequiresApproval: true},
	}, func(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
		return json.RawMessage(`{"deleted":true}`), nil, nil
	}))

	var seq int
	p := &Pipeline{
		Registry:      reg,
		Conversations: convstoreinmem.New(),
		Executions:    execstoreinmem.New(),
		Approvals:     approvalbus.NewInMemory(),
		Models: func(agentID ids.AgentID) (model.Client, error) {
			return &fakeClient{chunks: chunks}, nil
		},
		Clock: func() time.Time { return time.Unix(0, 0).UTC() },
		NewID: func() string { seq++; return fmt.Sprintf("id-%d", seq) },
	}
	return p, reg
}

func createConversation(t *testing.T, p *Pipeline, id ids.ConversationID) {
	t.Helper()
	require.NoError(t, p.Conversations.CreateConversation(context.Background(), convstore.Conversation{ID: id}))
}

func parseFrames(t *testing.T, buf *bytes.Buffer) []sse.Event {
	t.Helper()
	parser := sse.NewParser(buf)
	var out []sse.Event
	for {
		ev, err := parser.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func TestHandleChatStreamsTextDeltasAndDone(t *testing.T) {
	p, _ := newTestPipeline(t, []model.Chunk{textChunk("hel"), textChunk("lo")})
	createConversation(t, p, "c1")
	var buf bytes.Buffer
	w := sse.NewWriter(&buf)

	err := p.HandleChat(context.Background(), w, ChatRequest{
		ConversationID: "c1",
		AgentID:        "demo.agent",
		Message:        "hi",
	})
	require.NoError(t, err)

	frames := parseFrames(t, &buf)
	require.GreaterOrEqual(t, len(frames), 3)
	assert.Equal(t, "delta", frames[0].Name)
	assert.JSONEq(t, `{"delta":"hel"}`, frames[0].Data)
	assert.Equal(t, "delta", frames[1].Name)
	assert.Equal(t, "done", frames[len(frames)-1].Name)

	msgs, err := p.Conversations.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestHandleChatAutoExecutesLowRiskTool(t *testing.T) {
	p, _ := newTestPipeline(t, []model.Chunk{toolCallChunk("tc-1", "demo.project_list", `{}`)})
	createConversation(t, p, "c1")
	var buf bytes.Buffer
	w := sse.NewWriter(&buf)

	err := p.HandleChat(context.Background(), w, ChatRequest{ConversationID: "c1", AgentID: "demo.agent", Message: "list"})
	require.NoError(t, err)

	frames := parseFrames(t, &buf)
	var sawResult bool
	for _, f := range frames {
		if f.Name == "tool-result" {
			sawResult = true
			assert.Contains(t, f.Data, `"succeeded"`)
		}
	}
	assert.True(t, sawResult)
}

func TestHandleChatEnqueuesApprovalForHighRiskTool(t *testing.T) {
	p, _ := newTestPipeline(t, []model.Chunk{toolCallChunk("tc-1", "demo.project_delete", `{}`)})
	createConversation(t, p, "c1")
	var buf bytes.Buffer
	w := sse.NewWriter(&buf)

	err := p.HandleChat(context.Background(), w, ChatRequest{ConversationID: "c1", AgentID: "demo.agent", Message: "delete it"})
	require.NoError(t, err)

	frames := parseFrames(t, &buf)
	var found bool
	for _, f := range frames {
		if f.Name == "tool-result" {
			found = true
			assert.Contains(t, f.Data, `"pending"`)
		}
	}
	assert.True(t, found)

	pending, err := p.Executions.ListPendingByRun(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestHandleChatMissingConversationIDEmitsStreamError(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	var buf bytes.Buffer
	w := sse.NewWriter(&buf)

	err := p.HandleChat(context.Background(), w, ChatRequest{AgentID: "demo.agent", Message: "hi"})
	require.NoError(t, err)

	frames := parseFrames(t, &buf)
	require.Len(t, frames, 1)
	assert.Equal(t, "stream-error", frames[0].Name)
}
