package openai

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/infrabay/opscore/internal/llm/model"
	"github.com/infrabay/opscore/internal/tools"
)

// openAIStreamer adapts a Chat Completions streaming response to the
// model.Streamer interface.
type openAIStreamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.ChatCompletionChunk]

	chunks chan model.Chunk

	errMu    sync.Mutex
	errSet   bool
	finalErr error

	toolCalls map[int]*toolCallBuffer
}

type toolCallBuffer struct {
	id        string
	name      string
	fragments []string
}

func newOpenAIStreamer(stream *ssestream.Stream[sdk.ChatCompletionChunk]) model.Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &openAIStreamer{
		ctx:       ctx,
		cancel:    cancel,
		stream:    stream,
		chunks:    make(chan model.Chunk, 32),
		toolCalls: make(map[int]*toolCallBuffer),
	}
	go s.run()
	return s
}

func (s *openAIStreamer) Recv() (model.Chunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
		if err := s.err(); err != nil {
			return model.Chunk{}, err
		}
		return model.Chunk{}, io.EOF
	case <-s.ctx.Done():
		return model.Chunk{}, s.ctx.Err()
	}
}

func (s *openAIStreamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *openAIStreamer) Metadata() map[string]any { return nil }

func (s *openAIStreamer) run() {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if text := choice.Delta.Content; text != "" {
			if err := s.emit(model.Chunk{
				Type: model.ChunkTypeText,
				Message: &model.Message{
					Role:  model.ConversationRoleAssistant,
					Parts: []model.Part{model.TextPart{Text: text}},
				},
			}); err != nil {
				s.setErr(err)
				return
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := int(tc.Index)
			buf := s.toolCalls[idx]
			if buf == nil {
				buf = &toolCallBuffer{}
				s.toolCalls[idx] = buf
			}
			if tc.ID != "" {
				buf.id = tc.ID
			}
			if tc.Function.Name != "" {
				buf.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				buf.fragments = append(buf.fragments, tc.Function.Arguments)
				if err := s.emit(model.Chunk{
					Type: model.ChunkTypeToolCallDelta,
					ToolCallDelta: &model.ToolCallDelta{
						Name:  tools.Ident(buf.name),
						ID:    buf.id,
						Delta: tc.Function.Arguments,
					},
				}); err != nil {
					s.setErr(err)
					return
				}
			}
		}
		if choice.FinishReason != "" {
			for idx, buf := range s.toolCalls {
				payload := decodeArguments(strings.Join(buf.fragments, ""))
				if err := s.emit(model.Chunk{
					Type: model.ChunkTypeToolCall,
					ToolCall: &model.ToolCall{
						Name:    tools.Ident(buf.name),
						Payload: payload,
						ID:      buf.id,
					},
				}); err != nil {
					s.setErr(err)
					return
				}
				delete(s.toolCalls, idx)
			}
			usage := model.TokenUsage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:  int(chunk.Usage.TotalTokens),
			}
			if usage.TotalTokens > 0 {
				if err := s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage}); err != nil {
					s.setErr(err)
					return
				}
			}
			if err := s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: string(choice.FinishReason)}); err != nil {
				s.setErr(err)
				return
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		s.setErr(err)
	} else {
		s.setErr(nil)
	}
}

func (s *openAIStreamer) emit(chunk model.Chunk) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case s.chunks <- chunk:
		return nil
	}
}

func (s *openAIStreamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.errSet {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *openAIStreamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}

func decodeArguments(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = "{}"
	}
	if !json.Valid([]byte(trimmed)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(trimmed)
}
