// Package httpapi mounts the tool-execution core's HTTP surface: the chat
// streaming pipeline (C7), the agent execution loop (C8), the tool/agent
// catalog (C1/C2), and the out-of-band approval endpoints (C5/C14) shared by
// both pipelines.
//
// Routing follows the teacher's own wiring pattern (example/cmd/assistant/
// http.go): a goahttp.Muxer carries the routes, and goa.design/clue/log.HTTP
// wraps the handler for request-scoped structured logging. Unlike the
// teacher, routes here are hand-registered rather than goa-generated, since
// this module is not driven by a Goa design/codegen step.
package httpapi

import (
	"net/http"

	goahttp "goa.design/goa/v3/http"

	"github.com/infrabay/opscore/internal/agentloop"
	"github.com/infrabay/opscore/internal/chatstream"
	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/telemetry"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// Server wires the HTTP surface's dependencies. Runtime is optional: a
// deployment that only exposes the single-turn chat pipeline (C7) can leave
// it nil, in which case the agent-run endpoints respond 404.
type Server struct {
	Chat          *chatstream.Pipeline
	Runtime       *agentloop.Runtime
	Registry      *toolregistry.Registry
	Conversations convstore.Store
	Logger        telemetry.Logger

	mux goahttp.Muxer
}

// NewHandler builds the HTTP handler mounting every route this server
// exposes. Callers embed it in an *http.Server and add their own shutdown
// handling (see cmd/server).
func (s *Server) NewHandler() http.Handler {
	s.mux = goahttp.NewMuxer()

	s.mux.Handle(http.MethodPost, "/v1/conversations/{conversationId}/messages", s.handleChat)
	s.mux.Handle(http.MethodPost, "/v1/executions/{executionId}/decision", s.handleDecision)
	s.mux.Handle(http.MethodGet, "/v1/tools", s.handleListTools)
	s.mux.Handle(http.MethodGet, "/v1/agents", s.handleListAgents)
	s.mux.Handle(http.MethodPost, "/v1/agents/{agentId}/runs", s.handleStartRun)
	s.mux.Handle(http.MethodGet, "/v1/runs/{runId}/events", s.handleRunEvents)
	s.mux.Handle(http.MethodPost, "/v1/runs/{runId}/pause", s.handlePauseRun)
	s.mux.Handle(http.MethodPost, "/v1/runs/{runId}/resume", s.handleResumeRun)
	s.mux.Handle(http.MethodPost, "/v1/runs/{runId}/clarification", s.handleClarification)
	s.mux.Handle(http.MethodPost, "/v1/runs/{runId}/tool-results", s.handleToolResults)
	s.mux.Handle(http.MethodPost, "/v1/runs/{runId}/confirmation", s.handleConfirmation)

	return s.mux
}

// vars extracts path parameters captured by the mux's route patterns.
func (s *Server) vars(r *http.Request) map[string]string {
	return s.mux.Vars(r)
}

func (s *Server) logger() telemetry.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return telemetry.NewNoopLogger()
}

