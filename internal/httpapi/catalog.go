package httpapi

import (
	"net/http"
)

type toolSummary struct {
	Name        string   `json:"name"`
	Toolset     string   `json:"toolset"`
	Description string   `json:"description"`
	RiskLevel   string   `json:"riskLevel"`
	Approval    bool     `json:"requiresApproval"`
	Tags        []string `json:"tags,omitempty"`
}

// handleListTools returns every tool registered in the catalog (C2), used by
// clients to build slash-command pickers and confirm risk levels up front.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if s.Registry == nil {
		writeJSON(w, http.StatusOK, []toolSummary{})
		return
	}
	specs := s.Registry.List()
	out := make([]toolSummary, 0, len(specs))
	for _, spec := range specs {
		out = append(out, toolSummary{
			Name:        spec.Name.String(),
			Toolset:     spec.Toolset,
			Description: spec.Description,
			RiskLevel:   string(spec.Approval.RiskLevel),
			Approval:    spec.Approval.RequiresApproval,
			Tags:        spec.Tags,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type agentSummary struct {
	ID string `json:"id"`
}

// handleListAgents returns every agent registered with the execution loop
// (C8). Returns an empty list, not an error, when no Runtime is configured.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		writeJSON(w, http.StatusOK, []agentSummary{})
		return
	}
	ids := s.Runtime.ListAgents()
	out := make([]agentSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, agentSummary{ID: string(id)})
	}
	writeJSON(w, http.StatusOK, out)
}
