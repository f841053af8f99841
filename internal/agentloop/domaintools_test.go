package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/agentloop/planner"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

func TestRegisterToolRegistryExposesDomainSpecsAndDispatchesCalls(t *testing.T) {
	reg := toolregistry.NewRegistry()
	spec := tools.ToolSpec{
		Name:    "mount.mount_create",
		Toolset: "mount.mount",
		Payload: tools.TypeSpec{Schema: []byte(`{"type":"object"}`)},
		Approval: tools.ApprovalPolicy{
			RiskLevel:        tools.RiskHigh,
			RequiresApproval: true,
			ConfirmLiteral:   "CONFIRM_MOUNT_CHANGE",
		},
	}
	var gotOrg ids.OrgID
	require.NoError(t, reg.Register(spec, func(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
		gotOrg = tc.OrgID
		return json.RawMessage(`{"ok":true}`), nil, nil
	}))

	rt := New()
	require.NoError(t, RegisterToolRegistry(rt, reg, func(runID string) ids.OrgID { return ids.OrgID("org-" + runID) }))

	gotSpec, ok := rt.toolSpec("mount.mount_create")
	require.True(t, ok)
	assert.Equal(t, tools.RiskHigh, gotSpec.Approval.RiskLevel)
	assert.True(t, gotSpec.Approval.RequiresApproval)

	rt.mu.RLock()
	ts, ok := rt.toolsets["mount.mount"]
	rt.mu.RUnlock()
	require.True(t, ok)

	result, err := ts.Execute(context.Background(), &planner.ToolRequest{
		Name:  "mount.mount_create",
		RunID: "run-1",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NoError(t, result.Error)
	assert.Equal(t, ids.OrgID("org-run-1"), gotOrg)
	assert.JSONEq(t, `{"ok":true}`, string(result.Result.(json.RawMessage)))
}

func TestRegisterToolRegistrySurfacesToolErrors(t *testing.T) {
	reg := toolregistry.NewRegistry()
	spec := tools.ToolSpec{Name: "project.project_get", Toolset: "project.project"}
	require.NoError(t, reg.Register(spec, func(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
		return nil, nil, assertErr
	}))

	rt := New()
	require.NoError(t, RegisterToolRegistry(rt, reg, nil))

	rt.mu.RLock()
	ts := rt.toolsets["project.project"]
	rt.mu.RUnlock()

	result, err := ts.Execute(context.Background(), &planner.ToolRequest{Name: "project.project_get"})
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "internal")
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }
