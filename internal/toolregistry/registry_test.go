package toolregistry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/tools"
)

func echoSpec(name tools.Ident, schema string, approval tools.ApprovalPolicy) tools.ToolSpec {
	return tools.ToolSpec{
		Name:     name,
		Toolset:  "demo.demo",
		Payload:  tools.TypeSpec{Schema: []byte(schema)},
		Approval: approval,
	}
}

func TestRegisterRejectsDestructiveToolWithoutApproval(t *testing.T) {
	r := NewRegistry()
	spec := echoSpec("demo.project_delete", "", tools.ApprovalPolicy{})
	err := r.Register(spec, func(ctx context.Context, tc ToolContext, payload json.RawMessage) (json.RawMessage, []*ServerDataItem, error) {
		return nil, nil, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RequiresApproval")
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	spec := echoSpec("demo.project_list", "", tools.ApprovalPolicy{})
	handler := func(ctx context.Context, tc ToolContext, payload json.RawMessage) (json.RawMessage, []*ServerDataItem, error) {
		return json.RawMessage(`{}`), nil, nil
	}
	require.NoError(t, r.Register(spec, handler))
	err := r.Register(spec, handler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestExecuteValidatesPayloadAgainstSchema(t *testing.T) {
	r := NewRegistry()
	schema := `{"type":"object","required":["id"],"properties":{"id":{"type":"string"}}}`
	spec := echoSpec("demo.project_get", schema, tools.ApprovalPolicy{})
	require.NoError(t, r.Register(spec, func(ctx context.Context, tc ToolContext, payload json.RawMessage) (json.RawMessage, []*ServerDataItem, error) {
		return json.RawMessage(`{"ok":true}`), nil, nil
	}))

	msg := r.Execute(context.Background(), ToolContext{}, "demo.project_get", json.RawMessage(`{}`), "tu-1")
	require.NotNil(t, msg.Error)
	assert.Equal(t, "invalid_arguments", msg.Error.Code)

	msg = r.Execute(context.Background(), ToolContext{}, "demo.project_get", json.RawMessage(`{"id":"p1"}`), "tu-2")
	require.Nil(t, msg.Error)
	assert.JSONEq(t, `{"ok":true}`, string(msg.Result))
}

func TestExecuteUnknownToolReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	msg := r.Execute(context.Background(), ToolContext{}, "demo.missing", json.RawMessage(`{}`), "tu-1")
	require.NotNil(t, msg.Error)
	assert.Equal(t, "not_found", msg.Error.Code)
}

func TestRequiresApprovalAndRiskLevelFailClosedForUnknownTool(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.RequiresApproval("demo.missing"))
	assert.Equal(t, tools.RiskHigh, r.GetRiskLevel("demo.missing"))
}

func TestRequiresApprovalAndRiskLevelReflectRegisteredPolicy(t *testing.T) {
	r := NewRegistry()
	spec := echoSpec("demo.project_list", "", tools.ApprovalPolicy{RiskLevel: tools.RiskLow, RequiresApproval: false})
	require.NoError(t, r.Register(spec, func(ctx context.Context, tc ToolContext, payload json.RawMessage) (json.RawMessage, []*ServerDataItem, error) {
		return json.RawMessage(`{}`), nil, nil
	}))
	assert.False(t, r.RequiresApproval("demo.project_list"))
	assert.Equal(t, tools.RiskLow, r.GetRiskLevel("demo.project_list"))
}

func TestExecutePropagatesBindMountRejectedSuggestedNextSteps(t *testing.T) {
	r := NewRegistry()
	spec := echoSpec("demo.mount_create", "", tools.ApprovalPolicy{RiskLevel: tools.RiskHigh, RequiresApproval: true})
	require.NoError(t, r.Register(spec, func(ctx context.Context, tc ToolContext, payload json.RawMessage) (json.RawMessage, []*ServerDataItem, error) {
		return nil, nil, safety.CheckBindMountPath("/srv/foo", []string{"/var/lib/dokploy"}, "demo.mount_create", map[string]any{"hostPath": "/srv/foo"})
	}))

	msg := r.Execute(context.Background(), ToolContext{}, "demo.mount_create", json.RawMessage(`{}`), "tu-1")
	require.NotNil(t, msg.Error)
	assert.Equal(t, "bind_mount_rejected", msg.Error.Code)
	require.Len(t, msg.Error.SuggestedNextSteps, 2)
	assert.Equal(t, "demo.mount_create", msg.Error.SuggestedNextSteps[1].Tool)
}

func TestListByToolsetFiltersAndSorts(t *testing.T) {
	r := NewRegistry()
	handler := func(ctx context.Context, tc ToolContext, payload json.RawMessage) (json.RawMessage, []*ServerDataItem, error) {
		return json.RawMessage(`{}`), nil, nil
	}
	require.NoError(t, r.Register(tools.ToolSpec{Name: "demo.b_tool", Toolset: "demo.demo"}, handler))
	require.NoError(t, r.Register(tools.ToolSpec{Name: "demo.a_tool", Toolset: "demo.demo"}, handler))
	require.NoError(t, r.Register(tools.ToolSpec{Name: "other.c_tool", Toolset: "other.other"}, handler))

	got := r.ListByToolset("demo.demo")
	require.Len(t, got, 2)
	assert.Equal(t, tools.Ident("demo.a_tool"), got[0].Name)
	assert.Equal(t, tools.Ident("demo.b_tool"), got[1].Name)
}
