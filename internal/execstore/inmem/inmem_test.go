package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/execstore"
	"github.com/infrabay/opscore/internal/ids"
)

func TestCreateAndLoad(t *testing.T) {
	store := New()
	exec := execstore.ToolExecution{ID: "exec-1", RunID: "run-1", Status: execstore.StatusPending}
	require.NoError(t, store.Create(context.Background(), exec))

	loaded, err := store.Load(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Equal(t, execstore.StatusPending, loaded.Status)
	require.False(t, loaded.CreatedAt.IsZero())
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	store := New()
	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, execstore.ErrNotFound)
}

func TestUpdateStatusMutatesExistingRecord(t *testing.T) {
	store := New()
	require.NoError(t, store.Create(context.Background(), execstore.ToolExecution{ID: "exec-1", Status: execstore.StatusPending}))

	err := store.UpdateStatus(context.Background(), "exec-1", func(e *execstore.ToolExecution) {
		e.Status = execstore.StatusApproved
		e.DecidedBy = "alice"
	})
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Equal(t, execstore.StatusApproved, loaded.Status)
	require.Equal(t, "alice", loaded.DecidedBy)
}

func TestUpdateStatusMissingReturnsErrNotFound(t *testing.T) {
	store := New()
	err := store.UpdateStatus(context.Background(), "missing", func(e *execstore.ToolExecution) {})
	require.ErrorIs(t, err, execstore.ErrNotFound)
}

func TestListPendingByRunExcludesTerminalAndOtherRuns(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, execstore.ToolExecution{ID: "exec-1", RunID: "run-1", Status: execstore.StatusPending}))
	require.NoError(t, store.Create(ctx, execstore.ToolExecution{ID: "exec-2", RunID: "run-1", Status: execstore.StatusSucceeded}))
	require.NoError(t, store.Create(ctx, execstore.ToolExecution{ID: "exec-3", RunID: "run-2", Status: execstore.StatusPending}))

	out, err := store.ListPendingByRun(ctx, ids.RunID("run-1"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, ids.ExecutionID("exec-1"), out[0].ID)
}
