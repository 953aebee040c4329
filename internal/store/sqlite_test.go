package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/laceai/lace-core/internal/corerr"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lace.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjectSaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &types.Project{
		ID:               "proj1",
		Name:             "demo",
		WorkingDirectory: "/tmp/demo",
		Configuration:    map[string]any{"theme": "dark"},
		CreatedAt:        1,
		LastUsedAt:       1,
	}
	require.NoError(t, s.SaveProject(ctx, p))

	got, err := s.LoadProject(ctx, "proj1")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, "dark", got.Configuration["theme"])

	_, err = s.LoadProject(ctx, "missing")
	assert.ErrorIs(t, err, corerr.ErrProjectNotFound)
}

func TestProjectDeleteCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProject(ctx, &types.Project{ID: "p1", Name: "p", WorkingDirectory: "/tmp"}))
	require.NoError(t, s.SaveSession(ctx, &types.Session{ID: "s1", ProjectID: "p1", Name: "s", Status: types.SessionActive}))
	require.NoError(t, s.SaveThread(ctx, &types.Thread{ID: "t1", SessionID: strPtr("s1")}))
	require.NoError(t, s.AppendEvent(ctx, "t1", &types.Event{ID: "e1", Type: types.EventUserMessage, Timestamp: 1, Data: json.RawMessage(`{"text":"hi"}`)}))

	require.NoError(t, s.DeleteProject(ctx, "p1"))

	_, err := s.LoadSession(ctx, "s1")
	assert.ErrorIs(t, err, corerr.ErrSessionNotFound)
	_, err = s.LoadThread(ctx, "t1")
	assert.ErrorIs(t, err, corerr.ErrThreadNotFound)
	events, err := s.LoadEvents(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendEventRequiresExistingThread(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.AppendEvent(ctx, "ghost", &types.Event{ID: "e1", Type: types.EventUserMessage, Timestamp: 1, Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrThreadMissing)
}

func TestLoadEventsOrdersByTimestampThenInsertion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveThread(ctx, &types.Thread{ID: "t1"}))

	require.NoError(t, s.AppendEvent(ctx, "t1", &types.Event{ID: "e1", Type: types.EventUserMessage, Timestamp: 5, Data: json.RawMessage(`{}`)}))
	require.NoError(t, s.AppendEvent(ctx, "t1", &types.Event{ID: "e2", Type: types.EventUserMessage, Timestamp: 5, Data: json.RawMessage(`{}`)}))
	require.NoError(t, s.AppendEvent(ctx, "t1", &types.Event{ID: "e3", Type: types.EventUserMessage, Timestamp: 3, Data: json.RawMessage(`{}`)}))

	events, err := s.LoadEvents(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e3", events[0].ID)
	assert.Equal(t, "e1", events[1].ID)
	assert.Equal(t, "e2", events[2].ID)
}

func TestPendingApprovalsJoin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveThread(ctx, &types.Thread{ID: "t1"}))

	call, _ := json.Marshal(types.ToolCallData{CallID: "c1", ToolName: "bash", Arguments: map[string]any{"command": "ls"}})
	require.NoError(t, s.AppendEvent(ctx, "t1", &types.Event{ID: "e1", Type: types.EventToolCall, Timestamp: 1, Data: call}))
	req, _ := json.Marshal(types.ToolApprovalRequestData{CallID: "c1"})
	require.NoError(t, s.AppendEvent(ctx, "t1", &types.Event{ID: "e2", Type: types.EventToolApprovalRequest, Timestamp: 2, Data: req}))

	pending, err := s.GetPendingApprovals(ctx, []string{"t1"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c1", pending[0].CallID)
	assert.Equal(t, "bash", pending[0].ToolName)
	assert.Equal(t, "ls", pending[0].Arguments["command"])

	resp, _ := json.Marshal(types.ToolApprovalResponseData{CallID: "c1", Decision: types.DecisionAllowOnce})
	require.NoError(t, s.AppendEvent(ctx, "t1", &types.Event{ID: "e3", Type: types.EventToolApprovalResponse, Timestamp: 3, Data: resp}))

	pending, err = s.GetPendingApprovals(ctx, []string{"t1"})
	require.NoError(t, err)
	assert.Empty(t, pending)

	decision, err := s.GetApprovalDecision(ctx, "t1", "c1")
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, types.DecisionAllowOnce, *decision)
}

func strPtr(s string) *string { return &s }
