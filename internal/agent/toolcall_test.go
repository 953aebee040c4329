package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolResultOf(t *testing.T, view *thread.ReplayView) *types.ToolResultData {
	t.Helper()
	var result *types.ToolResultData
	for _, e := range view.Events {
		if e.Type != types.EventToolResult {
			continue
		}
		var d types.ToolResultData
		require.NoError(t, json.Unmarshal(e.Data, &d))
		result = &d
	}
	return result
}

// waitForPendingApprovalCallID polls until exactly one approval is
// pending for sessionID, returning its callId. Used by tests that run
// handleToolCall's approval round-trip on a goroutine.
func waitForPendingApprovalCallID(t *testing.T, threads *thread.Manager, sessionID string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		pending, err := threads.ListPendingApprovalsForSession(context.Background(), sessionID)
		require.NoError(t, err)
		if len(pending) > 0 {
			return pending[0].CallID
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a pending approval")
	return ""
}

func TestHandleToolCall_DenyPolicyProducesDeniedResultWithoutExecuting(t *testing.T) {
	d, threads, _ := newTestDriver(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-1", ToolPolicies: map[string]string{"write": "deny"}}
	th, err := threads.CreateThread(ctx, &sess.ID, nil)
	require.NoError(t, err)

	cancelCh := make(chan struct{})
	err = d.handleToolCall(ctx, th.ID, nil, sess, cancelCh, time.Now().Add(time.Minute), "write", map[string]any{"path": "a"})
	require.NoError(t, err)

	view, err := threads.Replay(ctx, th.ID)
	require.NoError(t, err)

	result := toolResultOf(t, view)
	require.NotNil(t, result)
	assert.Equal(t, types.ToolOutcomeDenied, result.Outcome)
}

func TestHandleToolCall_AllowPolicyExecutesDirectly(t *testing.T) {
	d, threads, _ := newTestDriver(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-1", ToolPolicies: map[string]string{"write": "allow"}}
	th, err := threads.CreateThread(ctx, &sess.ID, nil)
	require.NoError(t, err)

	cancelCh := make(chan struct{})
	err = d.handleToolCall(ctx, th.ID, nil, sess, cancelCh, time.Now().Add(time.Minute), "write", map[string]any{"path": "a"})
	require.NoError(t, err)

	view, err := threads.Replay(ctx, th.ID)
	require.NoError(t, err)

	result := toolResultOf(t, view)
	require.NotNil(t, result)
	assert.Equal(t, types.ToolOutcomeCompleted, result.Outcome)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*types.TextPart)
	require.True(t, ok)
	assert.Equal(t, "wrote it", text.Text)
}

func TestHandleToolCall_RequireApprovalWaitsThenExecutesOnAllow(t *testing.T) {
	d, threads, approvals := newTestDriver(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-1"} // no ToolPolicies entry -> require-approval
	th, err := threads.CreateThread(ctx, &sess.ID, nil)
	require.NoError(t, err)

	cancelCh := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.handleToolCall(ctx, th.ID, nil, sess, cancelCh, time.Now().Add(10*time.Second), "write", map[string]any{"path": "a"})
	}()

	callID := waitForPendingApprovalCallID(t, threads, sess.ID)
	require.NoError(t, approvals.SubmitDecision(ctx, th.ID, callID, types.DecisionAllowOnce))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("handleToolCall did not return after decision was submitted")
	}

	view, err := threads.Replay(ctx, th.ID)
	require.NoError(t, err)
	result := toolResultOf(t, view)
	require.NotNil(t, result)
	assert.Equal(t, types.ToolOutcomeCompleted, result.Outcome)
}

func TestHandleToolCall_ApprovalTimeoutDeniesWithoutExecuting(t *testing.T) {
	d, threads, _ := newTestDriver(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-1"}
	th, err := threads.CreateThread(ctx, &sess.ID, nil)
	require.NoError(t, err)

	cancelCh := make(chan struct{})
	err = d.handleToolCall(ctx, th.ID, nil, sess, cancelCh, time.Now().Add(-time.Second), "write", map[string]any{"path": "a"})
	require.NoError(t, err)

	view, err := threads.Replay(ctx, th.ID)
	require.NoError(t, err)
	result := toolResultOf(t, view)
	require.NotNil(t, result)
	assert.Equal(t, types.ToolOutcomeDenied, result.Outcome)
}

func TestHandleToolCall_ThirdIdenticalCallEscalatesAllowToApproval(t *testing.T) {
	d, threads, approvals := newTestDriver(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-1", ToolPolicies: map[string]string{"write": "allow"}}
	th, err := threads.CreateThread(ctx, &sess.ID, nil)
	require.NoError(t, err)

	cancelCh := make(chan struct{})
	args := map[string]any{"path": "a"}

	for i := 0; i < 2; i++ {
		require.NoError(t, d.handleToolCall(ctx, th.ID, nil, sess, cancelCh, time.Now().Add(time.Minute), "write", args))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.handleToolCall(ctx, th.ID, nil, sess, cancelCh, time.Now().Add(10*time.Second), "write", args)
	}()

	callID := waitForPendingApprovalCallID(t, threads, sess.ID)
	require.NoError(t, approvals.SubmitDecision(ctx, th.ID, callID, types.DecisionAllowOnce))
	require.NoError(t, <-errCh)

	view, err := threads.Replay(ctx, th.ID)
	require.NoError(t, err)
	requests := 0
	for _, e := range view.Events {
		if e.Type == types.EventToolApprovalRequest {
			requests++
		}
	}
	assert.Equal(t, 1, requests, "the third identical call should have required approval despite the allow policy")
}

func TestHandleToolCall_StandingAllowSessionSkipsReapproval(t *testing.T) {
	d, threads, approvals := newTestDriver(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-1"}
	threadA, err := threads.CreateThread(ctx, &sess.ID, nil)
	require.NoError(t, err)

	// First call on threadA: goes through the full approval round-trip,
	// granted with session-wide scope.
	cancelCh := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.handleToolCall(ctx, threadA.ID, nil, sess, cancelCh, time.Now().Add(10*time.Second), "write", map[string]any{"path": "a"})
	}()
	callID := waitForPendingApprovalCallID(t, threads, sess.ID)
	require.NoError(t, approvals.SubmitDecision(ctx, threadA.ID, callID, types.DecisionAllowSession))
	require.NoError(t, <-errCh)

	// A second thread in the same session should find the standing
	// allow_session decision and execute without requesting approval
	// again.
	threadB, err := threads.CreateThread(ctx, &sess.ID, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- d.handleToolCall(ctx, threadB.ID, nil, sess, cancelCh, time.Now().Add(10*time.Second), "write", map[string]any{"path": "b"})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second call on sibling thread should not have needed a fresh approval round-trip")
	}

	view, err := threads.Replay(ctx, threadB.ID)
	require.NoError(t, err)
	requests := 0
	for _, e := range view.Events {
		if e.Type == types.EventToolApprovalRequest {
			requests++
		}
	}
	result := toolResultOf(t, view)
	assert.Zero(t, requests, "standing approval should skip a fresh request")
	require.NotNil(t, result)
	assert.Equal(t, types.ToolOutcomeCompleted, result.Outcome)
}
