package approval

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/laceai/lace-core/internal/store"
	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/internal/corerr"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *thread.Manager, string) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "lace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	threads := thread.NewManager(s)
	th, err := threads.CreateThread(context.Background(), nil, nil)
	require.NoError(t, err)

	return NewCoordinator(s, threads), threads, th.ID
}

func TestRequestApprovalIsIdempotent(t *testing.T) {
	c, threads, threadID := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.RequestApproval(ctx, threadID, "c1"))
	require.NoError(t, c.RequestApproval(ctx, threadID, "c1"))

	events, err := threads.Replay(ctx, threadID)
	require.NoError(t, err)
	requests := 0
	for _, e := range events.Events {
		if e.Type == types.EventToolApprovalRequest {
			requests++
		}
	}
	assert.Equal(t, 1, requests)
}

func TestSubmitDecisionRequiresPendingRequest(t *testing.T) {
	c, _, threadID := newTestCoordinator(t)
	ctx := context.Background()

	err := c.SubmitDecision(ctx, threadID, "ghost", types.DecisionAllowOnce)
	assert.ErrorIs(t, err, corerr.ErrNoPendingApproval)
}

func TestSubmitDecisionRejectsDouble(t *testing.T) {
	c, _, threadID := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.RequestApproval(ctx, threadID, "c1"))
	require.NoError(t, c.SubmitDecision(ctx, threadID, "c1", types.DecisionAllowOnce))

	err := c.SubmitDecision(ctx, threadID, "c1", types.DecisionDeny)
	assert.ErrorIs(t, err, corerr.ErrAlreadyDecided)
}

func TestAwaitDecisionReturnsOnceDecided(t *testing.T) {
	c, _, threadID := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.RequestApproval(ctx, threadID, "c1"))
	require.NoError(t, c.SubmitDecision(ctx, threadID, "c1", types.DecisionAllowSession))

	decision, err := c.AwaitDecision(ctx, threadID, "c1", time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, types.DecisionAllowSession, decision)
}

func TestAwaitDecisionTimesOut(t *testing.T) {
	c, _, threadID := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.RequestApproval(ctx, threadID, "c1"))

	_, err := c.AwaitDecision(ctx, threadID, "c1", time.Now().Add(10*time.Millisecond))
	assert.ErrorIs(t, err, corerr.ErrApprovalTimeout)
}
